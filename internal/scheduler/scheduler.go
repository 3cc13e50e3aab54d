// Package scheduler decides when flashcards are shown. It spreads the daily
// showing frequency over the hours of the day by weighted draws, then spreads
// each hour's share over the job slots within that hour.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/kalambet/recallbot/internal/flashcard"
)

var (
	ErrInvalidHour        = errors.New("hour must be between 0 and 23")
	ErrInvalidJobsPerHour = errors.New("jobs per hour must divide 60")
)

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Scheduler owns the scheduling State. It is not safe for concurrent use;
// the worker goroutine is its only caller.
type Scheduler struct {
	st     State
	rng    *rand.Rand
	clock  Clock
	logger *slog.Logger
}

type Option func(*Scheduler)

// WithRand sets the random source. Tests pass a seeded PCG.
func WithRand(r *rand.Rand) Option {
	return func(s *Scheduler) { s.rng = r }
}

func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func newScheduler(opts []Option) *Scheduler {
	s := &Scheduler{
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		clock:  realClock{},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// New creates a scheduler from the default state and draws fresh
// distributions for today and the current hour.
func New(numJobsPerHour int, opts ...Option) *Scheduler {
	s := newScheduler(opts)
	if numJobsPerHour < 1 {
		numJobsPerHour = DefaultJobsPerHour
	}
	s.st = DefaultState(numJobsPerHour)
	s.GenerateTimeOfDayDistribution()
	s.GenerateWithinHourDistribution()
	s.st.LastUpdate = s.clock.Now()
	return s
}

// Restore creates a scheduler from a previously saved state. Values out of
// range are clamped and distributions that no longer match the parameters
// are redrawn.
func Restore(st State, opts ...Option) *Scheduler {
	s := newScheduler(opts)
	s.st = st.Clone()
	s.normalize()
	return s
}

func (s *Scheduler) normalize() {
	s.st.Version = Version
	if s.st.NumJobsPerHour < 1 || 60%s.st.NumJobsPerHour != 0 {
		s.logger.Warn("restored jobs per hour is invalid, using default",
			"jobs_per_hour", s.st.NumJobsPerHour, "default", DefaultJobsPerHour)
		s.st.NumJobsPerHour = DefaultJobsPerHour
	}
	s.st.Frequency = clamp(s.st.Frequency, LowestFrequency, HighestFrequency)

	needRescale := false
	for h, w := range s.st.TimeOfDayPriorities {
		if w < LowestTimePriority {
			s.st.TimeOfDayPriorities[h] = LowestTimePriority
		}
		if w > HighestTimePriority {
			needRescale = true
		}
	}
	if needRescale {
		s.rescale()
	}

	if s.st.QuestionToAnswer < 0 {
		s.st.QuestionToAnswer = NoQuestion
	}
	if s.st.LastUpdate.IsZero() {
		s.st.LastUpdate = s.clock.Now()
	}

	if sum(s.st.TimeOfDayDistribution[:]) != s.st.Frequency {
		s.GenerateTimeOfDayDistribution()
		s.GenerateWithinHourDistribution()
	} else if len(s.st.WithinHourDistribution) != s.st.NumJobsPerHour {
		s.GenerateWithinHourDistribution()
	}
}

// State returns a copy of the current state for persistence.
func (s *Scheduler) State() State {
	return s.st.Clone()
}

func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// GenerateTimeOfDayDistribution assigns each of the Frequency showings of
// the day to an hour, drawing hours in proportion to their time priority.
// When no hour has positive weight every hour counts as weight 1.
func (s *Scheduler) GenerateTimeOfDayDistribution() {
	weights := s.st.TimeOfDayPriorities
	total := 0
	for _, w := range weights {
		total += max(w, 0)
	}
	uniform := total <= 0
	if uniform {
		s.logger.Warn("all time priorities are zero, spreading showings uniformly")
		total = HoursInDay
	}

	var dist [HoursInDay]int
	for i := 0; i < s.st.Frequency; i++ {
		r := s.rng.IntN(total)
		for h := 0; h < HoursInDay; h++ {
			w := 1
			if !uniform {
				w = max(weights[h], 0)
			}
			if r < w {
				dist[h]++
				break
			}
			r -= w
		}
	}
	s.st.TimeOfDayDistribution = dist
	s.logger.Info("time of day distribution generated", "distribution", dist[:])
}

// GenerateWithinHourDistribution spreads the current hour's showings over
// its NumJobsPerHour slots uniformly at random.
func (s *Scheduler) GenerateWithinHourDistribution() {
	k := s.st.NumJobsPerHour
	n := s.st.TimeOfDayDistribution[s.clock.Now().Hour()]
	dist := make([]int, k)
	for i := 0; i < n; i++ {
		dist[s.rng.IntN(k)]++
	}
	s.st.WithinHourDistribution = dist
	s.logger.Info("within hour distribution generated", "distribution", dist)
}

// UpdateMetadata rolls the distributions over when the date or hour has
// changed since the last call and expires a stale pending question.
func (s *Scheduler) UpdateMetadata() {
	now := s.clock.Now()
	last := s.st.LastUpdate.In(now.Location())

	dayChanged := !sameDate(last, now)
	if dayChanged {
		s.GenerateTimeOfDayDistribution()
	}
	if dayChanged || last.Hour() != now.Hour() {
		s.GenerateWithinHourDistribution()
	}

	if s.st.QuestionToAnswer != NoQuestion && now.Sub(s.st.QuestionAskedAt) >= QuestionTTL {
		s.logger.Info("pending question expired", "id", s.st.QuestionToAnswer)
		s.ClearQuestion()
	}
	s.st.LastUpdate = now
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ChangeTimePriority adds delta to the weight of hour and returns the new
// weight. The delta is limited to ±HighestTimePriority and the weight never
// drops below zero. If the weight exceeds HighestTimePriority every weight is
// rescaled so that the largest becomes half of it.
func (s *Scheduler) ChangeTimePriority(hour, delta int) (int, error) {
	if hour < 0 || hour >= HoursInDay {
		return 0, fmt.Errorf("%w: %d", ErrInvalidHour, hour)
	}
	if delta == 0 {
		return s.st.TimeOfDayPriorities[hour], nil
	}
	delta = clamp(delta, -HighestTimePriority, HighestTimePriority)

	v := max(s.st.TimeOfDayPriorities[hour]+delta, LowestTimePriority)
	s.st.TimeOfDayPriorities[hour] = v
	if v > HighestTimePriority {
		s.rescale()
		s.logger.Info("time priorities rescaled", "priorities", s.st.TimeOfDayPriorities[:])
	}
	return s.st.TimeOfDayPriorities[hour], nil
}

func (s *Scheduler) rescale() {
	top := 0
	for _, w := range s.st.TimeOfDayPriorities {
		top = max(top, w)
	}
	if top <= 0 {
		return
	}
	for h, w := range s.st.TimeOfDayPriorities {
		s.st.TimeOfDayPriorities[h] = int(float64(w) / float64(top) * HighestTimePriority / 2)
	}
}

func (s *Scheduler) TimePriority(hour int) int {
	if hour < 0 || hour >= HoursInDay {
		return 0
	}
	return s.st.TimeOfDayPriorities[hour]
}

// SetFrequency clamps n to the allowed range, stores it and returns the
// stored value. A changed frequency redraws both distributions.
func (s *Scheduler) SetFrequency(n int) int {
	n = clamp(n, LowestFrequency, HighestFrequency)
	if n != s.st.Frequency {
		s.st.Frequency = n
		s.GenerateTimeOfDayDistribution()
		s.GenerateWithinHourDistribution()
	}
	return n
}

func (s *Scheduler) Frequency() int {
	return s.st.Frequency
}

// SetNumJobsPerHour changes the slot count. n must divide 60.
func (s *Scheduler) SetNumJobsPerHour(n int) error {
	if n < 1 || n > 60 || 60%n != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidJobsPerHour, n)
	}
	if n != s.st.NumJobsPerHour {
		s.st.NumJobsPerHour = n
		s.GenerateWithinHourDistribution()
	}
	return nil
}

func (s *Scheduler) NumJobsPerHour() int {
	return s.st.NumJobsPerHour
}

// SlotIndex returns the within-hour slot that t falls into.
func (s *Scheduler) SlotIndex(t time.Time) int {
	return t.Minute() * s.st.NumJobsPerHour / 60
}

// CardsForSlot returns how many flashcards are due in the slot containing t.
func (s *Scheduler) CardsForSlot(t time.Time) int {
	idx := s.SlotIndex(t)
	if idx >= len(s.st.WithinHourDistribution) {
		return 0
	}
	return s.st.WithinHourDistribution[idx]
}

// RandomMinPriority draws the priority threshold for one slot.
func (s *Scheduler) RandomMinPriority() int {
	return s.rng.IntN(flashcard.HighestPriority + 1)
}

// Chance reports true with probability p.
func (s *Scheduler) Chance(p float64) bool {
	return s.rng.Float64() < p
}

// PendingQuestion returns the Id of the quizzed flashcard, if any.
func (s *Scheduler) PendingQuestion() (int64, bool) {
	return s.st.QuestionToAnswer, s.st.QuestionToAnswer != NoQuestion
}

func (s *Scheduler) AskQuestion(id int64) {
	s.st.QuestionToAnswer = id
	s.st.QuestionAskedAt = s.clock.Now()
}

func (s *Scheduler) ClearQuestion() {
	s.st.QuestionToAnswer = NoQuestion
	s.st.QuestionAskedAt = time.Time{}
}

func (s *Scheduler) LastInstructionID() int {
	return s.st.LastInstructionID
}

// SetLastInstructionID records id as consumed. It never moves backwards.
func (s *Scheduler) SetLastInstructionID(id int) {
	if id > s.st.LastInstructionID {
		s.st.LastInstructionID = id
	}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
