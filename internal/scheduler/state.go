package scheduler

import "time"

const (
	// Version is the schema version of State. Snapshots with a different
	// major version are discarded on load.
	Version = "1.0.0"

	HoursInDay = 24

	LowestTimePriority  = 0
	HighestTimePriority = 999

	LowestFrequency  = 0
	HighestFrequency = 999

	DefaultJobsPerHour = 12
	DefaultFrequency   = 10

	// NoQuestion means no quiz is waiting for an answer.
	NoQuestion int64 = -1

	// QuestionTTL is how long a quiz stays answerable.
	QuestionTTL = 24 * time.Hour
)

// State is the persisted scheduler record. It carries no behavior so it can
// be serialized independently of the scheduling logic.
type State struct {
	Version                string          `json:"version"`
	NumJobsPerHour         int             `json:"num_jobs_per_hour"`
	Frequency              int             `json:"daily_showing_frequency"`
	TimeOfDayPriorities    [HoursInDay]int `json:"time_of_day_priorities"`
	TimeOfDayDistribution  [HoursInDay]int `json:"time_of_day_distribution"`
	WithinHourDistribution []int           `json:"within_hour_distribution"`
	LastUpdate             time.Time       `json:"last_update"`
	LastInstructionID      int             `json:"last_instruction_id"`
	QuestionToAnswer       int64           `json:"question_to_answer"`
	QuestionAskedAt        time.Time       `json:"question_asked_at"`
}

// DefaultState returns the initial parameters with empty distributions:
// no showings before 06:00 and equal weight for every later hour.
func DefaultState(numJobsPerHour int) State {
	st := State{
		Version:           Version,
		NumJobsPerHour:    numJobsPerHour,
		Frequency:         DefaultFrequency,
		LastInstructionID: -1,
		QuestionToAnswer:  NoQuestion,
	}
	for h := 6; h < HoursInDay; h++ {
		st.TimeOfDayPriorities[h] = HighestTimePriority / 2
	}
	return st
}

// Clone returns a deep copy.
func (st State) Clone() State {
	out := st
	out.WithinHourDistribution = append([]int(nil), st.WithinHourDistribution...)
	return out
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
