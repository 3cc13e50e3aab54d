// Package manager interprets chat instructions and runs the scheduled
// flashcard reviews.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/recallbot/internal/flashcard"
	"github.com/kalambet/recallbot/internal/instruction"
	"github.com/kalambet/recallbot/internal/scheduler"
)

// Config holds the tunables of the review loop.
type Config struct {
	// QuizProbability is the chance that a selected flashcard is asked as
	// a quiz instead of being reviewed. At most one quiz is asked per slot.
	QuizProbability float64
	// ReinforceProbability is the chance that a non-empty instruction batch
	// raises the time priority of the current hour by one.
	ReinforceProbability float64
	// Cooldown is how long a modified flashcard is kept out of reviews.
	Cooldown time.Duration
}

func DefaultConfig() Config {
	return Config{
		QuizProbability:      0.1,
		ReinforceProbability: 0.6,
		Cooldown:             24 * time.Hour,
	}
}

// Deps are the collaborators of a Manager.
type Deps struct {
	Store     flashcard.Store
	Messenger Messenger
	Scheduler *scheduler.Scheduler
	Config    Config
	Logger    *slog.Logger
}

type handlerFunc func(ctx context.Context, ins instruction.Instruction) error

// Manager dispatches instructions and shows scheduled flashcards. It is
// driven by a single goroutine and does no locking.
type Manager struct {
	store     flashcard.Store
	messenger Messenger
	sched     *scheduler.Scheduler
	cfg       Config
	logger    *slog.Logger
	handlers  map[instruction.Type]handlerFunc
}

func New(deps Deps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:     deps.Store,
		messenger: deps.Messenger,
		sched:     deps.Scheduler,
		cfg:       deps.Config,
		logger:    logger,
	}
	m.handlers = map[instruction.Type]handlerFunc{
		instruction.Unknown:            m.handleUnknown,
		instruction.Add:                m.handleAdd,
		instruction.Delete:             m.handleDelete,
		instruction.ChangePriority:     m.handleChangePriority,
		instruction.RespondToQuestion:  m.handleRespond,
		instruction.ChangeFrequency:    m.handleChangeFrequency,
		instruction.ShowFlashcard:      m.handleShowFlashcard,
		instruction.ShowInfo:           m.handleShowInfo,
		instruction.ChangeTimePriority: m.handleChangeTimePriority,
		instruction.ShowHelp:           m.handleShowHelp,
	}
	return m
}

// Scheduler exposes the scheduler for persistence.
func (m *Manager) Scheduler() *scheduler.Scheduler {
	return m.sched
}

// Handle applies one instruction. The user has already been told about
// any failure when Handle returns; the error classifies it.
func (m *Manager) Handle(ctx context.Context, ins instruction.Instruction) error {
	h, ok := m.handlers[ins.Type]
	if !ok {
		h = m.handleUnknown
	}
	return h(ctx, ins)
}

// ProcessInstructions fetches and applies every pending instruction.
// Instruction failures are logged and never returned; only a failure to
// fetch the instructions is.
func (m *Manager) ProcessInstructions(ctx context.Context) error {
	texts, latest, err := m.messenger.GetPendingInstructions(ctx, m.sched.LastInstructionID())
	if err != nil {
		return fmt.Errorf("fetching instructions: %w", err)
	}

	for _, text := range texts {
		ins := instruction.Parse(text)
		if err := m.Handle(ctx, ins); err != nil {
			m.logFailure(ins, err)
		}
	}
	m.sched.SetLastInstructionID(latest)

	if len(texts) > 0 && m.sched.Chance(m.cfg.ReinforceProbability) {
		hour := m.sched.Now().Hour()
		v, err := m.sched.ChangeTimePriority(hour, 1)
		if err == nil {
			m.logger.Debug("time priority reinforced", "hour", hour, "priority", v)
		}
	}
	return nil
}

func (m *Manager) logFailure(ins instruction.Instruction, err error) {
	if errors.Is(err, ErrPersistence) {
		m.logger.Error("instruction failed", "type", ins.Type.String(), "key", ins.Key, "error", err)
		return
	}
	m.logger.Warn("instruction rejected", "type", ins.Type.String(), "key", ins.Key, "error", err)
}

// ShowScheduledFlashcards runs one scheduling slot: it rolls the
// distributions over, then shows the number of flashcards due in the
// current slot. Each shown flashcard loses one priority point, except that
// a flashcard may instead be asked as a quiz.
func (m *Manager) ShowScheduledFlashcards(ctx context.Context) error {
	m.sched.UpdateMetadata()

	now := m.sched.Now()
	n := m.sched.CardsForSlot(now)
	if n <= 0 {
		return nil
	}
	minPriority := m.sched.RandomMinPriority()
	maxModified := now.Add(-m.cfg.Cooldown).Unix()

	cards, err := m.store.GetFlashcardsByPriority(n, minPriority, maxModified)
	if err != nil {
		return fmt.Errorf("%w: selecting flashcards: %v", ErrPersistence, err)
	}
	if len(cards) == 0 {
		m.logger.Warn("no flashcard eligible for showing",
			"count", n, "min_priority", minPriority, "max_modified", maxModified)
		return nil
	}

	quizzed := false
	for _, card := range cards {
		if !quizzed && m.sched.Chance(m.cfg.QuizProbability) {
			if err := m.askQuiz(ctx, card); err != nil {
				m.logger.Error("showing quiz failed", "key", card.Key, "error", err)
				continue
			}
			quizzed = true
			continue
		}
		if err := m.review(ctx, card); err != nil {
			m.logger.Error("review failed", "key", card.Key, "error", err)
		}
	}
	return nil
}

func (m *Manager) review(ctx context.Context, card flashcard.Flashcard) error {
	if err := m.messenger.ShowFlashcard(ctx, card, card.MajorFields(), "", ""); err != nil {
		return fmt.Errorf("showing flashcard: %w", err)
	}
	m.logger.Info("flashcard reviewed", "key", card.Key, "id", card.ID)

	card.AddPriority(-1)
	if err := m.store.ReplaceFlashcard(&card); err != nil {
		return fmt.Errorf("%w: lowering priority: %v", ErrPersistence, err)
	}
	return nil
}

const quizPrompt = "What is the key of value: "

func (m *Manager) askQuiz(ctx context.Context, card flashcard.Flashcard) error {
	if err := m.messenger.ShowFlashcard(ctx, card, flashcard.FieldValue, quizPrompt, ""); err != nil {
		return fmt.Errorf("showing quiz: %w", err)
	}
	m.sched.AskQuestion(card.ID)
	m.logger.Info("quiz asked", "key", card.Key, "id", card.ID)

	// Touch only; the answer decides the priority.
	if err := m.store.ReplaceFlashcard(&card); err != nil {
		m.logger.Error("touching quizzed flashcard failed", "key", card.Key, "error", err)
	}
	return nil
}

// say sends plain text. Send failures are logged only.
func (m *Manager) say(ctx context.Context, text string) {
	if err := m.messenger.ShowText(ctx, text, true); err != nil {
		m.logger.Error("sending message failed", "error", err)
	}
}

func (m *Manager) show(ctx context.Context, card flashcard.Flashcard, fields flashcard.Field, prefix string) {
	if err := m.messenger.ShowFlashcard(ctx, card, fields, prefix, ""); err != nil {
		m.logger.Error("sending flashcard failed", "key", card.Key, "error", err)
	}
}
