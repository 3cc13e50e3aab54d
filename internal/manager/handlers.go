package manager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kalambet/recallbot/internal/flashcard"
	"github.com/kalambet/recallbot/internal/instruction"
	"github.com/kalambet/recallbot/internal/scheduler"
)

// lookup resolves ref to a flashcard, telling the user missingText when
// it does not exist.
func (m *Manager) lookup(ctx context.Context, ref, missingText string) (flashcard.Flashcard, error) {
	card, err := flashcard.Resolve(m.store, ref)
	if errors.Is(err, flashcard.ErrNotFound) {
		m.say(ctx, missingText)
		return flashcard.Flashcard{}, fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	if err != nil {
		return flashcard.Flashcard{}, fmt.Errorf("%w: looking up %q: %v", ErrPersistence, ref, err)
	}
	return card, nil
}

func parseInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil
}

func (m *Manager) handleUnknown(ctx context.Context, _ instruction.Instruction) error {
	m.say(ctx, "Unknown instruction")
	return fmt.Errorf("%w: unknown instruction", ErrInvalidArgument)
}

// handleAdd inserts a flashcard, or refreshes the one with the same key
// and restores it to the highest priority.
func (m *Manager) handleAdd(ctx context.Context, ins instruction.Instruction) error {
	if ins.Key == "" {
		m.say(ctx, "Cannot add a flashcard without a key")
		return fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}

	existing, err := m.store.GetFlashcardByKey(ins.Key)
	switch {
	case err == nil:
		existing.Value = ins.Value
		existing.Remarks = ins.Remarks
		existing.SetPriority(flashcard.HighestPriority)
		if err := m.store.ReplaceFlashcard(&existing); err != nil {
			m.show(ctx, existing, flashcard.FieldKey, "Unexpected error occurred when updating: ")
			return fmt.Errorf("%w: updating %q: %v", ErrPersistence, ins.Key, err)
		}
		m.logger.Info("flashcard updated", "key", existing.Key, "id", existing.ID)
		m.show(ctx, existing, existing.MajorFields(), "Updated existing:\n")
		return nil

	case errors.Is(err, flashcard.ErrNotFound):
		card := flashcard.New(ins.Key, ins.Value, ins.Remarks)
		if err := m.store.InsertFlashcard(&card); err != nil {
			m.show(ctx, card, flashcard.FieldKey, "Unexpected error occurred when inserting: ")
			return fmt.Errorf("%w: inserting %q: %v", ErrPersistence, ins.Key, err)
		}
		m.logger.Info("flashcard inserted", "key", card.Key, "id", card.ID)
		m.show(ctx, card, card.MajorFields(), "Inserted new:\n")
		return nil

	default:
		return fmt.Errorf("%w: looking up %q: %v", ErrPersistence, ins.Key, err)
	}
}

func (m *Manager) handleDelete(ctx context.Context, ins instruction.Instruction) error {
	card, err := m.lookup(ctx, ins.Key, "Cannot find the flashcard to delete")
	if err != nil {
		return err
	}
	if err := m.store.DeleteFlashcard(card); err != nil {
		m.show(ctx, card, flashcard.FieldKey, "Unexpected error occurred when deleting: ")
		return fmt.Errorf("%w: deleting %q: %v", ErrPersistence, card.Key, err)
	}
	m.logger.Info("flashcard deleted", "key", card.Key, "id", card.ID)
	m.show(ctx, card, flashcard.FieldKey, "Deleted: ")
	return nil
}

func (m *Manager) handleChangePriority(ctx context.Context, ins instruction.Instruction) error {
	card, err := m.lookup(ctx, ins.Key, "Cannot find the flashcard for priority change")
	if err != nil {
		return err
	}
	change, ok := parseInt(ins.Value)
	if !ok {
		m.say(ctx, "Cannot obtain an integer for priority change")
		return fmt.Errorf("%w: priority change %q", ErrInvalidArgument, ins.Value)
	}
	if change == 0 {
		m.say(ctx, "Flashcard priority is unchanged")
		return nil
	}

	card.AddPriority(change)
	if err := m.store.ReplaceFlashcard(&card); err != nil {
		m.show(ctx, card, flashcard.FieldKey, "Unexpected error occurred when changing the priority of: ")
		return fmt.Errorf("%w: changing priority of %q: %v", ErrPersistence, card.Key, err)
	}
	m.logger.Info("flashcard priority changed", "key", card.Key, "priority", card.Priority)
	m.show(ctx, card, flashcard.FieldKey|flashcard.FieldPriority, "Priority changed: ")
	return nil
}

// handleRespond scores the answer to the pending quiz: one priority point
// up for the right key, one down otherwise.
func (m *Manager) handleRespond(ctx context.Context, ins instruction.Instruction) error {
	id, pending := m.sched.PendingQuestion()
	if !pending {
		m.say(ctx, "There is no question to be answered")
		return ErrNoPendingQuestion
	}

	card, err := m.store.GetFlashcardByID(id)
	if errors.Is(err, flashcard.ErrNotFound) {
		m.sched.ClearQuestion()
		m.say(ctx, "Cannot find the flashcard for the quiz (Maybe it is deleted)")
		return fmt.Errorf("%w: id %d", ErrStaleQuizTarget, id)
	}
	if err != nil {
		return fmt.Errorf("%w: looking up quiz %d: %v", ErrPersistence, id, err)
	}

	correct := ins.Value == card.Key
	prefix := "*Wrong*\n\n"
	delta := -1
	if correct {
		prefix = "*Correct*\n\n"
		delta = 1
	}
	card.AddPriority(delta)
	m.sched.ClearQuestion()
	m.logger.Info("quiz answered", "key", card.Key, "correct", correct)

	m.show(ctx, card, card.MajorFields(), prefix)
	if err := m.store.ReplaceFlashcard(&card); err != nil {
		return fmt.Errorf("%w: scoring quiz %q: %v", ErrPersistence, card.Key, err)
	}
	return nil
}

func (m *Manager) handleChangeFrequency(ctx context.Context, ins instruction.Instruction) error {
	n, ok := parseInt(ins.Value)
	if !ok {
		m.say(ctx, "Cannot obtain an integer for frequency change")
		return fmt.Errorf("%w: frequency %q", ErrInvalidArgument, ins.Value)
	}
	if n < scheduler.LowestFrequency {
		m.say(ctx, fmt.Sprintf("Frequency cannot be smaller than %d", scheduler.LowestFrequency))
	}
	if n > scheduler.HighestFrequency {
		m.say(ctx, fmt.Sprintf("Frequency cannot be larger than %d", scheduler.HighestFrequency))
	}
	n = m.sched.SetFrequency(n)
	m.logger.Info("frequency changed", "frequency", n)
	m.say(ctx, fmt.Sprintf("New frequency: %d", n))
	return nil
}

func (m *Manager) handleShowFlashcard(ctx context.Context, ins instruction.Instruction) error {
	card, err := m.lookup(ctx, ins.Key, "Cannot find the flashcard to show")
	if err != nil {
		return err
	}
	if err := m.messenger.ShowFlashcard(ctx, card, card.MajorFields(), "", ""); err != nil {
		return fmt.Errorf("showing %q: %w", card.Key, err)
	}
	return nil
}

func (m *Manager) handleShowInfo(ctx context.Context, _ instruction.Instruction) error {
	text, err := m.RenderInfo()
	if err != nil {
		return err
	}
	if err := m.messenger.ShowText(ctx, text, false); err != nil {
		return fmt.Errorf("showing info: %w", err)
	}
	return nil
}

func (m *Manager) handleChangeTimePriority(ctx context.Context, ins instruction.Instruction) error {
	hour, ok := parseInt(ins.Key)
	if !ok || hour < 0 || hour >= scheduler.HoursInDay {
		m.say(ctx, "Cannot obtain a valid time index for time priority change (Range: [0, 23])")
		return fmt.Errorf("%w: hour %q", ErrInvalidArgument, ins.Key)
	}
	change, ok := parseInt(ins.Value)
	if !ok {
		m.say(ctx, "Cannot obtain an integer for time priority change")
		return fmt.Errorf("%w: time priority change %q", ErrInvalidArgument, ins.Value)
	}
	if change == 0 {
		m.say(ctx, "Time priority is unchanged")
		return nil
	}
	if change > scheduler.HighestTimePriority || change < -scheduler.HighestTimePriority {
		m.say(ctx, fmt.Sprintf("Time priority change cannot be larger than %d", scheduler.HighestTimePriority))
	}

	change = min(max(change, -scheduler.HighestTimePriority), scheduler.HighestTimePriority)
	raw := max(m.sched.TimePriority(hour)+change, scheduler.LowestTimePriority)

	v, err := m.sched.ChangeTimePriority(hour, change)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	m.logger.Info("time priority changed", "hour", hour, "priority", v)
	if raw > scheduler.HighestTimePriority {
		m.say(ctx, fmt.Sprintf("Time priority at hour %d is changed to %d, all time priorities are rescaled (hour %d is now %d)", hour, raw, hour, v))
		return nil
	}
	m.say(ctx, fmt.Sprintf("Time priority at hour %d is changed to %d", hour, v))
	return nil
}

func (m *Manager) handleShowHelp(ctx context.Context, ins instruction.Instruction) error {
	if ins.Key == "" {
		m.say(ctx, instruction.Help())
		return nil
	}
	m.say(ctx, instruction.Usage(ins.Key))
	return nil
}
