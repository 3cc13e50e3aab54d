// Package worker runs the review loop: it polls for instructions on every
// tick, runs a scheduling slot when a new slot minute starts, and saves the
// scheduler state at the end of each day and on shutdown.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Dispatcher is the part of manager.Manager the worker drives.
type Dispatcher interface {
	ProcessInstructions(ctx context.Context) error
	ShowScheduledFlashcards(ctx context.Context) error
}

// SaveFunc persists the scheduler state.
type SaveFunc func() error

// Worker owns the dispatcher. Nothing else may touch the dispatcher or its
// scheduler while Run is active.
type Worker struct {
	disp     Dispatcher
	save     SaveFunc
	slots    cron.Schedule
	tick     time.Duration
	now      func() time.Time
	logger   *slog.Logger
	lastSlot time.Time
	lastDate time.Time
}

// NewWorker creates a Worker that runs jobsPerHour slots per hour, evenly
// spaced from the top of the hour. jobsPerHour must divide 60.
// If tick is <= 0, it defaults to one second.
func NewWorker(disp Dispatcher, save SaveFunc, jobsPerHour int, tick time.Duration) (*Worker, error) {
	slots, err := SlotSchedule(jobsPerHour)
	if err != nil {
		return nil, err
	}
	if tick <= 0 {
		tick = time.Second
	}
	return &Worker{
		disp:   disp,
		save:   save,
		slots:  slots,
		tick:   tick,
		now:    time.Now,
		logger: slog.Default(),
	}, nil
}

// SlotSchedule returns the cron schedule firing jobsPerHour times an hour.
func SlotSchedule(jobsPerHour int) (cron.Schedule, error) {
	if jobsPerHour < 1 || jobsPerHour > 60 || 60%jobsPerHour != 0 {
		return nil, fmt.Errorf("jobs per hour %d does not divide 60", jobsPerHour)
	}
	expr := fmt.Sprintf("*/%d * * * *", 60/jobsPerHour)
	if jobsPerHour == 1 {
		expr = "0 * * * *"
	}
	s, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing slot schedule %q: %w", expr, err)
	}
	return s, nil
}

// Run ticks until ctx is cancelled, then saves the state one last time.
func (w *Worker) Run(ctx context.Context) error {
	w.lastDate = w.now()
	w.logger.Info("worker started", "tick", w.tick)

	for {
		w.RunOnce(ctx, w.now())

		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping, saving state")
			if err := w.save(); err != nil {
				return fmt.Errorf("saving state on shutdown: %w", err)
			}
			return nil
		case <-time.After(w.tick):
		}
	}
}

// RunOnce performs one tick at now.
func (w *Worker) RunOnce(ctx context.Context, now time.Time) {
	if err := w.disp.ProcessInstructions(ctx); err != nil {
		w.logger.Warn("processing instructions failed", "error", err)
	}

	if minute := now.Truncate(time.Minute); !minute.Equal(w.lastSlot) && w.isSlot(minute) {
		w.lastSlot = minute
		if err := w.disp.ShowScheduledFlashcards(ctx); err != nil {
			w.logger.Error("scheduled showing failed", "error", err)
		}
	}

	if !sameDate(now, w.lastDate) {
		w.lastDate = now
		if err := w.save(); err != nil {
			w.logger.Error("saving state failed", "error", err)
		} else {
			w.logger.Info("state saved at date change")
		}
	}
}

func (w *Worker) isSlot(minute time.Time) bool {
	return w.slots.Next(minute.Add(-time.Second)).Equal(minute)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
