package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type mockDispatcher struct {
	mu           sync.Mutex
	instructions int
	slots        int
	onProcess    func()
	processErr   error
}

func (d *mockDispatcher) ProcessInstructions(context.Context) error {
	d.mu.Lock()
	d.instructions++
	fn := d.onProcess
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
	return d.processErr
}

func (d *mockDispatcher) ShowScheduledFlashcards(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slots++
	return nil
}

type saveCounter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *saveCounter) save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func newTestWorker(t *testing.T, disp Dispatcher, save SaveFunc, jobsPerHour int) *Worker {
	t.Helper()
	w, err := NewWorker(disp, save, jobsPerHour, time.Millisecond)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return w
}

func at(day, hour, min, sec int) time.Time {
	return time.Date(2026, 3, day, hour, min, sec, 0, time.UTC)
}

func TestSlotSchedule_Invalid(t *testing.T) {
	for _, n := range []int{0, -1, 7, 61} {
		if _, err := SlotSchedule(n); err == nil {
			t.Errorf("SlotSchedule(%d) succeeded, want error", n)
		}
	}
}

func TestSlotSchedule_Minutes(t *testing.T) {
	tests := []struct {
		jobsPerHour int
		from        time.Time
		want        time.Time
	}{
		{12, at(10, 9, 0, 30), at(10, 9, 5, 0)},
		{12, at(10, 9, 57, 0), at(10, 10, 0, 0)},
		{60, at(10, 9, 3, 10), at(10, 9, 4, 0)},
		{4, at(10, 9, 16, 0), at(10, 9, 30, 0)},
		{1, at(10, 9, 1, 0), at(10, 10, 0, 0)},
	}
	for _, tt := range tests {
		s, err := SlotSchedule(tt.jobsPerHour)
		if err != nil {
			t.Fatalf("SlotSchedule(%d): %v", tt.jobsPerHour, err)
		}
		if got := s.Next(tt.from); !got.Equal(tt.want) {
			t.Errorf("SlotSchedule(%d).Next(%v) = %v, want %v", tt.jobsPerHour, tt.from, got, tt.want)
		}
	}
}

func TestRunOnce_SlotTicks(t *testing.T) {
	disp := &mockDispatcher{}
	saves := &saveCounter{}
	w := newTestWorker(t, disp, saves.save, 12)
	w.lastDate = at(10, 0, 0, 0)

	ctx := context.Background()
	w.RunOnce(ctx, at(10, 9, 0, 0))
	w.RunOnce(ctx, at(10, 9, 0, 30)) // same slot minute
	w.RunOnce(ctx, at(10, 9, 1, 0))  // not a slot
	w.RunOnce(ctx, at(10, 9, 5, 10))

	if disp.instructions != 4 {
		t.Errorf("instruction polls = %d, want 4", disp.instructions)
	}
	if disp.slots != 2 {
		t.Errorf("slots = %d, want 2", disp.slots)
	}
	if saves.calls != 0 {
		t.Errorf("saves = %d, want 0 within a day", saves.calls)
	}
}

func TestRunOnce_SavesAtDateChange(t *testing.T) {
	disp := &mockDispatcher{}
	saves := &saveCounter{}
	w := newTestWorker(t, disp, saves.save, 12)
	w.lastDate = at(10, 23, 59, 0)

	ctx := context.Background()
	w.RunOnce(ctx, at(10, 23, 59, 59))
	w.RunOnce(ctx, at(11, 0, 0, 1))
	w.RunOnce(ctx, at(11, 0, 0, 2))

	if saves.calls != 1 {
		t.Errorf("saves = %d, want 1", saves.calls)
	}
	if disp.slots != 1 {
		t.Errorf("slots = %d, want 1 (midnight)", disp.slots)
	}
}

func TestRunOnce_InstructionErrorDoesNotStopSlot(t *testing.T) {
	disp := &mockDispatcher{processErr: errors.New("telegram unreachable")}
	saves := &saveCounter{}
	w := newTestWorker(t, disp, saves.save, 12)
	w.lastDate = at(10, 0, 0, 0)

	w.RunOnce(context.Background(), at(10, 9, 10, 0))
	if disp.slots != 1 {
		t.Errorf("slots = %d, want 1", disp.slots)
	}
}

func TestRun_SavesOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disp := &mockDispatcher{}
	disp.onProcess = func() {
		if disp.instructions >= 3 {
			cancel()
		}
	}
	saves := &saveCounter{}
	w := newTestWorker(t, disp, saves.save, 12)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if saves.calls < 1 {
		t.Errorf("saves = %d, want at least 1", saves.calls)
	}
}

func TestRun_ShutdownSaveError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	saves := &saveCounter{err: errors.New("disk full")}
	w := newTestWorker(t, &mockDispatcher{}, saves.save, 12)
	if err := w.Run(ctx); err == nil {
		t.Fatal("Run succeeded, want save error")
	}
}
