package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"diarist/internal/scheduler"
)

// fakeClock advances instantly when asked to wait.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

// blockingClock never fires; a sleep only ends via cancellation.
type blockingClock struct{ fakeClock }

func (c *blockingClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

func midnight() time.Time { return time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC) }

func TestIntervalHelpers(t *testing.T) {
	if scheduler.Interval(24) != time.Hour {
		t.Fatalf("expected 1h for 24 runs/day, got %s", scheduler.Interval(24))
	}
	if scheduler.Interval(1) != 24*time.Hour || scheduler.Interval(0) != 0 {
		t.Fatal("unexpected interval for 1 or 0 runs/day")
	}
	if scheduler.SleepDuration(time.Hour, 90*time.Minute) != 0 {
		t.Fatal("expected zero sleep after an overrun")
	}
	next := scheduler.NextRun(midnight(), 10*time.Minute, time.Hour)
	if !next.Equal(midnight().Add(time.Hour)) {
		t.Fatalf("unexpected next run %s", next)
	}
}

func runCycles(t *testing.T, runsPerDay int, cycleLength time.Duration, cycles int) []time.Time {
	t.Helper()
	clock := &fakeClock{now: midnight()}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var starts []time.Time
	s, err := scheduler.New(scheduler.Options{
		RunsPerDay: runsPerDay,
		Clock:      clock,
		Cycle: func(ctx context.Context, info scheduler.CycleInfo) error {
			starts = append(starts, info.StartedAt)
			clock.Advance(cycleLength)
			if len(starts) == cycles {
				cancel()
			}
			if ctx.Err() != nil {
				t.Errorf("cycle context cancelled during cycle %d", info.Sequence)
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.State() != scheduler.StateTerminated {
		t.Fatalf("expected terminated, got %s", s.State())
	}
	return starts
}

func TestRunKeepsHourlyCadence(t *testing.T) {
	starts := runCycles(t, 24, 10*time.Minute, 3)
	want := []time.Time{midnight(), midnight().Add(time.Hour), midnight().Add(2 * time.Hour)}
	if len(starts) != len(want) {
		t.Fatalf("expected %d cycles, got %d", len(want), len(starts))
	}
	for i := range want {
		if !starts[i].Equal(want[i]) {
			t.Fatalf("cycle %d started at %s, want %s", i, starts[i].Format(time.TimeOnly), want[i].Format(time.TimeOnly))
		}
	}
}

func TestRunStartsImmediatelyAfterOverrun(t *testing.T) {
	starts := runCycles(t, 24, 90*time.Minute, 3)
	want := []time.Duration{0, 90 * time.Minute, 180 * time.Minute}
	for i, offset := range want {
		if got := starts[i].Sub(midnight()); got != offset {
			t.Fatalf("cycle %d started at +%s, want +%s", i, got, offset)
		}
	}
}

func TestRunOnceExits(t *testing.T) {
	var states []scheduler.State
	calls := 0
	s, err := scheduler.New(scheduler.Options{
		RunsPerDay: 0,
		Clock:      &fakeClock{now: midnight()},
		OnState:    func(st scheduler.State) { states = append(states, st) },
		Cycle: func(context.Context, scheduler.CycleInfo) error {
			calls++
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one cycle, got %d", calls)
	}
	want := []scheduler.State{scheduler.StateRunning, scheduler.StateExecuting, scheduler.StateTerminated}
	if len(states) != len(want) {
		t.Fatalf("unexpected transitions %v", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("unexpected transitions %v", states)
		}
	}
	if err := s.Run(context.Background()); err != scheduler.ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStopDuringSleepReturnsPromptly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sleeping := make(chan struct{})
	var once sync.Once
	s, err := scheduler.New(scheduler.Options{
		RunsPerDay: 1,
		Clock:      &blockingClock{fakeClock{now: midnight()}},
		OnState: func(st scheduler.State) {
			if st == scheduler.StateSleeping {
				once.Do(func() { close(sleeping) })
			}
		},
		Cycle: func(context.Context, scheduler.CycleInfo) error { return nil },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-sleeping:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never went to sleep")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop while sleeping")
	}
}

func TestStopDuringCycleLetsItFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	finished := false
	s, err := scheduler.New(scheduler.Options{
		RunsPerDay: 24,
		Clock:      &fakeClock{now: midnight()},
		Cycle: func(cycleCtx context.Context, _ scheduler.CycleInfo) error {
			cancel()
			select {
			case <-cycleCtx.Done():
				return cycleCtx.Err()
			case <-time.After(20 * time.Millisecond):
			}
			finished = true
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !finished {
		t.Fatal("expected in-flight cycle to complete after stop")
	}
}

func TestCycleFailuresDoNotStopTheLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	s, err := scheduler.New(scheduler.Options{
		RunsPerDay: 48,
		Clock:      &fakeClock{now: midnight()},
		Cycle: func(context.Context, scheduler.CycleInfo) error {
			calls++
			switch calls {
			case 1:
				panic("stage exploded")
			case 2:
				return context.DeadlineExceeded
			default:
				cancel()
				return nil
			}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected loop to survive failures, got %d calls", calls)
	}
}

func TestNewRejectsNegativeRuns(t *testing.T) {
	if _, err := scheduler.New(scheduler.Options{RunsPerDay: -1, Cycle: func(context.Context, scheduler.CycleInfo) error { return nil }}); err == nil {
		t.Fatal("expected error for negative runs_per_day")
	}
}
