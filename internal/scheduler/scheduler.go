package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"diarist/internal/logging"
	"diarist/internal/metrics"
	"diarist/internal/services"
)

// State is the scheduler lifecycle position.
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateExecuting  State = "executing"
	StateSleeping   State = "sleeping"
	StateTerminated State = "terminated"
)

// States lists every state in lifecycle order.
func States() []State {
	return []State{StateIdle, StateRunning, StateExecuting, StateSleeping, StateTerminated}
}

// ErrAlreadyStarted is returned when Run is called twice.
var ErrAlreadyStarted = errors.New("scheduler already started")

// CycleInfo identifies one cycle.
type CycleInfo struct {
	ID        string
	Sequence  int
	StartedAt time.Time
	// PlannedNext is when the following cycle is due if this one finishes
	// within its interval. Zero in run-once mode.
	PlannedNext time.Time
}

// CycleFunc performs one pipeline pass. Its context is never cancelled by a
// stop request.
type CycleFunc func(ctx context.Context, info CycleInfo) error

// Options configures a Scheduler.
type Options struct {
	RunsPerDay int
	Cycle      CycleFunc
	Clock      Clock
	Logger     *slog.Logger
	OnState    func(State)
}

// Scheduler is a sequential interval loop.
type Scheduler struct {
	runsPerDay int
	interval   time.Duration
	cycle      CycleFunc
	clock      Clock
	logger     *slog.Logger
	onState    func(State)

	mu    sync.Mutex
	state State
}

// New builds a Scheduler. RunsPerDay is read once; later configuration
// edits take effect only in a new Scheduler.
func New(opts Options) (*Scheduler, error) {
	if opts.RunsPerDay < 0 {
		return nil, services.Wrap(services.ErrConfiguration, "scheduler", "new", "runs_per_day must be >= 0", nil)
	}
	if opts.Cycle == nil {
		return nil, services.Wrap(services.ErrConfiguration, "scheduler", "new", "cycle function required", nil)
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{
		runsPerDay: opts.RunsPerDay,
		interval:   Interval(opts.RunsPerDay),
		cycle:      opts.Cycle,
		clock:      clock,
		logger:     logging.NewComponentLogger(opts.Logger, "scheduler"),
		onState:    opts.OnState,
		state:      StateIdle,
	}, nil
}

// Interval returns the period between cycle starts, or 0 for run-once.
func Interval(runsPerDay int) time.Duration {
	if runsPerDay <= 0 {
		return 0
	}
	return 24 * time.Hour / time.Duration(runsPerDay)
}

// SleepDuration is how long to wait after a cycle that took elapsed.
func SleepDuration(interval, elapsed time.Duration) time.Duration {
	return max(0, interval-elapsed)
}

// NextRun returns the start time of the cycle following one that began at
// start and took elapsed.
func NextRun(start time.Time, elapsed, interval time.Duration) time.Time {
	return start.Add(elapsed + SleepDuration(interval, elapsed))
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interval returns the configured period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	metrics.SetSchedulerState(string(state), stateNames())
	if s.onState != nil {
		s.onState(state)
	}
}

// Run drives cycles until ctx is cancelled, or once when runs_per_day is 0.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.mu.Unlock()

	s.setState(StateRunning)
	defer s.setState(StateTerminated)

	s.logger.Info("scheduler running",
		logging.String(logging.FieldEventType, "scheduler_running"),
		logging.Int("runs_per_day", s.runsPerDay),
		logging.Duration("interval", s.interval),
	)

	for seq := 1; ; seq++ {
		if ctx.Err() != nil {
			s.logStopped("stop requested")
			return nil
		}
		start := s.clock.Now()
		info := CycleInfo{ID: uuid.NewString(), Sequence: seq, StartedAt: start}
		if s.interval > 0 {
			info.PlannedNext = start.Add(s.interval)
		}

		s.setState(StateExecuting)
		s.execute(ctx, info)

		if s.runsPerDay == 0 {
			s.logStopped("run-once cycle complete")
			return nil
		}
		elapsed := s.clock.Now().Sub(start)
		wait := SleepDuration(s.interval, elapsed)
		if ctx.Err() != nil {
			s.logStopped("stop requested")
			return nil
		}

		s.setState(StateSleeping)
		s.logger.Info("scheduler sleeping",
			logging.String(logging.FieldEventType, "scheduler_sleep"),
			logging.Duration("elapsed", elapsed),
			logging.Duration("sleep", wait),
			logging.Time("next_cycle_at", start.Add(elapsed+wait)),
		)
		select {
		case <-ctx.Done():
			s.logStopped("stop requested while sleeping")
			return nil
		case <-s.clock.After(wait):
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, info CycleInfo) {
	cycleCtx := services.WithCycleID(context.WithoutCancel(ctx), info.ID)
	logger := logging.WithContext(cycleCtx, s.logger)
	logger.Info("cycle started",
		logging.String(logging.FieldEventType, "cycle_start"),
		logging.Int("sequence", info.Sequence),
	)
	err := s.safeCycle(cycleCtx, info)
	if err != nil {
		logging.ErrorWithContext(logger, "cycle failed", "cycle_failure",
			logging.Int("sequence", info.Sequence),
			logging.String(logging.FieldErrorHint, "the next cycle runs on schedule"),
			logging.Error(err),
		)
		return
	}
	logger.Info("cycle finished",
		logging.String(logging.FieldEventType, "cycle_complete"),
		logging.Int("sequence", info.Sequence),
		logging.Duration("duration", s.clock.Now().Sub(info.StartedAt)),
	)
}

func (s *Scheduler) safeCycle(ctx context.Context, info CycleInfo) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Newf("cycle panic: %v", rec)
		}
	}()
	return s.cycle(ctx, info)
}

func (s *Scheduler) logStopped(reason string) {
	s.logger.Info("scheduler terminated",
		logging.String(logging.FieldEventType, "scheduler_terminated"),
		logging.String("reason", reason),
	)
}

func stateNames() []string {
	states := States()
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = string(st)
	}
	return names
}
