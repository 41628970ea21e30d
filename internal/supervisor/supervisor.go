package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"

	"diarist/internal/config"
	"diarist/internal/logging"
	"diarist/internal/metrics"
	"diarist/internal/services"
	"diarist/internal/store"
)

// StatusStore is the persistence the supervisor reads and corrects.
type StatusStore interface {
	Status(ctx context.Context) (store.Status, error)
	SaveStatus(ctx context.Context, status store.Status) error
	MarkRunning(ctx context.Context, pid int, at time.Time) error
	MarkStopped(ctx context.Context, pid int, at time.Time) (bool, error)
	AppendLog(ctx context.Context, entry store.LogEntry) (int64, error)
	RecentLogs(ctx context.Context, limit int) ([]store.LogEntry, error)
}

// StopOutcome describes how a stop request ended.
type StopOutcome string

const (
	StopGraceful       StopOutcome = "graceful"
	StopForced         StopOutcome = "forced"
	StopAlreadyStopped StopOutcome = "already-stopped"
)

// StartAck acknowledges a successful start.
type StartAck struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	// Completed is set when the scheduler ran its single cycle and exited
	// cleanly inside the startup grace period.
	Completed bool `json:"completed"`
}

// StopAck acknowledges a successful stop.
type StopAck struct {
	PIDs      []int       `json:"pids"`
	Outcome   StopOutcome `json:"outcome"`
	StoppedAt time.Time   `json:"stopped_at"`
}

// Snapshot is the reconciled scheduler status.
type Snapshot struct {
	store.Status
	PIDs []int `json:"pids,omitempty"`
}

// Deps wires a Supervisor. Zero durations fall back to 5s grace, 5s
// termination timeout, and 200ms polling.
type Deps struct {
	Store              StatusStore
	Processes          ProcessTable
	Launcher           Launcher
	Signaller          Signaller
	Executable         string
	LockPath           string
	StartupGrace       time.Duration
	TerminationTimeout time.Duration
	PollInterval       time.Duration
	KillWait           time.Duration
	Logger             *slog.Logger
	Now                func() time.Time
}

// Supervisor starts, stops, and reports on the scheduler process.
type Supervisor struct {
	store      StatusStore
	discoverer *Discoverer
	launcher   Launcher
	signaller  Signaller
	mu         sync.Mutex
	lock       *flock.Flock
	grace      time.Duration
	terminate  time.Duration
	poll       time.Duration
	killWait   time.Duration
	logger     *slog.Logger
	now        func() time.Time
	closer     func() error
}

// New builds a Supervisor from explicit dependencies.
func New(deps Deps) (*Supervisor, error) {
	if deps.Store == nil {
		return nil, errors.New("supervisor: store is required")
	}
	if deps.Launcher == nil {
		return nil, errors.New("supervisor: launcher is required")
	}
	if strings.TrimSpace(deps.LockPath) == "" {
		return nil, errors.New("supervisor: lock path is required")
	}
	s := &Supervisor{
		store:      deps.Store,
		discoverer: NewDiscoverer(deps.Processes, deps.Executable),
		launcher:   deps.Launcher,
		signaller:  deps.Signaller,
		lock:       flock.New(deps.LockPath),
		grace:      deps.StartupGrace,
		terminate:  deps.TerminationTimeout,
		poll:       deps.PollInterval,
		killWait:   deps.KillWait,
		logger:     logging.NewComponentLogger(deps.Logger, "supervisor"),
		now:        deps.Now,
	}
	if s.signaller == nil {
		s.signaller = UnixSignaller{}
	}
	if s.grace <= 0 {
		s.grace = 5 * time.Second
	}
	if s.terminate <= 0 {
		s.terminate = 5 * time.Second
	}
	if s.poll <= 0 {
		s.poll = 200 * time.Millisecond
	}
	if s.killWait <= 0 {
		s.killWait = 2 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Open builds a Supervisor against the configured store and the running
// executable. configPath is passed to the spawned scheduler.
func Open(cfg *config.Config, configPath string, logger *slog.Logger) (*Supervisor, error) {
	if cfg == nil {
		return nil, errors.New("supervisor: config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, errors.Wrap(err, "resolve executable")
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	sup, err := New(Deps{
		Store:              st,
		Processes:          SystemProcessTable{},
		Launcher:           ExecLauncher{Executable: exe, ConfigPath: configPath},
		Signaller:          UnixSignaller{},
		Executable:         exe,
		LockPath:           cfg.SupervisorLockPath(),
		StartupGrace:       cfg.StartupGrace(),
		TerminationTimeout: cfg.TerminationTimeout(),
		PollInterval:       cfg.PollInterval(),
		Logger:             logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	sup.closer = st.Close
	return sup, nil
}

// Close releases the store when Open created it.
func (s *Supervisor) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}

// Start spawns the scheduler unless one is already alive.
func (s *Supervisor) Start(ctx context.Context, actor string) (StartAck, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return StartAck{}, err
	}
	defer unlock()
	// Bookkeeping outlives a caller that gives up mid-grace or mid-stop.
	persist := context.WithoutCancel(ctx)

	logger := s.logger.With(logging.String(logging.FieldActor, actor))
	snap, err := s.Status(ctx)
	if err != nil {
		return StartAck{}, err
	}
	if len(snap.PIDs) > 0 {
		rejected := &AlreadyRunningError{PID: snap.PIDs[0]}
		s.appendLog(persist, actor, store.ActionStart, false, rejected.Error())
		metrics.RecordSupervisorAction("start", "already-running")
		logger.Info("start rejected", logging.Int(logging.FieldPID, rejected.PID))
		return StartAck{}, rejected
	}

	child, err := s.launcher.Launch(ctx)
	if err != nil {
		failed := &StartFailedError{Reason: "spawn", Err: err}
		s.recordStartFailure(persist, actor, snap.Status, failed)
		return StartAck{}, failed
	}
	pid := child.PID()
	startedAt := s.now()
	if err := s.store.MarkRunning(persist, pid, startedAt); err != nil {
		return StartAck{}, services.Wrap(services.ErrTransient, "supervisor", "mark running", "persist scheduler start", err)
	}
	logger.Info("scheduler spawned",
		logging.Int(logging.FieldPID, pid),
		logging.Duration("startup_grace", s.grace),
	)

	ack := StartAck{PID: pid, StartedAt: startedAt}
	completed, err := s.awaitStartup(ctx, child)
	if err != nil {
		s.recordStartFailure(persist, actor, store.Status{LastStarted: &startedAt}, err)
		return StartAck{}, err
	}

	s.appendLog(persist, actor, store.ActionStart, true, fmt.Sprintf("started scheduler (pid %d)", pid))
	if completed {
		ack.Completed = true
		stoppedAt := s.now()
		// The scheduler records its own completion when it exits first.
		updated, err := s.store.MarkStopped(persist, pid, stoppedAt)
		if err != nil {
			logger.Warn("failed to mark completed scheduler stopped", logging.Error(err))
		}
		if updated {
			s.appendLog(persist, actor, store.ActionStop, true, "completed")
		}
		metrics.RecordSupervisorAction("start", "completed")
		metrics.SetSchedulerRunning(false)
		logger.Info("scheduler completed single cycle", logging.Int(logging.FieldPID, pid))
		return ack, nil
	}
	metrics.RecordSupervisorAction("start", "started")
	metrics.SetSchedulerRunning(true)
	return ack, nil
}

// awaitStartup polls discovery until the child is seen, exits, or the grace
// period ends. It reports completed when the child exited with status 0.
func (s *Supervisor) awaitStartup(ctx context.Context, child Child) (bool, error) {
	pid := child.PID()
	deadline := s.now().Add(s.grace)
	for {
		select {
		case <-child.Exited():
			if code := child.ExitCode(); code != 0 {
				return false, &StartFailedError{PID: pid, ExitCode: code, Reason: fmt.Sprintf("exited with status %d", code)}
			}
			return true, nil
		default:
		}

		disc, err := s.discoverer.Discover(ctx)
		if err == nil && disc.Alive {
			return false, nil
		}
		if err == nil {
			err = ErrDiscoveryAmbiguous
		}
		s.logger.Debug("scheduler not yet discovered", logging.Int(logging.FieldPID, pid), logging.Error(err))

		if !s.now().Before(deadline) {
			select {
			case <-child.Exited():
				continue
			default:
			}
			if killErr := s.signaller.Kill(pid); killErr != nil && !errors.Is(killErr, ErrNoSuchProcess) {
				s.logger.Warn("failed to kill undiscovered scheduler", logging.Int(logging.FieldPID, pid), logging.Error(killErr))
			}
			return false, &StartFailedError{PID: pid, ExitCode: -1, Reason: fmt.Sprintf("not discovered within %s", s.grace)}
		}
		select {
		case <-ctx.Done():
			return false, &StartFailedError{PID: pid, ExitCode: -1, Reason: "cancelled", Err: ctx.Err()}
		case <-child.Exited():
		case <-time.After(s.poll):
		}
	}
}

func (s *Supervisor) recordStartFailure(ctx context.Context, actor string, prior store.Status, cause error) {
	stopped := s.now()
	if err := s.store.SaveStatus(ctx, store.Status{
		IsRunning:   false,
		LastStarted: prior.LastStarted,
		LastStopped: &stopped,
		LastCycleAt: prior.LastCycleAt,
	}); err != nil {
		s.logger.Warn("failed to persist start failure", logging.Error(err))
	}
	s.appendLog(ctx, actor, store.ActionStart, false, cause.Error())
	metrics.RecordSupervisorAction("start", "failed")
	metrics.SetSchedulerRunning(false)
	logging.ErrorWithContext(s.logger, "scheduler start failed", "supervisor_start_failed",
		logging.String(logging.FieldActor, actor),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "run `diarist scheduler` in the foreground to see why it exits"),
	)
}

// Stop terminates every live scheduler, escalating to SIGKILL after the
// termination timeout.
func (s *Supervisor) Stop(ctx context.Context, actor string) (StopAck, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return StopAck{}, err
	}
	defer unlock()
	// Once signalled, the stop runs to completion and is recorded even if
	// the caller goes away; both waits are bounded.
	persist := context.WithoutCancel(ctx)

	logger := s.logger.With(logging.String(logging.FieldActor, actor))
	row, err := s.store.Status(ctx)
	if err != nil {
		return StopAck{}, err
	}
	disc, err := s.discoverer.Discover(ctx)
	if err != nil {
		return StopAck{}, services.Wrap(services.ErrTransient, "supervisor", "discover", "scan process table", err)
	}
	if !disc.Alive {
		if row.IsRunning {
			s.correctStopped(persist, row, "stop found no scheduler process")
		}
		s.appendLog(persist, actor, store.ActionStop, false, "already stopped")
		metrics.RecordSupervisorAction("stop", "not-running")
		logger.Info("stop rejected; scheduler not running")
		return StopAck{}, &NotRunningError{}
	}

	pids := disc.PIDs
	vanished := 0
	for _, pid := range pids {
		err := s.signaller.Terminate(pid)
		switch {
		case errors.Is(err, ErrNoSuchProcess):
			vanished++
		case err != nil:
			logger.Warn("SIGTERM failed", logging.Int(logging.FieldPID, pid), logging.Error(err))
		}
	}

	outcome := StopGraceful
	if vanished == len(pids) {
		outcome = StopAlreadyStopped
	}
	remaining, err := s.awaitExit(persist, pids, s.terminate)
	if err != nil {
		return StopAck{}, err
	}
	if len(remaining) > 0 {
		outcome = StopForced
		logger.Warn("scheduler ignored SIGTERM; sending SIGKILL",
			logging.Any("pids", remaining),
			logging.Duration("termination_timeout", s.terminate),
		)
		for _, pid := range remaining {
			if err := s.signaller.Kill(pid); err != nil && !errors.Is(err, ErrNoSuchProcess) {
				logger.Warn("SIGKILL failed", logging.Int(logging.FieldPID, pid), logging.Error(err))
			}
		}
		remaining, err = s.awaitExit(persist, remaining, s.killWait)
		if err != nil {
			return StopAck{}, err
		}
		if len(remaining) > 0 {
			failed := &StopFailedError{PIDs: remaining}
			s.appendLog(persist, actor, store.ActionStop, false, failed.Error())
			metrics.RecordSupervisorAction("stop", "failed")
			logging.ErrorWithContext(logger, "scheduler survived SIGKILL", "supervisor_stop_failed",
				logging.Any("pids", remaining),
			)
			return StopAck{}, failed
		}
	}

	stoppedAt := s.now()
	updated := false
	if pid := row.PIDValue(); pid > 0 {
		updated, err = s.store.MarkStopped(persist, pid, stoppedAt)
		if err != nil {
			return StopAck{}, err
		}
	}
	if !updated {
		if err := s.store.SaveStatus(persist, store.Status{
			IsRunning:   false,
			LastStarted: row.LastStarted,
			LastStopped: &stoppedAt,
			LastCycleAt: row.LastCycleAt,
		}); err != nil {
			return StopAck{}, err
		}
	}
	s.appendLog(persist, actor, store.ActionStop, true, fmt.Sprintf("stopped scheduler (pid %s, %s)", joinPIDs(pids), outcome))
	metrics.RecordSupervisorAction("stop", string(outcome))
	metrics.SetSchedulerRunning(false)
	logger.Info("scheduler stopped", logging.Any("pids", pids), logging.String("outcome", string(outcome)))
	return StopAck{PIDs: pids, Outcome: outcome, StoppedAt: stoppedAt}, nil
}

// awaitExit polls discovery until none of pids is alive or timeout elapses.
func (s *Supervisor) awaitExit(ctx context.Context, pids []int, timeout time.Duration) ([]int, error) {
	deadline := s.now().Add(timeout)
	for {
		disc, err := s.discoverer.Discover(ctx)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "supervisor", "discover", "scan process table", err)
		}
		var remaining []int
		for _, pid := range pids {
			if disc.Has(pid) {
				remaining = append(remaining, pid)
			}
		}
		if len(remaining) == 0 || !s.now().Before(deadline) {
			return remaining, nil
		}
		select {
		case <-ctx.Done():
			return remaining, ctx.Err()
		case <-time.After(s.poll):
		}
	}
}

// Status reads the persisted status and corrects it against the process
// table. A scheduler started less than the grace period ago is given until
// the window closes to appear before it is declared dead.
func (s *Supervisor) Status(ctx context.Context) (Snapshot, error) {
	for {
		row, err := s.store.Status(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		disc, err := s.discoverer.Discover(ctx)
		if err != nil {
			return Snapshot{}, services.Wrap(services.ErrTransient, "supervisor", "discover", "scan process table", err)
		}

		if disc.Alive {
			if !row.IsRunning || !disc.Has(row.PIDValue()) {
				row, err = s.correctRunning(ctx, row, disc)
				if err != nil {
					return Snapshot{}, err
				}
			}
			metrics.SetSchedulerRunning(true)
			return Snapshot{Status: row, PIDs: disc.PIDs}, nil
		}

		if row.IsRunning {
			if s.withinGrace(row) {
				s.logger.Debug("scheduler not discovered during startup grace", logging.Error(ErrDiscoveryAmbiguous))
				select {
				case <-ctx.Done():
					return Snapshot{}, ctx.Err()
				case <-time.After(s.poll):
				}
				continue
			}
			row, err = s.correctStopped(ctx, row, "scheduler process not found")
			if err != nil {
				return Snapshot{}, err
			}
		}
		metrics.SetSchedulerRunning(false)
		return Snapshot{Status: row}, nil
	}
}

func (s *Supervisor) withinGrace(row store.Status) bool {
	if row.LastStarted == nil {
		return false
	}
	return s.now().Before(row.LastStarted.Add(s.grace))
}

func (s *Supervisor) correctRunning(ctx context.Context, row store.Status, disc Discovery) (store.Status, error) {
	pid := disc.PID()
	startedAt := disc.StartedAt
	if startedAt.IsZero() {
		startedAt = s.now()
	}
	if err := s.store.MarkRunning(ctx, pid, startedAt); err != nil {
		return row, err
	}
	metrics.RecordStatusCorrection("running")
	logging.WarnWithContext(s.logger, "status corrected to running", "status_corrected",
		logging.Int(logging.FieldPID, pid),
		logging.Bool("recorded_running", row.IsRunning),
		logging.Int("recorded_pid", row.PIDValue()),
		logging.String(logging.FieldImpact, "scheduler was started outside this supervisor"),
	)
	return s.store.Status(ctx)
}

func (s *Supervisor) correctStopped(ctx context.Context, row store.Status, reason string) (store.Status, error) {
	stoppedAt := s.now()
	if err := s.store.SaveStatus(ctx, store.Status{
		IsRunning:   false,
		LastStarted: row.LastStarted,
		LastStopped: &stoppedAt,
		LastCycleAt: row.LastCycleAt,
	}); err != nil {
		return row, err
	}
	metrics.RecordStatusCorrection("stopped")
	logging.WarnWithContext(s.logger, "status corrected to stopped", "status_corrected",
		logging.Int("recorded_pid", row.PIDValue()),
		logging.String("reason", reason),
		logging.String(logging.FieldImpact, "scheduler exited without recording its stop"),
	)
	return s.store.Status(ctx)
}

// Logs returns up to limit recent log entries, newest first.
func (s *Supervisor) Logs(ctx context.Context, limit int) ([]store.LogEntry, error) {
	return s.store.RecentLogs(ctx, limit)
}

// acquire serialises start and stop within this process (mu) and across
// control processes (the file lock).
func (s *Supervisor) acquire(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if err := os.MkdirAll(filepath.Dir(s.lock.Path()), 0o755); err != nil {
		s.mu.Unlock()
		return nil, errors.Wrap(err, "create lock directory")
	}
	locked, err := s.lock.TryLockContext(ctx, s.poll)
	if err == nil && !locked {
		err = errors.New("lock held by another process")
	}
	if err != nil {
		s.mu.Unlock()
		return nil, errors.Wrap(err, "acquire supervisor lock")
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release supervisor lock", logging.Error(err))
		}
		s.mu.Unlock()
	}, nil
}

func (s *Supervisor) appendLog(ctx context.Context, actor string, action store.Action, success bool, message string) {
	if _, err := s.store.AppendLog(ctx, store.LogEntry{
		Timestamp: s.now(),
		Actor:     actor,
		Action:    action,
		Success:   success,
		Message:   message,
	}); err != nil {
		s.logger.Warn("failed to append scheduler log", logging.String("action", string(action)), logging.Error(err))
	}
}

func joinPIDs(pids []int) string {
	parts := make([]string, 0, len(pids))
	for _, pid := range slices.Sorted(slices.Values(pids)) {
		parts = append(parts, fmt.Sprint(pid))
	}
	return strings.Join(parts, ",")
}
