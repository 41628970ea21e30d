package supervisor

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrAlreadyRunning matches AlreadyRunningError.
	ErrAlreadyRunning = errors.New("scheduler already running")
	// ErrNotRunning matches NotRunningError.
	ErrNotRunning = errors.New("scheduler not running")
	// ErrDiscoveryAmbiguous marks a negative discovery inside the startup
	// grace window. It never leaves this package.
	ErrDiscoveryAmbiguous = errors.New("discovery ambiguous during startup grace")
)

// AlreadyRunningError rejects a start while a scheduler is alive.
type AlreadyRunningError struct {
	PID int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("scheduler already running (pid %d)", e.PID)
}

func (e *AlreadyRunningError) Is(target error) bool { return target == ErrAlreadyRunning }

// NotRunningError rejects a stop when no scheduler is alive.
type NotRunningError struct{}

func (e *NotRunningError) Error() string { return "scheduler is not running" }

func (e *NotRunningError) Is(target error) bool { return target == ErrNotRunning }

// StartFailedError reports a spawned scheduler that did not survive the
// startup grace period.
type StartFailedError struct {
	PID      int
	ExitCode int
	Reason   string
	Err      error
}

func (e *StartFailedError) Error() string {
	msg := "scheduler failed to start"
	if e.PID > 0 {
		msg += fmt.Sprintf(" (pid %d)", e.PID)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StartFailedError) Unwrap() error { return e.Err }

// StopFailedError reports a scheduler that survived SIGKILL.
type StopFailedError struct {
	PIDs []int
}

func (e *StopFailedError) Error() string {
	return fmt.Sprintf("scheduler still alive after SIGKILL (pids %v)", e.PIDs)
}
