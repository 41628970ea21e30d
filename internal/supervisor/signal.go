package supervisor

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// ErrNoSuchProcess reports a signal sent to a pid that already exited.
var ErrNoSuchProcess = errors.New("no such process")

// Signaller delivers termination signals.
type Signaller interface {
	Terminate(pid int) error
	Kill(pid int) error
}

// UnixSignaller signals processes with kill(2).
type UnixSignaller struct{}

// Terminate sends SIGTERM to pid alone; the scheduler lets in-flight stages
// finish before exiting.
func (UnixSignaller) Terminate(pid int) error { return send(pid, unix.SIGTERM) }

// Kill sends SIGKILL to the process group pid leads. The launcher starts the
// scheduler in its own session, so stage subprocesses die with it instead of
// being orphaned. A pid that leads no group is killed alone.
func (UnixSignaller) Kill(pid int) error {
	if pid > 0 && unix.Kill(-pid, unix.SIGKILL) == nil {
		return nil
	}
	return send(pid, unix.SIGKILL)
}

func send(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return errors.Newf("invalid pid %d", pid)
	}
	err := unix.Kill(pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return ErrNoSuchProcess
	}
	if err != nil {
		return errors.Wrapf(err, "send %s to pid %d", unix.SignalName(sig), pid)
	}
	return nil
}
