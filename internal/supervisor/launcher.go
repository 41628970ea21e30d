package supervisor

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/cockroachdb/errors"
)

// Child is a spawned scheduler process.
type Child interface {
	PID() int
	// Exited is closed once the process has been reaped.
	Exited() <-chan struct{}
	// ExitCode is valid after Exited is closed.
	ExitCode() int
}

// Launcher spawns the scheduler process.
type Launcher interface {
	Launch(ctx context.Context) (Child, error)
}

// ExecLauncher runs `<executable> scheduler --config <path>` in its own
// session with stdio detached.
type ExecLauncher struct {
	Executable string
	ConfigPath string
	ExtraArgs  []string
}

// Args returns the scheduler command line after the executable.
func (l ExecLauncher) Args() []string {
	args := []string{SchedulerSubcommand}
	if l.ConfigPath != "" {
		args = append(args, "--config", l.ConfigPath)
	}
	return append(args, l.ExtraArgs...)
}

// Launch starts the process. The child outlives the caller; a goroutine waits
// on it so an early exit is observed and the zombie reaped.
func (l ExecLauncher) Launch(ctx context.Context) (Child, error) {
	if l.Executable == "" {
		return nil, errors.New("scheduler executable not set")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrap(err, "open null device")
	}
	defer devNull.Close()

	cmd := exec.Command(l.Executable, l.Args()...)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "spawn scheduler")
	}

	child := &execChild{pid: cmd.Process.Pid, done: make(chan struct{})}
	go child.wait(cmd)
	return child, nil
}

type execChild struct {
	pid  int
	done chan struct{}

	mu   sync.Mutex
	code int
}

func (c *execChild) wait(cmd *exec.Cmd) {
	err := cmd.Wait()
	code := 0
	if err != nil {
		code = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
	}
	c.mu.Lock()
	c.code = code
	c.mu.Unlock()
	close(c.done)
}

func (c *execChild) PID() int                { return c.pid }
func (c *execChild) Exited() <-chan struct{} { return c.done }

func (c *execChild) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}
