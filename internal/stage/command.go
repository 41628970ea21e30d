package stage

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/afero"

	"diarist/internal/config"
	"diarist/internal/services"
)

const outputTailBytes = 2048

// CommandStage runs an external program as one pipeline stage and judges it
// by its exit status.
type CommandStage struct {
	name    string
	argv    []string
	dir     string
	env     []string
	timeout time.Duration
	input   string
	outputs string
	filter  ExtensionFilter
	fs      afero.Fs
}

// NewCommandStage builds a stage from its configuration block. An empty
// command yields a stage that always reports no-op.
func NewCommandStage(name string, stageCfg config.Stage, pipeline config.Pipeline) (*CommandStage, error) {
	var argv []string
	if strings.TrimSpace(stageCfg.Command) != "" {
		parsed, err := shellquote.Split(stageCfg.Command)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "stage", name, "parse command", err)
		}
		argv = parsed
	}
	return &CommandStage{
		name:    name,
		argv:    argv,
		dir:     stageCfg.WorkingDir,
		env:     append([]string(nil), stageCfg.Env...),
		timeout: time.Duration(stageCfg.TimeoutSeconds) * time.Second,
		input:   stageCfg.InputDir,
		outputs: stageCfg.OutputsDir,
		filter:  ExtensionFilter{Allow: pipeline.AudioExtensions, Deny: pipeline.IgnoreExtensions},
		fs:      afero.NewOsFs(),
	}, nil
}

// WithInputFilter replaces the extension filter used for the input directory.
func (s *CommandStage) WithInputFilter(filter ExtensionFilter) *CommandStage {
	s.filter = filter
	return s
}

// WithFs swaps the filesystem used to inspect input and output directories.
func (s *CommandStage) WithFs(fs afero.Fs) *CommandStage {
	if fs != nil {
		s.fs = fs
	}
	return s
}

func (s *CommandStage) Name() string { return s.name }

// Run executes the command. It is a no-op when no command is configured or
// when an input directory is configured and holds nothing to process.
func (s *CommandStage) Run(ctx context.Context) (Result, error) {
	if len(s.argv) == 0 {
		return NoOp(s.name, "no command configured"), nil
	}
	if s.input != "" {
		pending, err := PendingInput(s.fs, s.input, s.filter)
		if err != nil {
			return Result{Stage: s.name, Outcome: OutcomeFailed, ExitCode: -1},
				services.Wrap(services.ErrExternalTool, "stage", s.name, "scan input", err)
		}
		if len(pending) == 0 {
			return NoOp(s.name, "no pending input"), nil
		}
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, s.argv[0], s.argv[1:]...)
	cmd.Dir = s.dir
	cmd.Env = append(os.Environ(), s.env...)
	var output tailBuffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	result := Result{Stage: s.name, ExitCode: exitCode(cmd, err)}
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Message = lastLine(output.String())
		marker := services.ErrExternalTool
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		return result, services.Wrap(marker, "stage", s.name, strings.Join(s.argv, " "), err)
	}

	result.Outcome = OutcomeSucceeded
	result.Message = lastLine(output.String())
	if s.outputs != "" {
		outputs, listErr := PendingInput(s.fs, s.outputs, ExtensionFilter{})
		if listErr == nil {
			result.Outputs = outputs
		}
	}
	return result, nil
}

// HealthCheck reports whether the configured program can be found.
func (s *CommandStage) HealthCheck(context.Context) Health {
	if len(s.argv) == 0 {
		return Unhealthy(s.name, "command not configured")
	}
	if _, err := exec.LookPath(s.argv[0]); err != nil {
		return Unhealthy(s.name, "binary "+s.argv[0]+" not found")
	}
	return Healthy(s.name)
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// tailBuffer keeps only the trailing bytes of a stream.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if extra := t.buf.Len() - outputTailBytes; extra > 0 {
		t.buf.Next(extra)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
