package transcribe

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"

	"diarist/internal/config"
	"diarist/internal/logging"
	"diarist/internal/services"
)

// LocalBackend runs a whisper-compatible CLI on this machine. Every failure
// is permanent: retrying the same binary on the same input does not help.
type LocalBackend struct {
	caps   Capabilities
	argv   []string
	logger *slog.Logger
}

// NewLocalBackend parses cfg.LocalCommand, which may carry leading arguments
// such as "uvx whisper".
func NewLocalBackend(cfg config.Transcription, caps Capabilities, logger *slog.Logger) (*LocalBackend, error) {
	argv, err := shellquote.Split(cfg.LocalCommand)
	if err != nil || len(argv) == 0 {
		if err == nil {
			err = errors.New("empty command")
		}
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "parse local_command", cfg.LocalCommand, err)
	}
	return &LocalBackend{
		caps:   caps,
		argv:   argv,
		logger: logging.NewComponentLogger(logger, "transcribe-local"),
	}, nil
}

func (b *LocalBackend) Name() string { return b.caps.Variant }

func (b *LocalBackend) Capabilities() Capabilities { return b.caps }

// Args returns the argument vector used to transcribe audioPath into outDir.
func (b *LocalBackend) Args(audioPath, outDir string, opts Options) []string {
	args := append([]string(nil), b.argv[1:]...)
	args = append(args, audioPath,
		"--model", b.caps.Model,
		"--output_format", "txt",
		"--output_dir", outDir,
	)
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	if opts.Prompt != "" {
		args = append(args, "--initial_prompt", opts.Prompt)
	}
	return args
}

// Transcribe runs the CLI into a scratch directory and reads back <stem>.txt.
func (b *LocalBackend) Transcribe(ctx context.Context, audioPath string, opts Options) (string, error) {
	outDir, err := os.MkdirTemp("", "diarist-whisper-*")
	if err != nil {
		return "", errors.Wrap(err, "create whisper output dir")
	}
	defer os.RemoveAll(outDir)

	cmd := exec.CommandContext(ctx, b.argv[0], b.Args(audioPath, outDir, opts)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.Wrap(ctxErr, "local transcription")
		}
		return "", &PermanentInputError{
			Variant: b.caps.Variant,
			Err:     errors.Wrapf(err, "%s: %s", b.argv[0], lastLine(string(output))),
		}
	}

	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	text, err := os.ReadFile(filepath.Join(outDir, stem+".txt"))
	if err != nil {
		return "", &PermanentInputError{Variant: b.caps.Variant, Err: errors.Wrap(err, "read whisper output")}
	}
	b.logger.Debug("local transcription finished",
		logging.String("file", filepath.Base(audioPath)),
		logging.Int("chars", len(text)),
	)
	return strings.TrimSpace(string(text)), nil
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
