package transcribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"diarist/internal/config"
	"diarist/internal/logging"
	"diarist/internal/services"
	"diarist/internal/stage"
)

// StageName is the pipeline slot the built-in transcriber fills.
const StageName = "transcribe"

// Transcriber is the part of Selector the stage depends on.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
	Backend() Backend
}

// Stage transcribes every pending download, writes one transcript per file,
// appends it to the combined transcription file, and moves the audio aside.
type Stage struct {
	transcriber  Transcriber
	fs           afero.Fs
	downloads    string
	processed    string
	transcripts  string
	combinedPath string
	filter       stage.ExtensionFilter
	now          func() time.Time
	logger       *slog.Logger
}

// NewStage wires the transcribe stage from configuration.
func NewStage(cfg *config.Config, transcriber Transcriber, logger *slog.Logger) *Stage {
	return &Stage{
		transcriber:  transcriber,
		fs:           afero.NewOsFs(),
		downloads:    cfg.Paths.DownloadsDir,
		processed:    cfg.Paths.ProcessedDir,
		transcripts:  cfg.Paths.TranscriptsDir,
		combinedPath: cfg.TranscriptionFilePath(),
		filter: stage.ExtensionFilter{
			Allow: cfg.Pipeline.AudioExtensions,
			Deny:  cfg.Pipeline.IgnoreExtensions,
		},
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "transcribe"),
	}
}

// WithFs swaps the filesystem used for input, transcripts, and moves.
func (s *Stage) WithFs(fs afero.Fs) *Stage {
	if fs != nil {
		s.fs = fs
	}
	return s
}

// WithClock overrides the timestamp source used in transcript headers.
func (s *Stage) WithClock(now func() time.Time) *Stage {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Stage) Name() string { return StageName }

// Run transcribes each pending file. One file failing does not stop the
// others; the stage fails when any file failed.
func (s *Stage) Run(ctx context.Context) (stage.Result, error) {
	files, err := stage.PendingInput(s.fs, s.downloads, s.filter)
	if err != nil {
		return stage.Result{Stage: StageName, Outcome: stage.OutcomeFailed, ExitCode: -1},
			services.Wrap(services.ErrExternalTool, "transcribe", "scan downloads", s.downloads, err)
	}
	if len(files) == 0 {
		return stage.NoOp(StageName, "no pending audio"), nil
	}

	logger := logging.WithContext(ctx, s.logger)
	var (
		outputs []string
		failed  int
		lastErr error
	)
	for _, file := range files {
		out, err := s.processFile(ctx, file)
		if err != nil {
			failed++
			lastErr = err
			logging.ErrorWithContext(logger, "transcription failed", "transcription_failed",
				logging.String("file", filepath.Base(file)),
				logging.String("error_class", services.Classify(err)),
				logging.String(logging.FieldErrorHint, failureHint(err)),
				logging.Error(err),
			)
			continue
		}
		logger.Info("transcription saved",
			logging.String(logging.FieldEventType, "transcription_saved"),
			logging.String("file", filepath.Base(file)),
			logging.String("transcript", out),
		)
		outputs = append(outputs, out)
	}

	result := stage.Result{Stage: StageName, Outputs: outputs}
	if failed > 0 {
		result.Outcome = stage.OutcomeFailed
		result.ExitCode = 1
		result.Message = fmt.Sprintf("%d of %d file(s) failed", failed, len(files))
		return result, errors.Wrapf(lastErr, "transcribe %d of %d file(s)", failed, len(files))
	}
	result.Outcome = stage.OutcomeSucceeded
	result.Message = fmt.Sprintf("transcribed %d file(s)", len(files))
	return result, nil
}

func (s *Stage) processFile(ctx context.Context, audioPath string) (string, error) {
	res, err := s.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return "", err
	}
	caps := s.transcriber.Backend().Capabilities()
	now := s.now()
	name := filepath.Base(audioPath)
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	if err := s.fs.MkdirAll(s.transcripts, 0o755); err != nil {
		return "", errors.Wrap(err, "create transcripts dir")
	}
	transcriptPath, err := uniquePath(s.fs, filepath.Join(s.transcripts, stem+".txt"), now)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Transcription of %s\n", name)
	fmt.Fprintf(&b, "# Model: %s\n", modelLabel(caps))
	fmt.Fprintf(&b, "# Timestamp: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "# Source: %s\n", audioPath)
	if res.Chunked {
		fmt.Fprintf(&b, "# Segments: %d\n", len(res.Segments))
	}
	b.WriteString("\n")
	b.WriteString(res.Text)
	b.WriteString("\n")
	if err := afero.WriteFile(s.fs, transcriptPath, []byte(b.String()), 0o644); err != nil {
		return "", errors.Wrap(err, "write transcript")
	}

	if err := s.appendCombined(name, res.Text, now); err != nil {
		return "", err
	}
	if err := s.moveProcessed(audioPath, now); err != nil {
		return "", err
	}
	return transcriptPath, nil
}

func (s *Stage) appendCombined(name, text string, now time.Time) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.combinedPath), 0o755); err != nil {
		return errors.Wrap(err, "create transcription file dir")
	}
	exists, err := afero.Exists(s.fs, s.combinedPath)
	if err != nil {
		return errors.Wrap(err, "stat transcription file")
	}
	file, err := s.fs.OpenFile(s.combinedPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open transcription file")
	}
	defer file.Close()
	var b strings.Builder
	if !exists {
		fmt.Fprintf(&b, "# Transcriptions %s\n\n", now.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "\n--- %s ---\n\n%s\n\n", name, text)
	if _, err := io.WriteString(file, b.String()); err != nil {
		return errors.Wrap(err, "append transcription file")
	}
	return nil
}

func (s *Stage) moveProcessed(audioPath string, now time.Time) error {
	if err := s.fs.MkdirAll(s.processed, 0o755); err != nil {
		return errors.Wrap(err, "create processed dir")
	}
	dst, err := uniquePath(s.fs, filepath.Join(s.processed, filepath.Base(audioPath)), now)
	if err != nil {
		return err
	}
	if err := s.fs.Rename(audioPath, dst); err == nil {
		return nil
	}
	// Rename fails across filesystems; fall back to copy and remove.
	if err := copyFile(s.fs, audioPath, dst); err != nil {
		return errors.Wrapf(err, "move %s to processed", filepath.Base(audioPath))
	}
	return s.fs.Remove(audioPath)
}

// HealthCheck verifies the backend's prerequisites are visible.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.transcriber == nil {
		return stage.Unhealthy(StageName, "transcriber not configured")
	}
	return stage.Healthy(StageName)
}

func uniquePath(fs afero.Fs, path string, now time.Time) (string, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return "", errors.Wrapf(err, "stat %s", path)
	}
	if !exists {
		return path, nil
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%s%s", strings.TrimSuffix(path, ext), now.Format("20060102150405"), ext), nil
}

func copyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := fs.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func modelLabel(caps Capabilities) string {
	if caps.Model == "" {
		return caps.Variant
	}
	return caps.Variant + " (" + caps.Model + ")"
}

func failureHint(err error) string {
	if hint := services.Hint(err); hint != "" {
		return hint
	}
	if IsTransient(err) {
		return "the provider was unavailable; the file stays in downloads and is retried next cycle"
	}
	return "the file stays in downloads; inspect it or remove it to unblock the stage"
}
