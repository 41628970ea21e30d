package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"diarist/internal/config"
)

// ConfigOption adjusts the config built by NewConfig.
type ConfigOption func(*fixture)

type fixture struct {
	t    testing.TB
	base string
	cfg  config.Config
}

// NewConfig returns a default config rooted in a fresh temp directory, with
// scheduler timings shortened so supervision tests finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	f := &fixture{t: t, base: t.TempDir(), cfg: config.Default()}
	for dir, field := range map[string]*string{
		"state":       &f.cfg.Paths.StateDir,
		"downloads":   &f.cfg.Paths.DownloadsDir,
		"processed":   &f.cfg.Paths.ProcessedDir,
		"transcripts": &f.cfg.Paths.TranscriptsDir,
		"diary":       &f.cfg.Paths.DiaryDir,
	} {
		*field = filepath.Join(f.base, dir)
	}
	f.cfg.Control.Listen = "127.0.0.1:0"
	f.cfg.Scheduler.PollIntervalMillis = 10
	f.cfg.Scheduler.StartupGraceSeconds = 1
	f.cfg.Scheduler.TerminationTimeoutSeconds = 1
	f.cfg.Transcription.APIKeyEnv = ""

	for _, opt := range opts {
		opt(f)
	}
	if err := f.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &f.cfg
}

// WithRunsPerDay sets the scheduler cadence.
func WithRunsPerDay(n int) ConfigOption {
	return func(f *fixture) { f.cfg.Scheduler.RunsPerDay = n }
}

// WithStageCommand overrides one pipeline stage with an external command.
func WithStageCommand(name, command string) ConfigOption {
	return func(f *fixture) {
		stages := map[string]*config.Stage{
			"download":   &f.cfg.Stages.Download,
			"transcribe": &f.cfg.Stages.Transcribe,
			"process":    &f.cfg.Stages.Process,
		}
		st, ok := stages[name]
		if !ok {
			f.t.Fatalf("unknown stage %q", name)
		}
		st.Command = command
	}
}

// WithStubbedBinaries puts no-op executables named names first on PATH for
// the rest of the test. With no names it stubs ffprobe, ffmpeg and whisper.
// Tests using it must not call t.Parallel.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(f *fixture) {
		if len(names) == 0 {
			names = []string{"ffprobe", "ffmpeg", "whisper"}
		}
		bin := filepath.Join(f.base, "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			f.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				f.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		f.t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the temp directory backing cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
