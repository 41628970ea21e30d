package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"diarist/internal/config"
	"diarist/internal/store"
	"diarist/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	store      *store.Store
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		store:      testsupport.MustOpenStore(t, cfg),
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
state_dir = %q
downloads_dir = %q
processed_dir = %q
transcripts_dir = %q
diary_dir = %q

[scheduler]
runs_per_day = %d
startup_grace_seconds = 1
termination_timeout_seconds = 1
poll_interval_ms = 10

[transcription]
api_key_env = ""

[control]
listen = "127.0.0.1:0"
`,
		cfg.Paths.StateDir,
		cfg.Paths.DownloadsDir,
		cfg.Paths.ProcessedDir,
		cfg.Paths.TranscriptsDir,
		cfg.Paths.DiaryDir,
		cfg.Scheduler.RunsPerDay,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q\nactual: %s", substr, output)
	}
}
