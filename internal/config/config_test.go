package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"diarist/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "diarist")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.DiaryDir != filepath.Join(tempHome, "diary") {
		t.Fatalf("unexpected diary dir: %q", cfg.Paths.DiaryDir)
	}
	if cfg.DatabasePath() != filepath.Join(wantState, "diarist.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Scheduler.RunsPerDay != 1 {
		t.Fatalf("expected runs_per_day default 1, got %d", cfg.Scheduler.RunsPerDay)
	}
	if cfg.Diary.EntriesFileFormat != "{date}_ongoing_entries.txt" {
		t.Fatalf("unexpected entries format: %q", cfg.Diary.EntriesFileFormat)
	}
	if !cfg.Diary.AutoUpdateDate {
		t.Fatal("expected auto_update_date enabled by default")
	}
	if cfg.Transcription.Variant != config.VariantLocalModel {
		t.Fatalf("unexpected variant default: %q", cfg.Transcription.Variant)
	}
	if !cfg.Transcription.ChunkAudio || cfg.Transcription.MaxChunkSeconds != 1440 {
		t.Fatalf("unexpected chunk defaults: %+v", cfg.Transcription)
	}
	if cfg.StatusPollInterval().Seconds() != 5 {
		t.Fatalf("expected 5s status poll, got %s", cfg.StatusPollInterval())
	}
}

func TestLoadCustomConfigCanonicalizesValues(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "diarist.toml")
	content := `
[paths]
state_dir = "~/state"

[scheduler]
runs_per_day = 24

[pipeline]
audio_extensions = ["MP3", ".wav", "mp3"]

[stages.download]
command = "python3 download.py --folder 'Voice Notes'"
input_dir = "~/inbox"

[transcription]
variant = "4o-transcribe"
base_url = "https://example.test/v1/"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected %q to be loaded, got resolved=%q exists=%v", path, resolved, exists)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "state") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Scheduler.RunsPerDay != 24 {
		t.Fatalf("unexpected runs_per_day: %d", cfg.Scheduler.RunsPerDay)
	}
	if got := cfg.Pipeline.AudioExtensions; len(got) != 2 || got[0] != ".mp3" || got[1] != ".wav" {
		t.Fatalf("unexpected extensions: %v", got)
	}
	if cfg.Stages.Download.InputDir != filepath.Join(tempHome, "inbox") {
		t.Fatalf("unexpected input dir: %q", cfg.Stages.Download.InputDir)
	}
	if cfg.Transcription.Variant != config.VariantHostedExtended {
		t.Fatalf("expected alias to resolve to hosted-extended, got %q", cfg.Transcription.Variant)
	}
	if cfg.Transcription.BaseURL != "https://example.test/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Transcription.BaseURL)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"negative runs", func(c *config.Config) { c.Scheduler.RunsPerDay = -1 }},
		{"missing date placeholder", func(c *config.Config) { c.Diary.EntriesFileFormat = "entries.txt" }},
		{"unknown variant", func(c *config.Config) { c.Transcription.Variant = "carrier-pigeon" }},
		{"bad keyring ref", func(c *config.Config) { c.Transcription.APIKeyRef = "vault:openai" }},
		{"bad env entry", func(c *config.Config) { c.Stages.Process.Env = []string{"NOVALUE"} }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, config.ErrInvalid) {
				t.Fatalf("expected ErrInvalid marker, got %v", err)
			}
		})
	}
}

func TestSetRunsPerDayPreservesOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[scheduler]
runs_per_day = 2
startup_grace_seconds = 9

[transcription]
variant = "hosted-basic"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := config.SetRunsPerDay(path, 0); err != nil {
		t.Fatalf("SetRunsPerDay returned error: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Scheduler.RunsPerDay != 0 {
		t.Fatalf("expected runs_per_day 0, got %d", cfg.Scheduler.RunsPerDay)
	}
	if cfg.Scheduler.StartupGraceSeconds != 9 {
		t.Fatalf("expected startup grace preserved, got %d", cfg.Scheduler.StartupGraceSeconds)
	}
	if cfg.Transcription.Variant != config.VariantHostedBasic {
		t.Fatalf("expected variant preserved, got %q", cfg.Transcription.Variant)
	}

	if err := config.SetRunsPerDay(path, -3); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for negative runs, got %v", err)
	}
}

func TestSetRunsPerDayRejectsValuesLoadWouldRefuse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.SetRunsPerDay(path, 2); err != nil {
		t.Fatalf("SetRunsPerDay returned error: %v", err)
	}
	if err := config.SetRunsPerDay(path, config.MaxRunsPerDay+1); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid above the cap, got %v", err)
	}
	if err := config.SetRunsPerDay(path, config.MaxRunsPerDay); err != nil {
		t.Fatalf("expected the cap itself to be accepted, got %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Scheduler.RunsPerDay != config.MaxRunsPerDay {
		t.Fatalf("expected runs_per_day %d, got %d", config.MaxRunsPerDay, cfg.Scheduler.RunsPerDay)
	}
}

func TestSetRunsPerDayKeepsCommentsAndOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `# diarist configuration

[scheduler]
# cycles per day; 0 runs once
runs_per_day = 1  # hourly later
startup_grace_seconds = 5

[diary]
auto_update_date = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := config.SetRunsPerDay(path, 24); err != nil {
		t.Fatalf("SetRunsPerDay returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	want := strings.Replace(content, "runs_per_day = 1  #", "runs_per_day = 24  #", 1)
	if string(data) != want {
		t.Fatalf("unexpected rewrite:\n%s", data)
	}
}

func TestSetRunsPerDayAddsKeyUnderExistingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[scheduler]\nstartup_grace_seconds = 7\n\n[diary]\nauto_update_date = false\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := config.SetRunsPerDay(path, 3); err != nil {
		t.Fatalf("SetRunsPerDay returned error: %v", err)
	}
	t.Setenv("HOME", t.TempDir())
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Scheduler.RunsPerDay != 3 || cfg.Scheduler.StartupGraceSeconds != 7 || cfg.Diary.AutoUpdateDate {
		t.Fatalf("unexpected config after insert: %+v %+v", cfg.Scheduler, cfg.Diary)
	}
}

func TestSetRunsPerDayCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.SetRunsPerDay(path, 6); err != nil {
		t.Fatalf("SetRunsPerDay returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || cfg.Scheduler.RunsPerDay != 6 {
		t.Fatalf("expected created file with runs_per_day 6, exists=%v runs=%d", exists, cfg.Scheduler.RunsPerDay)
	}
}

func TestSampleConfigLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Stages.Download.TimeoutSeconds != 1800 {
		t.Fatalf("unexpected download timeout: %d", cfg.Stages.Download.TimeoutSeconds)
	}
}

func TestParseKeyringRef(t *testing.T) {
	service, user, err := config.ParseKeyringRef("keyring:diarist/openai")
	if err != nil {
		t.Fatalf("ParseKeyringRef returned error: %v", err)
	}
	if service != "diarist" || user != "openai" {
		t.Fatalf("unexpected parse: %q %q", service, user)
	}
	if _, _, err := config.ParseKeyringRef("keyring:/openai"); err == nil {
		t.Fatal("expected error for empty service")
	}
}
