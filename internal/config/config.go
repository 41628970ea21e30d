package config

import (
	_ "embed"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir       string `toml:"state_dir"`
	DownloadsDir   string `toml:"downloads_dir"`
	ProcessedDir   string `toml:"processed_dir"`
	TranscriptsDir string `toml:"transcripts_dir"`
	DiaryDir       string `toml:"diary_dir"`
}

// Scheduler contains run cadence and supervision timing.
type Scheduler struct {
	RunsPerDay                int    `toml:"runs_per_day"`
	StartupGraceSeconds       int    `toml:"startup_grace_seconds"`
	TerminationTimeoutSeconds int    `toml:"termination_timeout_seconds"`
	PollIntervalMillis        int    `toml:"poll_interval_ms"`
	StatusPollSeconds         int    `toml:"status_poll_seconds"`
	LogRetentionEntries       int    `toml:"log_retention_entries"`
	MetricsListen             string `toml:"metrics_listen"`
}

// Diary contains output partition settings.
type Diary struct {
	EntriesFileFormat string `toml:"entries_file_format"`
	AutoUpdateDate    bool   `toml:"auto_update_date"`
}

// Pipeline contains settings shared by every stage.
type Pipeline struct {
	AudioExtensions  []string `toml:"audio_extensions"`
	IgnoreExtensions []string `toml:"ignore_extensions"`
}

// Stage describes one externally invoked pipeline stage.
type Stage struct {
	Command        string   `toml:"command"`
	WorkingDir     string   `toml:"working_dir"`
	Env            []string `toml:"env"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	InputDir       string   `toml:"input_dir"`
	OutputsDir     string   `toml:"outputs_dir"`
}

// Stages holds the fixed pipeline stage table.
type Stages struct {
	Download   Stage `toml:"download"`
	Transcribe Stage `toml:"transcribe"`
	Process    Stage `toml:"process"`
}

// Transcription contains speech-to-text backend selection and provider settings.
type Transcription struct {
	Variant               string  `toml:"variant"`
	ChunkAudio            bool    `toml:"chunk_audio"`
	MaxChunkSeconds       int     `toml:"max_chunk_seconds"`
	ChunkConcurrency      int     `toml:"chunk_concurrency"`
	Language              string  `toml:"language"`
	Prompt                string  `toml:"prompt"`
	Temperature           float64 `toml:"temperature"`
	BaseURL               string  `toml:"base_url"`
	APIKey                string  `toml:"api_key"`
	APIKeyEnv             string  `toml:"api_key_env"`
	APIKeyRef             string  `toml:"api_key_ref"`
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	RequestsPerMinute     int     `toml:"requests_per_minute"`
	MaxAttempts           int     `toml:"max_attempts"`
	LocalCommand          string  `toml:"local_command"`
	LocalModel            string  `toml:"local_model"`
	TranscriptionFile     string  `toml:"transcription_file"`
	FFprobeBinary         string  `toml:"ffprobe_binary"`
	FFmpegBinary          string  `toml:"ffmpeg_binary"`
}

// Control contains settings for the operator control surface.
type Control struct {
	Listen       string `toml:"listen"`
	DefaultActor string `toml:"default_actor"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Config encapsulates all configuration values for diarist.
//
// Configuration sections by subsystem:
//   - Paths: state, audio, transcript, and diary directories
//   - Scheduler: runs per day and supervision timing
//   - Diary: partition naming and automatic rollover
//   - Pipeline: audio extension allow/deny lists
//   - Stages: download/transcribe/process invocables
//   - Transcription: backend variant, chunking, provider credentials
//   - Control: HTTP control surface
//   - Logging: log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Diary         Diary         `toml:"diary"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Stages        Stages        `toml:"stages"`
	Transcription Transcription `toml:"transcription"`
	Control       Control       `toml:"control"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/diarist/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, errors.Wrap(err, "open config")
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, errors.Wrapf(err, "parse config %s", resolvedPath)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, errors.Wrap(err, "stat config")
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("diarist.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the scheduler and its stages write to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.StateDir,
		c.LogDir(),
		c.Paths.DownloadsDir,
		c.Paths.ProcessedDir,
		c.Paths.TranscriptsDir,
		c.Paths.DiaryDir,
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create directory %q", dir)
		}
	}
	return nil
}

// DatabasePath is the status/log store shared by the scheduler and control surfaces.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "diarist.db")
}

// LogDir holds scheduler log files.
func (c *Config) LogDir() string {
	return filepath.Join(c.Paths.StateDir, "logs")
}

// SchedulerLockPath guards against a second scheduler process.
func (c *Config) SchedulerLockPath() string {
	return filepath.Join(c.Paths.StateDir, "scheduler.lock")
}

// SupervisorLockPath serialises start requests between control surfaces.
func (c *Config) SupervisorLockPath() string {
	return filepath.Join(c.Paths.StateDir, "supervisor.lock")
}

// TranscriptionFilePath resolves the combined transcript file.
func (c *Config) TranscriptionFilePath() string {
	name := c.Transcription.TranscriptionFile
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Paths.TranscriptsDir, name)
}

// StartupGrace is how long a negative discovery is not trusted after a spawn.
func (c *Config) StartupGrace() time.Duration {
	return time.Duration(c.Scheduler.StartupGraceSeconds) * time.Second
}

// TerminationTimeout is how long a graceful stop may take before a forced kill.
func (c *Config) TerminationTimeout() time.Duration {
	return time.Duration(c.Scheduler.TerminationTimeoutSeconds) * time.Second
}

// PollInterval is the discovery polling cadence used during start and stop.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Scheduler.PollIntervalMillis) * time.Millisecond
}

// StatusPollInterval is the cadence control surfaces use to refresh status.
func (c *Config) StatusPollInterval() time.Duration {
	return time.Duration(c.Scheduler.StatusPollSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "resolve home directory")
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", errors.Wrapf(err, "resolve absolute path for %q", cleaned)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create config directory")
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return errors.Wrap(err, "write sample config")
	}
	return nil
}
