package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScheduler()
	c.normalizeDiary()
	c.normalizePipeline()
	if err := c.normalizeStages(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeControl()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
		{"paths.downloads_dir", &c.Paths.DownloadsDir, defaultDownloadsDir},
		{"paths.processed_dir", &c.Paths.ProcessedDir, defaultProcessedDir},
		{"paths.transcripts_dir", &c.Paths.TranscriptsDir, defaultTranscriptsDir},
		{"paths.diary_dir", &c.Paths.DiaryDir, defaultDiaryDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return errors.Wrap(err, field.name)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeScheduler() {
	if c.Scheduler.StartupGraceSeconds <= 0 {
		c.Scheduler.StartupGraceSeconds = defaultStartupGraceSeconds
	}
	if c.Scheduler.TerminationTimeoutSeconds <= 0 {
		c.Scheduler.TerminationTimeoutSeconds = defaultTerminationTimeoutSeconds
	}
	if c.Scheduler.PollIntervalMillis <= 0 {
		c.Scheduler.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Scheduler.StatusPollSeconds <= 0 {
		c.Scheduler.StatusPollSeconds = defaultStatusPollSeconds
	}
	c.Scheduler.MetricsListen = strings.TrimSpace(c.Scheduler.MetricsListen)
}

func (c *Config) normalizeDiary() {
	c.Diary.EntriesFileFormat = strings.TrimSpace(c.Diary.EntriesFileFormat)
	if c.Diary.EntriesFileFormat == "" {
		c.Diary.EntriesFileFormat = defaultEntriesFileFormat
	}
}

func (c *Config) normalizePipeline() {
	c.Pipeline.AudioExtensions = normalizeExtensions(c.Pipeline.AudioExtensions)
	if len(c.Pipeline.AudioExtensions) == 0 {
		c.Pipeline.AudioExtensions = append([]string(nil), defaultAudioExtensions...)
	}
	c.Pipeline.IgnoreExtensions = normalizeExtensions(c.Pipeline.IgnoreExtensions)
}

func (c *Config) normalizeStages() error {
	stages := []struct {
		name  string
		stage *Stage
	}{
		{"stages.download", &c.Stages.Download},
		{"stages.transcribe", &c.Stages.Transcribe},
		{"stages.process", &c.Stages.Process},
	}
	for _, entry := range stages {
		entry.stage.Command = strings.TrimSpace(entry.stage.Command)
		for _, dir := range []*string{&entry.stage.WorkingDir, &entry.stage.InputDir, &entry.stage.OutputsDir} {
			if strings.TrimSpace(*dir) == "" {
				*dir = ""
				continue
			}
			expanded, err := expandPath(strings.TrimSpace(*dir))
			if err != nil {
				return errors.Wrap(err, entry.name)
			}
			*dir = expanded
		}
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	t.Variant = CanonicalVariant(t.Variant)
	if t.Variant == "" {
		t.Variant = defaultVariant
	}
	if t.MaxChunkSeconds <= 0 {
		t.MaxChunkSeconds = defaultMaxChunkSeconds
	}
	if t.ChunkConcurrency <= 0 {
		t.ChunkConcurrency = defaultChunkConcurrency
	}
	t.BaseURL = strings.TrimRight(strings.TrimSpace(t.BaseURL), "/")
	if t.BaseURL == "" {
		if value, ok := os.LookupEnv("OPENAI_BASE_URL"); ok && strings.TrimSpace(value) != "" {
			t.BaseURL = strings.TrimRight(strings.TrimSpace(value), "/")
		} else {
			t.BaseURL = defaultTranscriptionBaseURL
		}
	}
	t.APIKeyEnv = strings.TrimSpace(t.APIKeyEnv)
	if t.APIKeyEnv == "" {
		t.APIKeyEnv = defaultAPIKeyEnv
	}
	t.APIKeyRef = strings.TrimSpace(t.APIKeyRef)
	if t.RequestTimeoutSeconds <= 0 {
		t.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if t.RequestsPerMinute < 0 {
		t.RequestsPerMinute = 0
	}
	if t.MaxAttempts <= 0 {
		t.MaxAttempts = defaultMaxAttempts
	}
	if strings.TrimSpace(t.LocalCommand) == "" {
		t.LocalCommand = defaultLocalCommand
	}
	if strings.TrimSpace(t.LocalModel) == "" {
		t.LocalModel = defaultLocalModel
	}
	if strings.TrimSpace(t.TranscriptionFile) == "" {
		t.TranscriptionFile = defaultTranscriptionFile
	}
	if strings.TrimSpace(t.FFprobeBinary) == "" {
		t.FFprobeBinary = defaultFFprobeBinary
	}
	if strings.TrimSpace(t.FFmpegBinary) == "" {
		t.FFmpegBinary = defaultFFmpegBinary
	}
}

func (c *Config) normalizeControl() {
	c.Control.Listen = strings.TrimSpace(c.Control.Listen)
	if c.Control.Listen == "" {
		c.Control.Listen = defaultControlListen
	}
	c.Control.DefaultActor = strings.TrimSpace(c.Control.DefaultActor)
	if c.Control.DefaultActor == "" {
		c.Control.DefaultActor = defaultControlActor
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}

// CanonicalVariant maps accepted variant spellings to their canonical name.
// Unknown values are returned lowercased so validation can report them.
func CanonicalVariant(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "local", "local-model", "whisper-local":
		return VariantLocalModel
	case "whisper-1", "hosted-basic", "basic":
		return VariantHostedBasic
	case "4o-transcribe", "gpt-4o-transcribe", "hosted-extended", "extended":
		return VariantHostedExtended
	default:
		return v
	}
}

func normalizeExtensions(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}
