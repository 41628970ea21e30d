package config

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Transcription variant names accepted in transcription.variant.
const (
	VariantLocalModel     = "local-model"
	VariantHostedBasic    = "hosted-basic"
	VariantHostedExtended = "hosted-extended"
)

// ErrInvalid marks configuration validation failures.
var ErrInvalid = errors.New("invalid configuration")

func invalid(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalid)
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateDiary(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	return c.validateLogging()
}

// MaxRunsPerDay caps the cadence at one cycle per minute.
const MaxRunsPerDay = 24 * 60

func validateRunsPerDay(n int) error {
	if n < 0 {
		return invalid("scheduler.runs_per_day must be >= 0 (got %d)", n)
	}
	if n > MaxRunsPerDay {
		return invalid("scheduler.runs_per_day must be <= %d (got %d)", MaxRunsPerDay, n)
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if err := validateRunsPerDay(c.Scheduler.RunsPerDay); err != nil {
		return err
	}
	if c.Scheduler.LogRetentionEntries < 0 {
		return invalid("scheduler.log_retention_entries must be >= 0")
	}
	return nil
}

func (c *Config) validateDiary() error {
	if !strings.Contains(c.Diary.EntriesFileFormat, "{date}") {
		return invalid("diary.entries_file_format must contain the {date} placeholder (got %q)", c.Diary.EntriesFileFormat)
	}
	if strings.ContainsAny(strings.ReplaceAll(c.Diary.EntriesFileFormat, "{date}", ""), `/\`) {
		return invalid("diary.entries_file_format must be a file name, not a path")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Variant {
	case VariantLocalModel, VariantHostedBasic, VariantHostedExtended:
	default:
		return invalid("transcription.variant must be one of %s, %s, %s (got %q)",
			VariantLocalModel, VariantHostedBasic, VariantHostedExtended, c.Transcription.Variant)
	}
	if c.Transcription.Temperature < 0 || c.Transcription.Temperature > 1 {
		return invalid("transcription.temperature must be between 0 and 1")
	}
	if ref := c.Transcription.APIKeyRef; ref != "" {
		if _, _, err := ParseKeyringRef(ref); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateStages() error {
	for name, stage := range map[string]Stage{
		"download":   c.Stages.Download,
		"transcribe": c.Stages.Transcribe,
		"process":    c.Stages.Process,
	} {
		if stage.TimeoutSeconds < 0 {
			return invalid("stages.%s.timeout_seconds must be >= 0", name)
		}
		for _, kv := range stage.Env {
			if !strings.Contains(kv, "=") {
				return invalid("stages.%s.env entry %q must be KEY=VALUE", name, kv)
			}
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return invalid("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}

// ParseKeyringRef splits a credential reference of the form keyring:<service>/<user>.
func ParseKeyringRef(ref string) (string, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(ref), "keyring:")
	if !ok {
		return "", "", invalid("transcription.api_key_ref must look like keyring:<service>/<user> (got %q)", ref)
	}
	service, user, ok := strings.Cut(rest, "/")
	service = strings.TrimSpace(service)
	user = strings.TrimSpace(user)
	if !ok || service == "" || user == "" {
		return "", "", invalid("transcription.api_key_ref must look like keyring:<service>/<user> (got %q)", ref)
	}
	return service, user, nil
}
