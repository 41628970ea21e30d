package transcribe

import (
	"context"
	"log/slog"
	"time"

	"diarist/internal/config"
	"diarist/internal/services"
)

// Capabilities describes what one backend variant accepts.
type Capabilities struct {
	Variant         string        `json:"variant"`
	MaxInput        time.Duration `json:"max_input"`
	RequiresNetwork bool          `json:"requires_network"`
	Model           string        `json:"model"`
}

// Options carries per-request transcription hints.
type Options struct {
	Language    string
	Prompt      string
	Temperature float64
}

// Backend transcribes one audio file no longer than Capabilities().MaxInput.
type Backend interface {
	Name() string
	Capabilities() Capabilities
	Transcribe(ctx context.Context, audioPath string, opts Options) (string, error)
}

var variantTable = map[string]Capabilities{
	config.VariantLocalModel: {
		Variant:  config.VariantLocalModel,
		MaxInput: 25 * time.Minute,
	},
	config.VariantHostedBasic: {
		Variant:         config.VariantHostedBasic,
		MaxInput:        25 * time.Minute,
		RequiresNetwork: true,
		Model:           "whisper-1",
	},
	config.VariantHostedExtended: {
		Variant:         config.VariantHostedExtended,
		MaxInput:        4 * time.Hour,
		RequiresNetwork: true,
		Model:           "gpt-4o-transcribe",
	},
}

// CapabilitiesFor returns the static capabilities of variant.
func CapabilitiesFor(variant string) (Capabilities, error) {
	caps, ok := variantTable[config.CanonicalVariant(variant)]
	if !ok {
		return Capabilities{}, services.Wrap(services.ErrConfiguration, "transcribe", "select backend",
			"unknown variant "+variant, nil)
	}
	return caps, nil
}

// NewBackend builds the backend selected by cfg.Variant. Hosted variants
// resolve their API key here so a missing credential fails before any audio
// is touched.
func NewBackend(cfg config.Transcription, logger *slog.Logger, opts ...HostedOption) (Backend, error) {
	caps, err := CapabilitiesFor(cfg.Variant)
	if err != nil {
		return nil, err
	}
	if !caps.RequiresNetwork {
		caps.Model = cfg.LocalModel
		return NewLocalBackend(cfg, caps, logger)
	}
	apiKey, err := ResolveAPIKey(cfg)
	if err != nil {
		return nil, err
	}
	return NewHostedBackend(cfg, caps, apiKey, opts...), nil
}
