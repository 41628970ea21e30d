package transcribe

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/zalando/go-keyring"

	"diarist/internal/config"
	"diarist/internal/services"
)

func TestResolveAPIKeyOrder(t *testing.T) {
	keyring.MockInit()
	if err := keyring.Set("diarist", "openai", "from-keyring"); err != nil {
		t.Fatalf("seed keyring: %v", err)
	}
	t.Setenv("DIARIST_TEST_KEY", "from-env")

	cfg := config.Default().Transcription
	cfg.APIKeyRef = "keyring:diarist/openai"
	cfg.APIKeyEnv = "DIARIST_TEST_KEY"
	cfg.APIKey = "inline"

	if got, err := ResolveAPIKey(cfg); err != nil || got != "from-keyring" {
		t.Fatalf("expected keyring value, got %q err=%v", got, err)
	}

	cfg.APIKeyRef = "keyring:diarist/missing"
	if got, err := ResolveAPIKey(cfg); err != nil || got != "from-env" {
		t.Fatalf("expected env fallback, got %q err=%v", got, err)
	}

	t.Setenv("DIARIST_TEST_KEY", "")
	if got, err := ResolveAPIKey(cfg); err != nil || got != "inline" {
		t.Fatalf("expected inline fallback, got %q err=%v", got, err)
	}

	cfg.APIKey = ""
	_, err := ResolveAPIKey(cfg)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if services.Hint(err) == "" {
		t.Fatal("expected a hint on missing credentials")
	}
}

func TestNewBackendSelectsVariant(t *testing.T) {
	cfg := config.Default().Transcription
	backend, err := NewBackend(cfg, nil)
	if err != nil {
		t.Fatalf("NewBackend local: %v", err)
	}
	caps := backend.Capabilities()
	if caps.RequiresNetwork || caps.Model != "base" {
		t.Fatalf("unexpected local capabilities %+v", caps)
	}

	cfg.Variant = config.VariantHostedExtended
	cfg.APIKey = "sk-test"
	cfg.APIKeyEnv = "DIARIST_UNSET_KEY"
	backend, err = NewBackend(cfg, nil)
	if err != nil {
		t.Fatalf("NewBackend hosted: %v", err)
	}
	if caps := backend.Capabilities(); caps.Model != "gpt-4o-transcribe" || caps.MaxInput.Hours() != 4 {
		t.Fatalf("unexpected hosted capabilities %+v", caps)
	}

	cfg.Variant = "carrier-pigeon"
	if _, err := NewBackend(cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown variant, got %v", err)
	}
}
