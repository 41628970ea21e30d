package transcribe

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/zalando/go-keyring"

	"diarist/internal/config"
	"diarist/internal/services"
)

var keyringGet = keyring.Get

// ResolveAPIKey finds the hosted provider credential. The system keyring
// reference wins, then the configured environment variable, then the inline
// api_key value.
func ResolveAPIKey(cfg config.Transcription) (string, error) {
	var keyringErr error
	if ref := strings.TrimSpace(cfg.APIKeyRef); ref != "" {
		service, user, err := config.ParseKeyringRef(ref)
		if err != nil {
			return "", err
		}
		secret, err := keyringGet(service, user)
		if err == nil && strings.TrimSpace(secret) != "" {
			return strings.TrimSpace(secret), nil
		}
		keyringErr = err
	}
	if name := strings.TrimSpace(cfg.APIKeyEnv); name != "" {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return value, nil
		}
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		return key, nil
	}

	err := services.Wrap(services.ErrConfiguration, "transcribe", "resolve credential",
		"no API key available for hosted transcription", keyringErr)
	return "", errors.WithHint(err, "store one with your keyring under transcription.api_key_ref, or export "+cfg.APIKeyEnv)
}
