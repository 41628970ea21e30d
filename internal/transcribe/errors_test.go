package transcribe

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"diarist/internal/services"
)

func TestClassifyStatus(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "7")

	tests := []struct {
		status    int
		header    http.Header
		transient bool
		class     string
	}{
		{http.StatusTooManyRequests, header, true, "transient"},
		{http.StatusBadGateway, http.Header{}, true, "transient"},
		{http.StatusBadRequest, http.Header{}, false, "permanent"},
		{http.StatusRequestEntityTooLarge, http.Header{}, false, "permanent"},
		{http.StatusUnsupportedMediaType, http.Header{}, false, "permanent"},
		{http.StatusUnprocessableEntity, http.Header{}, false, "permanent"},
		{http.StatusUnauthorized, http.Header{}, false, "permanent"},
	}
	for _, tt := range tests {
		err := classifyStatus("hosted-basic", tt.status, tt.header, `{"error":"x"}`)
		if IsTransient(err) != tt.transient {
			t.Fatalf("status %d: transient=%v, want %v", tt.status, IsTransient(err), tt.transient)
		}
		if got := services.Classify(err); got != tt.class {
			t.Fatalf("status %d: class %q, want %q", tt.status, got, tt.class)
		}
	}

	var transient *TransientProviderError
	err := classifyStatus("hosted-basic", http.StatusTooManyRequests, header, "slow down")
	if !errors.As(err, &transient) || transient.RetryAfter != 7*time.Second {
		t.Fatalf("expected Retry-After to be honoured, got %+v", transient)
	}
}

func TestCredentialRejectionCarriesHint(t *testing.T) {
	err := classifyStatus("hosted-extended", http.StatusForbidden, http.Header{}, "forbidden")
	var permanent *PermanentInputError
	if !errors.As(err, &permanent) {
		t.Fatalf("expected PermanentInputError, got %T", err)
	}
	if !strings.Contains(services.Hint(err), "api_key_ref") {
		t.Fatalf("expected credential hint, got %q", services.Hint(err))
	}
}

func TestClassifyTransport(t *testing.T) {
	err := classifyTransport(context.Background(), "hosted-basic", errors.New("connection reset"))
	if !IsTransient(err) {
		t.Fatalf("expected transport failure to be transient, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = classifyTransport(ctx, "hosted-basic", errors.New("connection reset"))
	if IsTransient(err) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation to pass through, got %v", err)
	}
}
