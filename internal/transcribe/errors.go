package transcribe

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"diarist/internal/services"
)

// TransientProviderError is a failure worth retrying: rate limiting, server
// errors, and transport problems.
type TransientProviderError struct {
	Variant    string
	StatusCode int
	RetryAfter time.Duration
	Body       string
	Err        error
}

func (e *TransientProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: transient provider error: http %d: %s", e.Variant, e.StatusCode, summarize(e.Body))
	}
	return fmt.Sprintf("%s: transient provider error: %v", e.Variant, e.Err)
}

func (e *TransientProviderError) Unwrap() error { return e.Err }

// Is lets services.Classify report the error as transient.
func (e *TransientProviderError) Is(target error) bool { return target == services.ErrTransient }

// PermanentInputError is a failure that repeats on every attempt with the same
// input or credentials.
type PermanentInputError struct {
	Variant    string
	StatusCode int
	Body       string
	Err        error
}

func (e *PermanentInputError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: input rejected: http %d: %s", e.Variant, e.StatusCode, summarize(e.Body))
	}
	return fmt.Sprintf("%s: input rejected: %v", e.Variant, e.Err)
}

func (e *PermanentInputError) Unwrap() error { return e.Err }

// Is lets services.Classify report the error as permanent.
func (e *PermanentInputError) Is(target error) bool { return target == services.ErrValidation }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var transient *TransientProviderError
	return errors.As(err, &transient)
}

// classifyStatus maps a non-2xx provider response to an error class.
func classifyStatus(variant string, status int, header http.Header, body string) error {
	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= http.StatusInternalServerError:
		retryAfter, _ := parseRetryAfter(header.Get("Retry-After"))
		return &TransientProviderError{Variant: variant, StatusCode: status, RetryAfter: retryAfter, Body: body}
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return errors.WithHint(
			&PermanentInputError{Variant: variant, StatusCode: status, Body: body},
			"the provider rejected the credential; check transcription.api_key_ref or the variable named by transcription.api_key_env",
		)
	default:
		return &PermanentInputError{Variant: variant, StatusCode: status, Body: body}
	}
}

// classifyTransport maps a failed round trip. Cancellation of ctx is returned
// as-is so callers stop instead of retrying.
func classifyTransport(ctx context.Context, variant string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrap(ctxErr, "transcription request")
	}
	return &TransientProviderError{Variant: variant, Err: err}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func summarize(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	const limit = 200
	if len(body) > limit {
		return body[:limit] + "..."
	}
	return body
}
