package transcribe

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"diarist/internal/config"
)

// HostedBackend posts audio to an OpenAI-compatible /audio/transcriptions
// endpoint.
type HostedBackend struct {
	caps       Capabilities
	endpoint   string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// HostedOption customizes a HostedBackend.
type HostedOption func(*HostedBackend)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) HostedOption {
	return func(b *HostedBackend) {
		if client != nil {
			b.httpClient = client
		}
	}
}

// WithLimiter overrides request pacing. A nil limiter disables pacing.
func WithLimiter(limiter *rate.Limiter) HostedOption {
	return func(b *HostedBackend) {
		b.limiter = limiter
	}
}

// NewHostedBackend constructs a backend for one hosted variant.
func NewHostedBackend(cfg config.Transcription, caps Capabilities, apiKey string, opts ...HostedOption) *HostedBackend {
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	backend := &HostedBackend{
		caps:       caps,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/audio/transcriptions",
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
	if cfg.RequestsPerMinute > 0 {
		perRequest := time.Minute / time.Duration(cfg.RequestsPerMinute)
		backend.limiter = rate.NewLimiter(rate.Every(perRequest), 1)
	}
	for _, opt := range opts {
		opt(backend)
	}
	return backend
}

func (b *HostedBackend) Name() string { return b.caps.Variant }

func (b *HostedBackend) Capabilities() Capabilities { return b.caps }

// Transcribe uploads audioPath and returns the plain-text transcript.
func (b *HostedBackend) Transcribe(ctx context.Context, audioPath string, opts Options) (string, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return "", errors.Wrap(err, "wait for request slot")
		}
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return "", &PermanentInputError{Variant: b.caps.Variant, Err: err}
	}
	defer file.Close()

	body, contentType := b.multipartBody(file, filepath.Base(audioPath), opts)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, body)
	if err != nil {
		return "", errors.Wrap(err, "build transcription request")
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", classifyTransport(ctx, b.caps.Variant, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransport(ctx, b.caps.Variant, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", classifyStatus(b.caps.Variant, resp.StatusCode, resp.Header, string(payload))
	}
	return strings.TrimSpace(string(payload)), nil
}

// multipartBody streams the upload so long recordings are never buffered in
// memory.
func (b *HostedBackend) multipartBody(file io.Reader, name string, opts Options) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(b.writeForm(mw, file, name, opts))
	}()
	return pr, mw.FormDataContentType()
}

func (b *HostedBackend) writeForm(mw *multipart.Writer, file io.Reader, name string, opts Options) error {
	fields := [][2]string{
		{"model", b.caps.Model},
		{"response_format", "text"},
		{"temperature", strconv.FormatFloat(opts.Temperature, 'f', -1, 64)},
	}
	if opts.Language != "" {
		fields = append(fields, [2]string{"language", opts.Language})
	}
	if opts.Prompt != "" {
		fields = append(fields, [2]string{"prompt", opts.Prompt})
	}
	for _, field := range fields {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return mw.Close()
}
