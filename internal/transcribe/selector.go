package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"diarist/internal/config"
	"diarist/internal/logging"
	"diarist/internal/media/ffmpeg"
	"diarist/internal/media/ffprobe"
	"diarist/internal/metrics"
)

const (
	defaultRetryBaseDelay = 2 * time.Second
	defaultRetryMaxDelay  = time.Minute
)

// SegmentTranscript is the text produced for one segment.
type SegmentTranscript struct {
	Segment
	Text string
}

// Result is the transcript of one recording.
type Result struct {
	Text     string
	Segments []SegmentTranscript
	Chunked  bool
}

// ProbeFunc reports the playback length of an audio file.
type ProbeFunc func(ctx context.Context, path string) (time.Duration, error)

// ExtractFunc copies one time range of src into dst.
type ExtractFunc func(ctx context.Context, src, dst string, offset, length time.Duration) error

// Selector applies the configured backend to recordings of any length.
type Selector struct {
	backend     Backend
	chunk       bool
	segment     time.Duration
	concurrency int
	maxAttempts int
	options     Options
	probe       ProbeFunc
	extract     ExtractFunc
	sleep       func(context.Context, time.Duration) error
	logger      *slog.Logger
}

// SelectorOption customizes a Selector.
type SelectorOption func(*Selector)

// WithProbe overrides duration probing.
func WithProbe(probe ProbeFunc) SelectorOption {
	return func(s *Selector) {
		if probe != nil {
			s.probe = probe
		}
	}
}

// WithExtractor overrides segment extraction.
func WithExtractor(extract ExtractFunc) SelectorOption {
	return func(s *Selector) {
		if extract != nil {
			s.extract = extract
		}
	}
}

// WithSleeper overrides how retry backoff waits.
func WithSleeper(sleep func(context.Context, time.Duration) error) SelectorOption {
	return func(s *Selector) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// NewSelector wraps backend with chunking and retry policy from cfg.
func NewSelector(cfg config.Transcription, backend Backend, logger *slog.Logger, opts ...SelectorOption) *Selector {
	caps := backend.Capabilities()
	selector := &Selector{
		backend:     backend,
		chunk:       cfg.ChunkAudio,
		segment:     SegmentLength(cfg.MaxChunkSeconds, caps.MaxInput),
		concurrency: max(cfg.ChunkConcurrency, 1),
		maxAttempts: max(cfg.MaxAttempts, 1),
		options: Options{
			Language:    cfg.Language,
			Prompt:      cfg.Prompt,
			Temperature: cfg.Temperature,
		},
		probe: func(ctx context.Context, path string) (time.Duration, error) {
			return ffprobe.Duration(ctx, cfg.FFprobeBinary, path)
		},
		extract: func(ctx context.Context, src, dst string, offset, length time.Duration) error {
			return ffmpeg.ExtractSegment(ctx, cfg.FFmpegBinary, src, dst, offset, length)
		},
		sleep:  sleepContext,
		logger: logging.NewComponentLogger(logger, "transcribe"),
	}
	for _, opt := range opts {
		opt(selector)
	}
	return selector
}

// Backend returns the configured backend.
func (s *Selector) Backend() Backend { return s.backend }

// Transcribe produces the transcript for audioPath, splitting it first when
// it is longer than the backend accepts.
func (s *Selector) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	caps := s.backend.Capabilities()
	logger := logging.WithContext(ctx, s.logger).With(
		logging.String(logging.FieldVariant, caps.Variant),
		logging.String("file", filepath.Base(audioPath)),
	)

	duration, err := s.probe(ctx, audioPath)
	if err != nil {
		logging.WarnWithContext(logger, "audio duration unknown; submitting whole file", "duration_probe_failed",
			logging.String(logging.FieldImpact, "long recordings may be rejected by the provider"),
			logging.Error(err),
		)
		return s.whole(ctx, audioPath, 0)
	}

	if duration <= caps.MaxInput {
		return s.whole(ctx, audioPath, duration)
	}
	if !s.chunk {
		logging.WarnWithContext(logger, "audio exceeds backend limit and chunking is disabled", "chunking_disabled",
			logging.Duration("duration", duration),
			logging.Duration("max_input", caps.MaxInput),
			logging.String(logging.FieldImpact, "the provider decides whether to accept the file"),
		)
		return s.whole(ctx, audioPath, duration)
	}
	return s.chunked(ctx, logger, audioPath, duration)
}

func (s *Selector) whole(ctx context.Context, audioPath string, duration time.Duration) (Result, error) {
	text, err := s.transcribeWithRetry(ctx, audioPath)
	if err != nil {
		return Result{}, err
	}
	seg := SegmentTranscript{Segment: Segment{Length: duration}, Text: text}
	return Result{Text: text, Segments: []SegmentTranscript{seg}}, nil
}

func (s *Selector) chunked(ctx context.Context, logger *slog.Logger, audioPath string, duration time.Duration) (Result, error) {
	segments := PlanSegments(duration, s.segment)
	caps := s.backend.Capabilities()
	logger.Info("splitting audio for transcription",
		logging.String(logging.FieldEventType, "chunk_plan"),
		logging.Duration("duration", duration),
		logging.Duration("segment", s.segment),
		logging.Int("segments", len(segments)),
	)
	metrics.RecordChunks(caps.Variant, len(segments))

	workDir, err := os.MkdirTemp("", "diarist-chunks-*")
	if err != nil {
		return Result{}, errors.Wrap(err, "create chunk dir")
	}
	defer os.RemoveAll(workDir)

	ext := filepath.Ext(audioPath)
	out := make([]SegmentTranscript, len(segments))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for _, seg := range segments {
		group.Go(func() error {
			dst := filepath.Join(workDir, fmt.Sprintf("segment_%03d%s", seg.Index, ext))
			if err := s.extract(groupCtx, audioPath, dst, seg.Offset, seg.Length); err != nil {
				return errors.Wrapf(err, "extract segment %d", seg.Index)
			}
			text, err := s.transcribeWithRetry(groupCtx, dst)
			if err != nil {
				return errors.Wrapf(err, "segment %d", seg.Index)
			}
			out[seg.Index] = SegmentTranscript{Segment: seg, Text: text}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Result{}, err
	}

	texts := make([]string, len(out))
	for i, seg := range out {
		texts[i] = seg.Text
	}
	return Result{Text: strings.Join(texts, "\n"), Segments: out, Chunked: true}, nil
}

func (s *Selector) transcribeWithRetry(ctx context.Context, path string) (string, error) {
	variant := s.backend.Capabilities().Variant
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		text, err := s.backend.Transcribe(ctx, path, s.options)
		if err == nil {
			metrics.RecordTranscription(variant, "success")
			return text, nil
		}
		lastErr = err
		if !IsTransient(err) {
			metrics.RecordTranscription(variant, "permanent")
			return "", err
		}
		metrics.RecordTranscription(variant, "transient")
		if attempt == s.maxAttempts {
			break
		}
		delay := backoffDelay(attempt)
		var transient *TransientProviderError
		if errors.As(err, &transient) && transient.RetryAfter > 0 {
			delay = min(transient.RetryAfter, defaultRetryMaxDelay)
		}
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "transient transcription failure; retrying", "transcription_retry",
			logging.String(logging.FieldVariant, variant),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.String(logging.FieldImpact, "the file is retried after a pause"),
			logging.Error(err),
		)
		if err := s.sleep(ctx, delay); err != nil {
			return "", errors.Wrap(err, "retry wait")
		}
	}
	return "", errors.Wrapf(lastErr, "failed after %d attempts", s.maxAttempts)
}

// backoffDelay doubles from the base for each attempt, capped at the max.
func backoffDelay(attempt int) time.Duration {
	delay := defaultRetryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > defaultRetryMaxDelay/2 {
			return defaultRetryMaxDelay
		}
		delay *= 2
	}
	return delay
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
