// Package minutes runs the meeting-minutes pipeline: validate the upload,
// transcribe it, build the prompt and generate the minutes.
package minutes

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/meetscribe/minutes/internal/cache"
	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/metrics"
	"github.com/meetscribe/minutes/internal/services/generation"
	"github.com/meetscribe/minutes/internal/services/prompt"
	"github.com/meetscribe/minutes/internal/services/transcription"
	"github.com/meetscribe/minutes/internal/telemetry"
	"github.com/meetscribe/minutes/internal/validation"
)

// Step names a pipeline stage reported through Request.Progress.
type Step string

const (
	StepTranscribing Step = "transcribing"
	StepGenerating   Step = "generating"
)

// Request is one minutes run.
type Request struct {
	Audio       transcription.Audio
	Options     transcription.Options
	MeetingInfo prompt.MeetingInfo
	// Style overrides the service default when set.
	Style prompt.Style
	// Progress is called when a stage starts. It may be nil.
	Progress func(ctx context.Context, step Step)
}

// Durations are the wall-clock times of the two vendor stages.
type Durations struct {
	Transcription time.Duration
	Generation    time.Duration
}

// Result holds the transcript and generated minutes.
type Result struct {
	Transcript string    `json:"transcript"`
	Minutes    string    `json:"minutes"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Cached     bool      `json:"cached"`
	Durations  Durations `json:"-"`
}

// TranscriptCache stores transcripts by recording and options.
type TranscriptCache interface {
	Key(provider string, options any, audio []byte) string
	Get(ctx context.Context, key string) *cache.CachedTranscript
	Set(ctx context.Context, key string, transcript *cache.CachedTranscript) error
}

// Service wires a transcription provider to a generation provider.
type Service struct {
	transcriber transcription.Provider
	generator   generation.Provider
	cache       TranscriptCache
	style       prompt.Style
	maxBytes    int64
}

// NewService creates a pipeline. transcripts may be nil to disable caching.
func NewService(transcriber transcription.Provider, generator generation.Provider, transcripts TranscriptCache, style prompt.Style, maxBytes int64) *Service {
	if style == "" {
		style = prompt.StyleSummary
	}
	return &Service{
		transcriber: transcriber,
		generator:   generator,
		cache:       transcripts,
		style:       style,
		maxBytes:    maxBytes,
	}
}

// Capabilities are the options the configured transcription backend honours.
func (s *Service) Capabilities() transcription.Capabilities {
	return s.transcriber.Capabilities()
}

// TranscriptionProvider names the configured transcription backend.
func (s *Service) TranscriptionProvider() string {
	return s.transcriber.Name()
}

// MaxUploadBytes is the largest accepted recording.
func (s *Service) MaxUploadBytes() int64 {
	return s.maxBytes
}

// Validate checks the request and fills option defaults in place.
func (s *Service) Validate(req *Request) error {
	caps := s.Capabilities()
	if err := validation.ValidateAudio(req.Audio.Filename, int64(len(req.Audio.Data)), caps, s.maxBytes); err != nil {
		return err
	}
	if err := validation.NormalizeOptions(&req.Options, caps); err != nil {
		return err
	}
	return validation.ValidateMeetingInfo(req.MeetingInfo.Text)
}

// Generate runs the pipeline and stops at the first failing stage.
func (s *Service) Generate(ctx context.Context, req Request) (result *Result, err error) {
	ctx, span := telemetry.Tracer("minutes").Start(ctx, "minutes.Generate")
	defer span.End()

	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.MinutesGeneratedTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("transcription_provider", s.transcriber.Name()),
			attribute.String("generation_provider", s.generator.Name()),
		))
	}()

	if err := s.Validate(&req); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("audio.filename", req.Audio.Filename),
		attribute.Int("audio.bytes", len(req.Audio.Data)),
		attribute.String("transcription.language", req.Options.Language),
		attribute.Bool("transcription.speaker_labels", req.Options.SpeakerLabels),
	)
	metrics.AudioUploadBytes.Record(ctx, int64(len(req.Audio.Data)))

	result = &Result{
		Provider: s.transcriber.Name(),
		Model:    s.generator.Model(),
	}

	s.progress(ctx, req, StepTranscribing)
	start := time.Now()
	result.Transcript, result.Cached, err = s.transcribe(ctx, req)
	result.Durations.Transcription = time.Since(start)
	s.recordStep(ctx, "transcribe", s.transcriber.Name(), result.Durations.Transcription)
	if err != nil {
		slog.ErrorContext(ctx, "Transcription failed", "provider", s.transcriber.Name(), "error", err)
		return nil, err
	}

	if strings.TrimSpace(result.Transcript) == "" {
		return nil, errors.NewTranscriptionHTTPError(
			"the transcription returned no text",
			"EMPTY_TRANSCRIPT",
			http.StatusUnprocessableEntity,
		)
	}

	style := req.Style
	if style == "" {
		style = s.style
	}

	s.progress(ctx, req, StepGenerating)
	start = time.Now()
	result.Minutes, err = s.generator.Generate(ctx, prompt.Build(style, req.MeetingInfo, result.Transcript))
	result.Durations.Generation = time.Since(start)
	s.recordStep(ctx, "generate", s.generator.Name(), result.Durations.Generation)
	if err != nil {
		slog.ErrorContext(ctx, "Minutes generation failed", "provider", s.generator.Name(), "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "Minutes generated",
		"transcription_provider", result.Provider,
		"model", result.Model,
		"cached_transcript", result.Cached,
		"transcript_chars", len([]rune(result.Transcript)),
		"transcription_duration", result.Durations.Transcription,
		"generation_duration", result.Durations.Generation,
	)
	return result, nil
}

func (s *Service) transcribe(ctx context.Context, req Request) (string, bool, error) {
	if s.cache == nil {
		text, err := s.transcriber.Transcribe(ctx, req.Audio, req.Options)
		return text, false, err
	}

	key := s.cache.Key(s.transcriber.Name(), req.Options, req.Audio.Data)
	if cached := s.cache.Get(ctx, key); cached != nil && cached.Text != "" {
		slog.InfoContext(ctx, "Transcript cache hit", "provider", cached.Provider)
		return cached.Text, true, nil
	}

	text, err := s.transcriber.Transcribe(ctx, req.Audio, req.Options)
	if err != nil {
		return "", false, err
	}
	if strings.TrimSpace(text) != "" {
		if err := s.cache.Set(ctx, key, &cache.CachedTranscript{
			Text:      text,
			Provider:  s.transcriber.Name(),
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			slog.WarnContext(ctx, "Failed to cache transcript", "provider", s.transcriber.Name(), "error", err)
		}
	}
	return text, false, nil
}

func (s *Service) progress(ctx context.Context, req Request, step Step) {
	if req.Progress != nil {
		req.Progress(ctx, step)
	}
}

func (s *Service) recordStep(ctx context.Context, step, provider string, d time.Duration) {
	metrics.PipelineStepDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("provider", provider),
	))
}
