package transcription

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/metrics"
)

// FallbackProvider tries the secondary provider when the primary fails with a 5xx-class error.
type FallbackProvider struct {
	primary   Provider
	secondary Provider
}

// NewFallbackProvider creates a new fallback provider
func NewFallbackProvider(primary, secondary Provider) *FallbackProvider {
	return &FallbackProvider{
		primary:   primary,
		secondary: secondary,
	}
}

func (f *FallbackProvider) Name() string { return f.primary.Name() }

// Capabilities are the primary's; the form is rendered for it.
func (f *FallbackProvider) Capabilities() Capabilities { return f.primary.Capabilities() }

// Transcribe tries the primary provider first, falls back to secondary on 5xx errors
func (f *FallbackProvider) Transcribe(ctx context.Context, audio Audio, opts Options) (string, error) {
	result, err := f.primary.Transcribe(ctx, audio, opts)
	if err == nil {
		return result, nil
	}

	if !isRetryableError(err) {
		slog.InfoContext(ctx, "Primary provider failed with non-retryable error, not attempting fallback",
			"provider", f.primary.Name(),
			"error", err.Error())
		return "", err
	}

	slog.WarnContext(ctx, "Primary provider failed with retryable error, attempting fallback",
		"provider", f.primary.Name(),
		"fallback", f.secondary.Name(),
		"primary_error", err.Error())
	metrics.ProviderFallbackTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", "transcription"),
		attribute.String("from", f.primary.Name()),
		attribute.String("to", f.secondary.Name()),
	))

	result, fallbackErr := f.secondary.Transcribe(ctx, audio, opts)
	if fallbackErr != nil {
		slog.ErrorContext(ctx, "Both primary and secondary providers failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error())
		return "", errors.NewTranscriptionError(
			"both primary and secondary providers failed",
			"PROVIDER_FALLBACK_FAILED",
			err,
		)
	}

	slog.InfoContext(ctx, "Fallback provider succeeded", "provider", f.secondary.Name())
	return result, nil
}

// isRetryableError reports whether err is a 5xx-class AppError. Transport failures are wrapped as 500s.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if appErr, ok := errors.As(err); ok {
		if appErr.Type == errors.ErrorTypeValidation {
			return false
		}
		return appErr.StatusCode >= 500
	}
	return false
}
