package generation

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/metrics"
)

// FallbackProvider implements Provider with fallback logic
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

func (f *FallbackProvider) Name() string  { return f.primary.Name() }
func (f *FallbackProvider) Model() string { return f.primary.Model() }

// Generate tries the primary provider first, falls back to secondary on retryable errors
func (f *FallbackProvider) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := f.primary.Generate(ctx, prompt)
	if err == nil {
		return result, nil
	}

	providerErr := ClassifyError(err, f.primary.Name())
	if !IsRetryableError(err) {
		slog.InfoContext(ctx, "Primary provider failed with non-retryable error, not attempting fallback",
			"provider", f.primary.Name(),
			"error_type", providerErr.Type,
			"error", err.Error())
		return "", err
	}

	slog.WarnContext(ctx, "Primary provider failed with retryable error, attempting fallback",
		"provider", f.primary.Name(),
		"fallback", f.secondary.Name(),
		"error_type", providerErr.Type,
		"error", err.Error())
	metrics.ProviderFallbackTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", "generation"),
		attribute.String("from", f.primary.Name()),
		attribute.String("to", f.secondary.Name()),
		attribute.String("reason", providerErr.Type),
	))

	result, fallbackErr := f.secondary.Generate(ctx, prompt)
	if fallbackErr != nil {
		fallbackProviderErr := ClassifyError(fallbackErr, f.secondary.Name())
		slog.ErrorContext(ctx, "Both primary and secondary providers failed",
			"primary_error_type", providerErr.Type,
			"primary_error", err.Error(),
			"fallback_error_type", fallbackProviderErr.Type,
			"fallback_error", fallbackErr.Error())
		return "", errors.NewGenerationError(
			"both primary and secondary providers failed",
			"PROVIDER_FALLBACK_FAILED",
			err,
		)
	}

	slog.InfoContext(ctx, "Fallback provider succeeded",
		"provider", f.secondary.Name(),
		"primary_error_type", providerErr.Type)
	return result, nil
}
