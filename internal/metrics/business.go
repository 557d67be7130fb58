package metrics

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Instruments default to no-ops so packages can record before Init runs.
var (
	// Pipeline metrics
	MinutesGeneratedTotal metric.Int64Counter       = noop.Int64Counter{}
	PipelineStepDuration  metric.Float64Histogram   = noop.Float64Histogram{}
	AudioUploadBytes      metric.Int64Histogram     = noop.Int64Histogram{}
	TranscriptCacheTotal  metric.Int64Counter       = noop.Int64Counter{}
	JobsInFlight          metric.Int64UpDownCounter = noop.Int64UpDownCounter{}

	// External API metrics
	ExternalAPICallsTotal metric.Int64Counter     = noop.Int64Counter{}
	ExternalAPIDuration   metric.Float64Histogram = noop.Float64Histogram{}

	// Provider fallback metrics
	ProviderFallbackTotal metric.Int64Counter = noop.Int64Counter{}
)

// Init creates the business instruments on the global MeterProvider.
func Init() error {
	meter := otel.Meter("minutes/business")
	var err error

	MinutesGeneratedTotal, err = meter.Int64Counter(
		"minutes.generated.total",
		metric.WithDescription("Total number of minutes generation runs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	PipelineStepDuration, err = meter.Float64Histogram(
		"minutes.step.duration",
		metric.WithDescription("Duration of each pipeline step"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 900, 1800, 3600),
	)
	if err != nil {
		return err
	}

	AudioUploadBytes, err = meter.Int64Histogram(
		"minutes.audio.bytes",
		metric.WithDescription("Size of uploaded recordings"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(1<<20, 5<<20, 20<<20, 50<<20, 100<<20, 200<<20),
	)
	if err != nil {
		return err
	}

	TranscriptCacheTotal, err = meter.Int64Counter(
		"minutes.transcript_cache.total",
		metric.WithDescription("Transcript cache lookups by result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	JobsInFlight, err = meter.Int64UpDownCounter(
		"minutes.jobs.in_flight",
		metric.WithDescription("Minutes jobs currently being processed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	// External API metrics
	ExternalAPICallsTotal, err = meter.Int64Counter(
		"external.api.calls.total",
		metric.WithDescription("Total number of external API calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	ExternalAPIDuration, err = meter.Float64Histogram(
		"external.api.duration",
		metric.WithDescription("Duration of external API calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 60, 300),
	)
	if err != nil {
		return err
	}

	// Provider fallback metrics
	ProviderFallbackTotal, err = meter.Int64Counter(
		"provider.fallback.total",
		metric.WithDescription("Total number of provider fallback events"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	return nil
}
