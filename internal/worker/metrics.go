package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type WorkerMetrics struct {
	taskCounter  metric.Int64Counter
	taskDuration metric.Float64Histogram
}

func NewWorkerMetrics() (*WorkerMetrics, error) {
	meter := otel.Meter("minutes/worker")

	taskCounter, err := meter.Int64Counter(
		"worker.tasks.total",
		metric.WithDescription("Total number of worker tasks processed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	taskDuration, err := meter.Float64Histogram(
		"worker.task.duration",
		metric.WithDescription("Duration of worker tasks"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 900, 1800),
	)
	if err != nil {
		return nil, err
	}

	return &WorkerMetrics{
		taskCounter:  taskCounter,
		taskDuration: taskDuration,
	}, nil
}

func (m *WorkerMetrics) RecordTask(ctx context.Context, taskType, status string, duration float64) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("task.type", taskType),
	}

	m.taskCounter.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("status", status))...))
	m.taskDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
}

// Middleware records the outcome and duration of every task.
func (m *WorkerMetrics) Middleware(h asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := h.ProcessTask(ctx, t)
		status := "success"
		if err != nil {
			status = "error"
		}
		m.RecordTask(ctx, t.Type(), status, time.Since(start).Seconds())
		return err
	})
}
