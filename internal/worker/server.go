package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meetscribe/minutes/internal/errors"
)

const (
	// QueueDefault carries minutes jobs, QueueMaintenance the cleanup task.
	QueueDefault     = "default"
	QueueMaintenance = "maintenance"
)

// NewServer creates a new Asynq server for processing tasks
func NewServer(redisURL string, concurrency int) (*asynq.Server, error) {
	opt, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueDefault:     6,
				QueueMaintenance: 1,
			},
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				slog.ErrorContext(ctx, "Task failed",
					"type", task.Type(),
					"retry", retried,
					"max_retry", maxRetry,
					"error", err,
				)
			}),
			Logger:   newAsynqLogger(),
			LogLevel: asynq.WarnLevel,
		},
	), nil
}

// retryDelay backs off linearly and waits out rate limits.
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	if appErr, ok := errors.As(err); ok && (appErr.Type == errors.ErrorTypeRateLimit || appErr.StatusCode == http.StatusTooManyRequests) {
		return time.Minute
	}
	return time.Duration(n+1) * 10 * time.Second
}

// Start starts the server with the given handlers
func Start(srv *asynq.Server, handlers map[string]asynq.Handler, middleware ...asynq.MiddlewareFunc) error {
	mux := asynq.NewServeMux()
	mux.Use(middleware...)
	for taskType, handler := range handlers {
		mux.Handle(taskType, handler)
	}
	return srv.Start(mux)
}

// NewScheduler registers the periodic cleanup task.
func NewScheduler(redisURL, cleanupCron string) (*asynq.Scheduler, error) {
	opt, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Logger:   newAsynqLogger(),
		LogLevel: asynq.WarnLevel,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				slog.Error("Failed to enqueue scheduled task", "error", err)
			}
		},
	})
	if _, err := scheduler.Register(cleanupCron, NewCleanupJobsTask(),
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(1),
		asynq.Unique(time.Hour),
	); err != nil {
		return nil, fmt.Errorf("failed to register cleanup task: %w", err)
	}
	return scheduler, nil
}

// asynqLogger routes asynq's own logs through slog.
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger() *asynqLogger {
	return &asynqLogger{logger: slog.Default().With("component", "asynq")}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }
