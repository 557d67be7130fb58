package utils

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrPollTimeout is returned when a long-running job does not finish within PollConfig.Timeout.
var ErrPollTimeout = errors.New("polling timed out")

// PollConfig controls how a long-running vendor job is waited on.
type PollConfig struct {
	Interval      time.Duration
	MaxInterval   time.Duration
	BackoffFactor float64
	Timeout       time.Duration
}

// PollFunc checks a job once. done reports whether the job reached a terminal state.
type PollFunc[T any] func(ctx context.Context) (result T, done bool, err error)

// DefaultPollConfig polls every few seconds without backing off.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:      3 * time.Second,
		MaxInterval:   3 * time.Second,
		BackoffFactor: 1.0,
		Timeout:       2 * time.Hour,
	}
}

// LongRunningPollConfig suits batch operations that can take hours.
func LongRunningPollConfig(timeout time.Duration) PollConfig {
	return PollConfig{
		Interval:      5 * time.Second,
		MaxInterval:   60 * time.Second,
		BackoffFactor: 1.5,
		Timeout:       timeout,
	}
}

// Poll calls check until it reports done, returns an error, or the timeout elapses.
// The first check happens immediately.
func Poll[T any](ctx context.Context, check PollFunc[T], config PollConfig) (T, error) {
	var zero T

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	for attempt := 1; ; attempt++ {
		result, done, err := check(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
				return zero, fmt.Errorf("%w after %v", ErrPollTimeout, config.Timeout)
			}
			return zero, err
		}
		if done {
			return result, nil
		}

		select {
		case <-time.After(pollDelay(config, attempt)):
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return zero, fmt.Errorf("%w after %v", ErrPollTimeout, config.Timeout)
			}
			return zero, ctx.Err()
		}
	}
}

// pollDelay is Interval * BackoffFactor^(attempt-1), capped at MaxInterval, plus up to 10% jitter.
func pollDelay(config PollConfig, attempt int) time.Duration {
	factor := config.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	// Clamp before converting: the product overflows int64 after enough attempts.
	d := float64(config.Interval) * math.Pow(factor, float64(attempt-1))
	if config.MaxInterval > 0 && d > float64(config.MaxInterval) {
		d = float64(config.MaxInterval)
	}
	if d > float64(math.MaxInt64/2) {
		d = float64(math.MaxInt64 / 2)
	}
	delay := time.Duration(d)

	if jitterRange := int64(delay) / 10; jitterRange > 0 {
		delay += time.Duration(rand.Int63n(jitterRange))
	}
	return delay
}
