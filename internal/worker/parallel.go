package worker

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ParallelFunc is a function that can be executed in parallel.
type ParallelFunc func(ctx context.Context) error

// ParallelResult holds the results from parallel operations.
type ParallelResult struct {
	Errors []error
}

// RunParallel executes funcs concurrently and waits for all of them. A failing
// func does not cancel the others; its error is collected in call order.
func RunParallel(ctx context.Context, funcs []ParallelFunc) ParallelResult {
	if len(funcs) == 0 {
		return ParallelResult{}
	}

	var g errgroup.Group
	errs := make([]error, len(funcs))
	for i, fn := range funcs {
		g.Go(func() error {
			errs[i] = fn(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var result ParallelResult
	for _, err := range errs {
		if err != nil {
			result.Errors = append(result.Errors, err)
		}
	}
	return result
}
