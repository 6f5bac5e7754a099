package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn under a deadline. It returns as soon as the deadline
// passes even if fn ignores its context; fn's eventual result is discarded.
// A non-positive timeout runs fn unbounded.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()
	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: cancelled: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s: no answer within %v: %w", name, timeout, context.DeadlineExceeded)
	}
}
