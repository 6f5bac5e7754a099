// Package resilience wraps calls to the messaging platform so throttling
// responses are absorbed locally. The retry decision lives behind Policy so a
// stricter policy can replace the default without touching callers.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Throttled is implemented by errors that carry a platform-mandated cooldown.
// ok is false when the platform throttled without giving a hint.
type Throttled interface {
	error
	RetryAfter() (wait time.Duration, ok bool)
}

// AsThrottled finds a Throttled error in err's chain.
func AsThrottled(err error) (Throttled, bool) {
	var t Throttled
	if errors.As(err, &t) {
		return t, true
	}
	return nil, false
}

// Policy decides whether a failed attempt is retried and after how long.
// attempt counts from 1.
type Policy interface {
	Next(attempt int, err error) (wait time.Duration, retry bool)
}

// ThrottlePolicy retries throttled errors forever, waiting the platform's hint
// or DefaultWait when there is none. Every other error is final.
type ThrottlePolicy struct {
	DefaultWait time.Duration
}

func (p ThrottlePolicy) Next(_ int, err error) (time.Duration, bool) {
	t, ok := AsThrottled(err)
	if !ok {
		return 0, false
	}
	if wait, ok := t.RetryAfter(); ok && wait > 0 {
		return wait, true
	}
	return p.DefaultWait, true
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Caller executes operations under a Policy.
type Caller struct {
	policy Policy
	sleep  SleepFunc
	onWait func(name string, wait time.Duration)
	logger *slog.Logger
}

// Option customises a Caller.
type Option func(*Caller)

// WithSleep replaces the cooldown implementation; tests use it to avoid
// real waits.
func WithSleep(sleep SleepFunc) Option {
	return func(c *Caller) { c.sleep = sleep }
}

// WithWaitHook registers a callback invoked before every cooldown.
func WithWaitHook(hook func(name string, wait time.Duration)) Option {
	return func(c *Caller) { c.onWait = hook }
}

// NewCaller creates a Caller. A nil policy means ThrottlePolicy with a five
// second default wait.
func NewCaller(policy Policy, opts ...Option) *Caller {
	if policy == nil {
		policy = ThrottlePolicy{DefaultWait: 5 * time.Second}
	}
	c := &Caller{
		policy: policy,
		sleep:  Sleep,
		logger: slog.Default().With("component", "rate-limited-caller"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke runs op until it succeeds or the caller's policy declines to retry.
// The cooldown only delays this one operation.
func Invoke[T any](ctx context.Context, c *Caller, name string, op func(ctx context.Context) (T, error)) (T, error) {
	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("succeeded after rate limit", "operation", name, "attempt", attempt)
			}
			return result, nil
		}
		wait, retry := c.policy.Next(attempt, err)
		if !retry {
			var zero T
			return zero, err
		}
		c.logger.Warn("rate limited, waiting before retry",
			"operation", name,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
		if c.onWait != nil {
			c.onWait(name, wait)
		}
		if err := c.sleep(ctx, wait); err != nil {
			var zero T
			return zero, fmt.Errorf("%s: retry aborted during cooldown: %w", name, err)
		}
	}
}

// Sleep waits for d, returning early with ctx.Err() if ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
