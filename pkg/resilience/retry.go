package resilience

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// BoundedPolicy is the stricter alternative to ThrottlePolicy: it gives up
// after MaxAttempts and waits an exponentially growing, jittered delay that
// never undercuts the platform's hint.
type BoundedPolicy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
}

func defaultBoundedPolicy() BoundedPolicy {
	return BoundedPolicy{
		MaxAttempts:    3,
		InitialDelay:   time.Second,
		MaxDelay:       time.Minute,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// NewBoundedPolicy fills zero fields of cfg with defaults.
func NewBoundedPolicy(cfg BoundedPolicy) BoundedPolicy {
	defaults := defaultBoundedPolicy()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaults.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaults.MaxDelay
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = defaults.Multiplier
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	return cfg
}

func (p BoundedPolicy) Next(attempt int, err error) (time.Duration, bool) {
	t, ok := AsThrottled(err)
	if !ok || attempt >= p.MaxAttempts {
		return 0, false
	}
	delay := computeDelay(attempt, p)
	if hint, ok := t.RetryAfter(); ok && hint > delay {
		delay = hint
	}
	return delay, true
}

func (p BoundedPolicy) String() string {
	return fmt.Sprintf("bounded(max_attempts=%d, initial=%v, max=%v)", p.MaxAttempts, p.InitialDelay, p.MaxDelay)
}

func computeDelay(attempt int, cfg BoundedPolicy) time.Duration {
	backoff := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	jitter := backoff * cfg.JitterFraction * (2*rand.Float64() - 1)
	backoff += jitter
	if backoff > float64(cfg.MaxDelay) {
		backoff = float64(cfg.MaxDelay)
	}
	if backoff < 0 {
		backoff = float64(cfg.InitialDelay)
	}
	return time.Duration(backoff)
}
