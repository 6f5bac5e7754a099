package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type throttleErr struct {
	after time.Duration
	known bool
}

func (e *throttleErr) Error() string { return fmt.Sprintf("too many requests: retry after %v", e.after) }

func (e *throttleErr) RetryAfter() (time.Duration, bool) { return e.after, e.known }

type sleepRecorder struct {
	waits []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func TestInvokeRetriesAfterThrottleHint(t *testing.T) {
	rec := &sleepRecorder{}
	caller := NewCaller(ThrottlePolicy{DefaultWait: 5 * time.Second}, WithSleep(rec.sleep))

	calls := 0
	got, err := Invoke(context.Background(), caller, "send_photo", func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", fmt.Errorf("sendPhoto: %w", &throttleErr{after: 2 * time.Second, known: true})
		}
		return "file-id", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "file-id", got)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, rec.waits)
}

func TestInvokeUsesDefaultWaitWithoutHint(t *testing.T) {
	rec := &sleepRecorder{}
	caller := NewCaller(ThrottlePolicy{DefaultWait: 5 * time.Second}, WithSleep(rec.sleep))

	calls := 0
	_, err := Invoke(context.Background(), caller, "op", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, &throttleErr{}
		}
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, rec.waits)
}

func TestInvokePropagatesOtherErrors(t *testing.T) {
	rec := &sleepRecorder{}
	caller := NewCaller(nil, WithSleep(rec.sleep))
	boom := errors.New("bad request: chat not found")

	calls := 0
	_, err := Invoke(context.Background(), caller, "op", func(ctx context.Context) (struct{}, error) {
		calls++
		return struct{}{}, boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
}

func TestInvokeWaitHook(t *testing.T) {
	var hooked []string
	caller := NewCaller(nil,
		WithSleep(func(context.Context, time.Duration) error { return nil }),
		WithWaitHook(func(name string, wait time.Duration) { hooked = append(hooked, name) }),
	)
	calls := 0
	_, err := Invoke(context.Background(), caller, "send_animation", func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, &throttleErr{after: time.Second, known: true}
		}
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"send_animation"}, hooked)
}

func TestInvokeRealSleepHonoursHint(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping real cooldown in short mode")
	}
	caller := NewCaller(ThrottlePolicy{DefaultWait: 5 * time.Second})

	calls := 0
	start := time.Now()
	_, err := Invoke(context.Background(), caller, "op", func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, &throttleErr{after: 2 * time.Second, known: true}
		}
		return 1, nil
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 2*time.Second)
	assert.Less(t, elapsed, 4*time.Second)
}

func TestInvokeCancelledDuringCooldown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	caller := NewCaller(nil)

	_, err := Invoke(ctx, caller, "op", func(ctx context.Context) (int, error) {
		return 0, &throttleErr{after: time.Hour, known: true}
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBoundedPolicyGivesUp(t *testing.T) {
	rec := &sleepRecorder{}
	policy := NewBoundedPolicy(BoundedPolicy{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, JitterFraction: 0})
	caller := NewCaller(policy, WithSleep(rec.sleep))
	throttled := &throttleErr{after: 50 * time.Millisecond, known: true}

	calls := 0
	_, err := Invoke(context.Background(), caller, "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, throttled
	})

	require.ErrorIs(t, err, throttled)
	assert.Equal(t, 3, calls)
	require.Len(t, rec.waits, 2)
	// hint dominates the first backoff step
	assert.Equal(t, 50*time.Millisecond, rec.waits[0])
}

func TestBoundedPolicyIgnoresOtherErrors(t *testing.T) {
	policy := NewBoundedPolicy(BoundedPolicy{})
	_, retry := policy.Next(1, errors.New("boom"))
	assert.False(t, retry)
}

func TestWithTimeoutReturnsWhenFnIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	err := WithTimeout(context.Background(), 20*time.Millisecond, "ping", func(ctx context.Context) error {
		<-release
		return nil
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "ping: no answer within")
}

func TestWithTimeoutPassesThroughResult(t *testing.T) {
	boom := errors.New("boom")
	err := WithTimeout(context.Background(), time.Second, "ping", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, WithTimeout(context.Background(), 0, "ping", func(context.Context) error { return nil }))
}
