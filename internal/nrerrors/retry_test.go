package nrerrors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noterang/internal/logging"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Transient(errors.New("flaky"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) error {
		calls++
		return Permanent(errors.New("broken"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) error {
		calls++
		return Transient(errors.New("always"))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 4, calls)
}

func TestRetryWithResult(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastRetryConfig(), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", Transient(errors.New("once"))
		}
		return "notebook-id", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "notebook-id", got)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, fastRetryConfig(), func(ctx context.Context) error {
		t.Fatal("fn must not run after cancellation")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBackoffGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	assert.Equal(t, time.Second, calculateBackoff(0, cfg))
	assert.Equal(t, 2*time.Second, calculateBackoff(1, cfg))
	assert.Equal(t, 4*time.Second, calculateBackoff(2, cfg))
	assert.Equal(t, 5*time.Second, calculateBackoff(3, cfg))
}

func TestCalculateBackoffJitterStaysBounded(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 30 * time.Second, JitterFactor: 0.25}
	for i := 0; i < 100; i++ {
		d := calculateBackoff(1, cfg)
		assert.GreaterOrEqual(t, d, 1500*time.Millisecond)
		assert.LessOrEqual(t, d, 2500*time.Millisecond)
	}
}

func TestRetryWithResultAndLogNilLogger(t *testing.T) {
	_, err := RetryWithResultAndLog(context.Background(), fastRetryConfig(), func(ctx context.Context) (int, error) {
		return 7, nil
	}, logging.Nop())
	assert.NoError(t, err)
}
