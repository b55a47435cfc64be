package interpreter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRetryPolicy_AbsentBlockMeansNoRetries(t *testing.T) {
	p := parseRetryPolicy(map[string]any{})
	assert.Equal(t, 0, p.maxAttempts)
}

func TestParseRetryPolicy_AppliesDefaultsThenOverrides(t *testing.T) {
	p := parseRetryPolicy(map[string]any{
		"retry": map[string]any{"maxAttempts": float64(5)},
	})
	assert.Equal(t, 5, p.maxAttempts)
	assert.Equal(t, 2.0, p.multiplier)
	assert.True(t, p.jitter)
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	policy := retryPolicy{maxAttempts: 2, initialDelay: 0, multiplier: 1, maxDelay: 0}
	var calls int
	err := withRetry(context.Background(), policy, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithRetry_ExhaustsAndReturnsLastError(t *testing.T) {
	policy := retryPolicy{maxAttempts: 1, initialDelay: 0, multiplier: 1, maxDelay: 0}
	var calls int
	err := withRetry(context.Background(), policy, func() error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, 2, calls)
}

func TestWithRetry_ContextCancelledWhileWaitingStopsRetrying(t *testing.T) {
	policy := retryPolicy{maxAttempts: 5, initialDelay: time.Second, multiplier: 1, maxDelay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := withRetry(ctx, policy, func() error {
		calls++
		cancel()
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
