package interpreter

import (
	"context"
	"math"
	"time"
)

// retryPolicy is a per-node retry policy read from a node's `retry`
// config block (spec.md is silent on retries; this mirrors the
// teacher's RetryConfig/GetRetryConfig in
// internal/application/executor/retry.go, collapsed into the config
// object itself rather than a separate node field).
type retryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       bool
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{maxAttempts: 0}
}

// parseRetryPolicy reads an optional `retry: {maxAttempts,
// initialDelayMs, maxDelayMs, multiplier, jitter}` block out of a
// node's resolved config. Absent or malformed fields fall back to the
// teacher's own defaults (3 attempts, 1s initial, 30s cap, 2x
// multiplier, jitter on) once retry is present at all.
func parseRetryPolicy(config map[string]any) retryPolicy {
	raw, ok := config["retry"].(map[string]any)
	if !ok {
		return defaultRetryPolicy()
	}

	p := retryPolicy{
		maxAttempts:  3,
		initialDelay: time.Second,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
		jitter:       true,
	}
	if v, ok := asInt(raw["maxAttempts"]); ok {
		p.maxAttempts = v
	}
	if v, ok := asInt(raw["initialDelayMs"]); ok {
		p.initialDelay = time.Duration(v) * time.Millisecond
	}
	if v, ok := asInt(raw["maxDelayMs"]); ok {
		p.maxDelay = time.Duration(v) * time.Millisecond
	}
	if v, ok := raw["multiplier"].(float64); ok {
		p.multiplier = v
	}
	if v, ok := raw["jitter"].(bool); ok {
		p.jitter = v
	}
	return p
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

// delay computes the exponential-backoff-with-jitter wait before the
// given retry attempt (1-indexed: attempt 1 is the first retry, after
// the initial try already failed).
func (p retryPolicy) delay(attempt int) time.Duration {
	d := float64(p.initialDelay) * math.Pow(p.multiplier, float64(attempt-1))
	if d > float64(p.maxDelay) {
		d = float64(p.maxDelay)
	}
	if p.jitter {
		jitterAmount := d * 0.1
		d += (2*float64(time.Now().UnixNano()%1000)/1000 - 1) * jitterAmount
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// withRetry runs fn up to policy.maxAttempts additional times after
// an initial failing call, waiting policy.delay between attempts and
// honoring ctx cancellation while waiting.
func withRetry(ctx context.Context, policy retryPolicy, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= policy.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.delay(attempt)):
			}
		}
		if err := fn(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
