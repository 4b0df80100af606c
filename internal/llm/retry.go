package llm

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	maxBackoffDelay   = 30 * time.Second
	maxJitterFraction = 0.1
)

// RetryConfig controls how failed attempts are repeated
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, at least 1
	MaxAttempts int
	// BaseDelay is the wait before the first retry; it doubles per retry
	BaseDelay time.Duration
}

func (r RetryConfig) normalized() RetryConfig {
	if r.MaxAttempts < 1 {
		r.MaxAttempts = 1
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = time.Second
	}
	return r
}

// Backoff returns the wait before the nth retry (1-based) with up to 10% jitter
func (r RetryConfig) Backoff(retry int) time.Duration {
	delay := r.BaseDelay
	for i := 1; i < retry && delay < maxBackoffDelay; i++ {
		delay *= 2
	}
	if delay > maxBackoffDelay {
		delay = maxBackoffDelay
	}

	jitter := time.Duration(rand.Float64() * maxJitterFraction * float64(delay)) //nolint:gosec // jitter only spreads retries
	return delay + jitter
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
