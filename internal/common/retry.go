package common

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RetryPolicy bounds how often a storage write is re-attempted.
type RetryPolicy struct {
	Attempts int
	Interval time.Duration
}

// RetryPolicyFromConfig derives the write retry policy from [balances].
func RetryPolicyFromConfig(cfg BalancesConfig) RetryPolicy {
	return RetryPolicy{Attempts: cfg.WriteRetries, Interval: cfg.GetRetryInterval()}
}

// RetryWrite runs fn until it succeeds, returns a permanent error, or the
// attempts are exhausted. Attempts are paced by a token bucket so a burst of
// failures cannot hammer the store. fn must be idempotent.
func RetryWrite(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	interval := policy.Interval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (after %d attempts: %v)", err, attempt-1, lastErr)
			}
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil || IsPermanent(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("write failed after %d attempts: %w", attempts, lastErr)
}
