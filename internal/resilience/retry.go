// Package resilience provides the retry primitive callers wrap around
// retryable engine outcomes, chiefly the materializer's in-flight conflict.
package resilience

import (
	"context"
	"time"
)

// RetryPolicy controls Do. Zero values fall back to 3 attempts starting at
// 50ms, doubling per attempt.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	// Retryable decides which errors warrant another attempt. Nil retries
	// everything.
	Retryable func(error) bool
}

func (p RetryPolicy) attempts() int {
	if p.Attempts <= 0 {
		return 3
	}
	return p.Attempts
}

func (p RetryPolicy) base() time.Duration {
	if p.Base <= 0 {
		return 50 * time.Millisecond
	}
	return p.Base
}

// Do runs fn up to the policy's attempt count with exponential backoff
// between attempts. It returns nil on the first success, the last error when
// attempts are exhausted, a non-retryable error immediately, and the context
// error when cancelled mid-backoff.
func Do(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := policy.attempts()
	delay := policy.base()
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if policy.Retryable != nil && !policy.Retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return err
}
