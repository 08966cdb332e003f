package queue

import (
	"context"
	"fmt"
	"time"
)

// backoffFactor grows the wait between attempts. No jitter and no cap: the
// attempt budget is small enough that neither matters.
const backoffFactor = 1.5

// WithRetry runs fn up to maxAttempts times total, waiting initialDelay before
// the second attempt and growing the wait by backoffFactor after each failure.
// The last error is returned wrapped with the attempt count. A retried fn may
// repeat its side effects; idempotency is the caller's responsibility.
func WithRetry(ctx context.Context, fn func(context.Context) error, maxAttempts int, initialDelay time.Duration) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = time.Second
	}

	delay := initialDelay
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		if err := sleepContext(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * backoffFactor)
	}
	return fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
