package util

import (
	"context"
	"time"
)

// Retry runs fn until it succeeds, the attempt budget is spent, or the
// context is cancelled. The delay between attempts starts at baseDelay and
// doubles each failure. The last error is returned unwrapped so callers can
// inspect it.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		backoff := baseDelay << (attempt - 1)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
