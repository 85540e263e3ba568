package services

import (
	"context"
	"math/rand"
	"time"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/logger"
)

// maxRetryDelay caps exponential backoff growth.
const maxRetryDelay = 10 * time.Second

// RetryPolicy retries transient failures with exponential backoff.
// The delay before retry i is BaseDelay doubled i times, capped at
// MaxDelay, then jittered down into [delay/2, delay) so concurrent
// requests spread out. Jittered delays still never decrease between
// attempts because each window's floor equals the previous window's
// ceiling.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, first try included.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration

	// Jitter randomises delays. On by default; tests turn it off.
	Jitter bool

	// sleep waits out a backoff delay. Injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy creates a retry policy.
// Non-positive arguments fall back to a single attempt with a one
// second base delay.
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxRetryDelay,
		Jitter:      true,
		sleep:       sleepContext,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, exhausts
// the attempt budget, or ctx is cancelled. The last error is returned
// unwrapped so callers can inspect it.
func (p *RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.delayFor(attempt - 1)
			logger.Debug("retrying after %s (attempt %d/%d): %v", delay, attempt+1, p.MaxAttempts, lastErr)
			if err := p.sleep(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !domain.IsRetryable(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}

	return lastErr
}

// delayFor computes the backoff delay for the given retry index.
func (p *RetryPolicy) delayFor(retryIndex int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < retryIndex; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter && delay > 1 {
		half := delay / 2
		delay = half + time.Duration(rand.Int63n(int64(half)))
	}
	return delay
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
