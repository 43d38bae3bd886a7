// ABOUTME: Retry policy with exponential backoff for provider calls
// ABOUTME: Shared by the embedding retry wrapper and the CLI chat command
package util

import (
	"context"
	"math/rand/v2"
	"time"
)

// MaxBackoff caps a single backoff delay before jitter
const MaxBackoff = 30 * time.Second

// maxShift keeps 1<<attempt from overflowing
const maxShift = 30

// CalculateBackoff returns baseDelay * 2^attempt, capped at MaxBackoff, with
// ±25% jitter. attempt <= 0 returns 0.
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	attempt = min(attempt, maxShift)

	backoff := min(baseDelay*time.Duration(1<<uint(attempt)), MaxBackoff)
	if backoff < 4 {
		return backoff
	}
	jitter := time.Duration(rand.Int64N(int64(backoff)/2)) - backoff/4
	return backoff + jitter
}

// Wait sleeps for d or until ctx is done, returning ctx.Err() in the latter case
func Wait(ctx context.Context, d time.Duration) error {
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

// Policy decides how often and for which errors a call is repeated
type Policy struct {
	Retries   int           // extra attempts after the first
	BaseDelay time.Duration // doubled per attempt by CalculateBackoff
	Retryable func(error) bool

	// OnRetry, when set, is called before each wait
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// retries are used up. The last error is returned. A done ctx stops the wait.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	err := fn()
	for attempt := 1; attempt <= p.Retries && err != nil; attempt++ {
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		delay := CalculateBackoff(p.BaseDelay, attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if werr := Wait(ctx, delay); werr != nil {
			return werr
		}
		err = fn()
	}
	return err
}
