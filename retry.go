package lpscrape

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds how often an operation is retried and how long to wait
// between attempts. The zero value performs a single attempt.
type RetryPolicy struct {
	// Delays holds the wait before each retry. The number of attempts is
	// len(Delays)+1.
	Delays []time.Duration

	// Jitter adds a random extra wait of up to Jitter times the delay.
	Jitter float64

	// Retryable decides whether an error may be retried. Nil retries every
	// error. Nothing is retried once the caller's context is done.
	Retryable func(error) bool
}

// MaxAttempts returns the total number of attempts the policy allows.
func (p RetryPolicy) MaxAttempts() int {
	return len(p.Delays) + 1
}

// Delay returns the wait before retry n (starting at 0), including jitter.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 0 || n >= len(p.Delays) {
		return 0
	}
	d := p.Delays[n]
	if p.Jitter > 0 && d > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted, or ctx is done. It returns the number of attempts made and
// the last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt, lastErr
			}
			return attempt, err
		}

		err := fn(ctx, attempt)
		if err == nil {
			return attempt + 1, nil
		}
		lastErr = err

		if attempt >= maxAttempts-1 || ctx.Err() != nil || !p.retryable(err) {
			return attempt + 1, lastErr
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, lastErr
		case <-timer.C:
		}
	}
	return maxAttempts, lastErr
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}
