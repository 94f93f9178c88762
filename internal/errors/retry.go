package errors

import (
	"context"
	"math"
	"time"
)

// RetryPolicy bounds how often and how patiently an operation is retried.
type RetryPolicy struct {
	// Attempts counts the first call, so 1 disables retries.
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultRetry suits short calls to external APIs such as Telegram.
var DefaultRetry = RetryPolicy{
	Attempts:   4,
	Initial:    200 * time.Millisecond,
	Max:        5 * time.Second,
	Multiplier: 2,
}

// Retry calls fn until it succeeds, returns an error that is not
// retryable, or the attempts run out. Waiting between attempts stops early
// when ctx is done; the last error from fn is returned in that case.
func Retry(ctx context.Context, p RetryPolicy, fn func() error) error {
	if fn == nil {
		return nil
	}
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt == p.Attempts {
			return err
		}

		timer := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}

	return err
}

// IsRetryable reports whether err is an AppError marked Retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if As(err, &appErr) && appErr != nil {
		return appErr.Retryable
	}
	return false
}

// backoff returns the wait after the given failed attempt, starting at
// Initial and growing by Multiplier up to Max.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := time.Duration(float64(p.Initial) * math.Pow(mult, float64(attempt-1)))
	if p.Max > 0 && delay > p.Max {
		return p.Max
	}
	return delay
}
