package jobs

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy controls how failed jobs are rescheduled.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt. Default: 3.
	MaxRetries int

	// BaseDelay is the delay before the first retry. Default: 60s.
	BaseDelay time.Duration

	// Multiplier scales the delay after each retry. Default: 2.0.
	Multiplier float64

	// MaxDelay caps the delay. Default: 1h.
	MaxDelay time.Duration

	// JitterFraction adds ±fraction of the computed delay. Default: 0.
	JitterFraction float64

	// ShouldRetry optionally overrides the default check, which retries
	// everything not marked Permanent.
	ShouldRetry func(err error) bool
}

// DefaultRetryPolicy retries 3 times after 60s, 120s and 240s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  60 * time.Second,
		Multiplier: 2.0,
		MaxDelay:   time.Hour,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 60 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = time.Hour
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	return p
}

// MaxAttempts is the first try plus all retries.
func (p RetryPolicy) MaxAttempts() int {
	return p.withDefaults().MaxRetries + 1
}

// Backoff returns the delay before retry number `retry` (0-based).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	p = p.withDefaults()
	if retry < 0 {
		retry = 0
	}
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(retry))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.JitterFraction > 0 {
		jitterRange := delay * p.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitterRange
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Retryable reports whether err may be retried under this policy.
func (p RetryPolicy) Retryable(err error) bool {
	if p.ShouldRetry != nil {
		return p.ShouldRetry(err)
	}
	return !IsPermanent(err)
}

// PermanentError marks an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the worker buries the job right away.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent checks if any error in the chain is a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
