// Package retry implements the exponential-backoff policy used by LLM
// provider adapters, ported from the teacher's internal/httpclient
// RetryableError/rate-limit-header parsing into a small reusable policy
// object so every provider adapter shares one retry implementation.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"
)

// Policy is the backoff schedule described in spec.md §5: initial 0.5s,
// factor 2, max 3 attempts, jitter up to 0.5, retried on connection
// failures and the given status codes.
type Policy struct {
	InitialDelay time.Duration
	Factor       float64
	MaxAttempts  int
	Jitter       float64
	RetryStatus  map[int]bool
}

// Default is the policy spec.md §5 mandates.
func Default() Policy {
	return Policy{
		InitialDelay: 500 * time.Millisecond,
		Factor:       2,
		MaxAttempts:  3,
		Jitter:       0.5,
		RetryStatus: map[int]bool{
			429: true, 500: true, 502: true, 503: true, 504: true,
		},
	}
}

// RetryableError carries the HTTP status that triggered a retry decision.
// Ported from the teacher's httpclient.RetryableError.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *RetryableError) Unwrap() error { return e.Err }

// ShouldRetry reports whether err warrants another attempt under p.
func (p Policy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var re *RetryableError
	if errors.As(err, &re) && re.StatusCode != 0 {
		return p.RetryStatus[re.StatusCode]
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Delay returns the backoff delay before attempt (1-indexed).
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Factor
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * rand.Float64()
	}
	return time.Duration(d)
}

// Do runs fn up to p.MaxAttempts times, sleeping between attempts according
// to Delay, and returns the last error if every attempt is exhausted or a
// non-retryable error is returned.
func Do(ctx context.Context, p Policy, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !p.ShouldRetry(lastErr) || attempt == p.MaxAttempts {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return lastErr
}
