package recordstore

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines retry behavior with exponential backoff and jitter.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// NewRetryPolicy creates the default policy.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ShouldRetry decides whether another attempt is allowed. For
// non-idempotent calls only failures known not to have been applied are
// retried (pre-send transport errors and 429 rejections).
func (p *RetryPolicy) ShouldRetry(attempt int, err error, idempotent bool) bool {
	if attempt >= p.MaxAttempts-1 {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if !apiErr.Retryable() {
			return false
		}
		if !idempotent {
			// 429 means the store rejected the call outright; safe either way.
			return apiErr.StatusCode == 429
		}
		return true
	}

	var transport *TransportError
	if errors.As(err, &transport) {
		if !idempotent && transport.Sent {
			return false
		}
		return true
	}

	return false
}

// Backoff calculates the delay before the given attempt, with ±25% jitter.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter

	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}
	return time.Duration(backoff)
}
