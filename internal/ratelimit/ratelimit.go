// Package ratelimit throttles forced refreshes so a noisy viewer cannot
// turn the poll loop into a fetch storm.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	// RetryAfter is how long until the next token, zero when allowed.
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
// Implementations must be safe for concurrent use. An error means the
// limiter itself failed; callers let the request through.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Close() error
}

// NoopLimiter permits every request.
type NoopLimiter struct{}

// Allow always permits.
func (NoopLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
