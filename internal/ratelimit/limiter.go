package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of a quota check.
type Decision struct {
	// Allowed reports whether the action may proceed
	Allowed bool

	// RetryAfter is how long to wait before the window resets (set on denial)
	RetryAfter time.Duration
}

// CounterStore is the shared counter backend. Incr atomically increments the
// counter for key within the current fixed window and returns the new count
// plus the time remaining until the window resets.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// Limiter enforces a fixed-window quota per key. The window resets at fixed
// interval boundaries; all callers for the same key share one counter.
type Limiter struct {
	store  CounterStore
	window time.Duration
}

// New creates a limiter over the given store with a fixed window duration.
func New(store CounterStore, window time.Duration) *Limiter {
	return &Limiter{store: store, window: window}
}

// Window returns the limiter's window duration.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// TryConsume atomically counts one action against key and compares it to
// limit. A store failure denies the action (fail closed) and surfaces the
// error so the caller can treat it as retryable.
func (l *Limiter) TryConsume(ctx context.Context, key string, limit int) (Decision, error) {
	count, ttl, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return Decision{Allowed: false, RetryAfter: l.window}, fmt.Errorf("rate limit store unavailable: %w", err)
	}

	if count > int64(limit) {
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true}, nil
}
