// Package ratelimit implements sliding-window request throttling keyed by an
// arbitrary string identifier, backed by a shared counter store so multiple
// server processes see a consistent count.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// CounterStore is the narrow interface over the shared counter backend. The
// increment must be atomic across concurrent callers sharing a key; a naive
// read-then-write race would under-count and defeat the limiter.
type CounterStore interface {
	// Incr atomically increments the counter at key and returns the new
	// value. The key expires after ttl once created.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Get returns the current counter value, or zero for a missing key.
	Get(ctx context.Context, key string) (int64, error)
}

// Result is the outcome of a single checkAndConsume call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Config holds the limiter policy.
type Config struct {
	Limit  int           // operations allowed per window
	Window time.Duration // rolling window length
}

// DefaultConfig is the policy for authentication endpoints: 5 operations per
// rolling 10-second window per key.
func DefaultConfig() Config {
	return Config{Limit: 5, Window: 10 * time.Second}
}

// Limiter counts events in a rolling interval using two fixed buckets: the
// previous bucket's count is weighted by how much of it still overlaps the
// rolling window. This bounds memory to two counters per key while staying
// close to a true sliding log.
type Limiter struct {
	store  CounterStore
	config Config
	prefix string
	now    func() time.Time
}

// New creates a limiter over the given counter store.
func New(store CounterStore, cfg Config) *Limiter {
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		cfg = DefaultConfig()
	}
	return &Limiter{
		store:  store,
		config: cfg,
		prefix: "rl",
		now:    time.Now,
	}
}

// Allow atomically consumes one slot for the identifier and reports whether
// the operation is within budget. Every attempt counts, allowed or not, so
// failed attempts cannot be used as free probes. When denied, ResetAt tells
// the caller when the window frees up.
func (l *Limiter) Allow(ctx context.Context, identifier string) (*Result, error) {
	now := l.now()
	windowMs := l.config.Window.Milliseconds()
	nowMs := now.UnixMilli()

	bucket := nowMs / windowMs
	currentKey := l.bucketKey(identifier, bucket)
	previousKey := l.bucketKey(identifier, bucket-1)

	// Counters live for two windows so the previous bucket is still
	// readable while it overlaps the rolling window.
	current, err := l.store.Incr(ctx, currentKey, 2*l.config.Window)
	if err != nil {
		return nil, fmt.Errorf("rate limit store: %w", err)
	}

	previous, err := l.store.Get(ctx, previousKey)
	if err != nil {
		return nil, fmt.Errorf("rate limit store: %w", err)
	}

	// Weight the previous bucket by its remaining overlap with the rolling
	// window, matching a sliding window without a per-event log.
	elapsed := float64(nowMs%windowMs) / float64(windowMs)
	weighted := float64(previous)*(1-elapsed) + float64(current)

	bucketEnd := time.UnixMilli((bucket + 1) * windowMs)

	if weighted > float64(l.config.Limit) {
		return &Result{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   bucketEnd,
		}, nil
	}

	remaining := l.config.Limit - int(weighted)
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   true,
		Remaining: remaining,
		ResetAt:   bucketEnd,
	}, nil
}

func (l *Limiter) bucketKey(identifier string, bucket int64) string {
	return fmt.Sprintf("%s:%s:%d", l.prefix, identifier, bucket)
}
