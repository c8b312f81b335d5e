package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable distinguishes counter-store infrastructure failures
// from rate-limit denials.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// RedisStore is the production counter store. Redis INCR is atomic across
// processes, which is what makes the limiter safe in a multi-instance
// deployment.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a counter store over the given Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Incr atomically increments the key and attaches the TTL in the same
// round trip, so a crash cannot strand a counter without an expiry.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return incr.Val(), nil
}

// Get returns the counter value, treating a missing key as zero.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	count, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}
