package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a single-process fallback for development and tests only.
// It does not coordinate across processes, so a multi-instance deployment
// behind it would under-count; production must use RedisStore.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
}

type memoryCounter struct {
	count    int64
	expireAt time.Time
}

// NewMemoryStore creates an in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*memoryCounter)}
}

// Incr increments the key under a single process-wide lock.
func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.evictExpired(now)

	counter, ok := s.counters[key]
	if !ok {
		counter = &memoryCounter{expireAt: now.Add(ttl)}
		s.counters[key] = counter
	}

	counter.count++
	return counter.count, nil
}

// Get returns the counter value, treating missing or expired keys as zero.
func (s *MemoryStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[key]
	if !ok || time.Now().After(counter.expireAt) {
		return 0, nil
	}
	return counter.count, nil
}

// evictExpired drops dead counters; called with the lock held.
func (s *MemoryStore) evictExpired(now time.Time) {
	for key, counter := range s.counters {
		if now.After(counter.expireAt) {
			delete(s.counters, key)
		}
	}
}
