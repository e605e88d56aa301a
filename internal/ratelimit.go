package internal

import (
	"context"
	"sync"
	"time"
)

// BucketStore is the counter backend a Limiter uses. The default is an
// in-process map; RedisBucketStore (ratelimit_redis.go) backs the same
// interface with a shared store, so call sites never change when the
// deployment scales out (spec: "designed so it can be backed by a shared
// counter store without changing the call sites").
type BucketStore interface {
	// Incr increments the counter for key, creating it with the given
	// window if absent, and returns the new count and the time remaining
	// until the window resets.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

// Limiter applies a fixed-window counter per bucket key.
type Limiter struct {
	store BucketStore
}

// NewLimiter builds a Limiter backed by store.
func NewLimiter(store BucketStore) *Limiter {
	return &Limiter{store: store}
}

// Allow reports whether a request against bucket is within limit for the
// given window. On breach it returns a RATE_LIMITED *Error carrying a
// retry-after hint.
func (l *Limiter) Allow(ctx context.Context, bucket string, limit int64, window time.Duration) error {
	count, resetIn, err := l.store.Incr(ctx, bucket, window)
	if err != nil {
		return errInternal(err)
	}
	if count > limit {
		retryAfter := int(resetIn.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return errRateLimited(retryAfter)
	}
	return nil
}

// memoryBucketStore is the default in-process BucketStore, modeled on the
// teacher's RWMutex-guarded map style (manager.go), generalized to fixed
// windows with a reset deadline per key.
type memoryBucketStore struct {
	mu      sync.Mutex
	buckets map[string]*memoryBucket
}

type memoryBucket struct {
	count   int64
	resetAt time.Time
}

// NewMemoryBucketStore returns the default process-local BucketStore.
func NewMemoryBucketStore() BucketStore {
	return &memoryBucketStore{buckets: make(map[string]*memoryBucket)}
}

func (s *memoryBucketStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	b, exists := s.buckets[key]
	if !exists || now.After(b.resetAt) {
		b = &memoryBucket{resetAt: now.Add(window)}
		s.buckets[key] = b
	}
	b.count++
	return b.count, b.resetAt.Sub(now), nil
}
