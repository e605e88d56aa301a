package internal

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBucketStore backs Limiter with a shared Redis counter per bucket
// key, using an INCR+EXPIRE pipeline. Refreshing the TTL on every call
// means a steady trickle of requests keeps the window alive slightly
// longer than `window`; callers that need an exact fixed window should
// prefer the in-process store or accept this as an approximation.
type RedisBucketStore struct {
	client *redis.Client
	prefix string
}

// NewRedisBucketStore returns a BucketStore backed by client. keyPrefix is
// prepended to every bucket key to namespace it within a shared Redis
// instance.
func NewRedisBucketStore(client *redis.Client, keyPrefix string) *RedisBucketStore {
	return &RedisBucketStore{client: client, prefix: keyPrefix}
}

func (s *RedisBucketStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	fullKey := s.prefix + key

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	count, err := incr.Result()
	if err != nil {
		return 0, 0, err
	}

	ttl, err := s.client.TTL(ctx, fullKey).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return count, ttl, nil
}
