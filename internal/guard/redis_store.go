package guard

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a CounterStore backed by Redis, for deployments where
// several instances must share rate-limit state. The Limiter contract is
// identical to the in-memory store; only the backend changes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

// Incr implements CounterStore using INCR with a window-scoped TTL. Redis
// serializes the increment, so concurrent instances never undercount.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error) {
	rkey := s.prefix + key

	count, err := s.client.Incr(ctx, rkey).Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	if count == 1 {
		if err := s.client.PExpire(ctx, rkey, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		return int(count), now, nil
	}

	ttl, err := s.client.PTTL(ctx, rkey).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if ttl < 0 {
		// Expiry was lost (e.g. a crash between INCR and PEXPIRE).
		// Re-arm it and treat this request as the window start.
		if err := s.client.PExpire(ctx, rkey, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		return int(count), now, nil
	}

	windowStart := now.Add(ttl - window)
	return int(count), windowStart, nil
}
