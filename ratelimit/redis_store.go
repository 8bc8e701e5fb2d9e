package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by a shared Redis instance, for multi-
// process deployments. The fixed-window path mirrors the
// INCR-then-conditionally-EXPIRE pattern used for login rate limiting
// elsewhere in the stack: only the first increment in a window sets the
// expiry, so concurrent incrementers never reset each other's TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing, already-connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("incrementing rate limit key %q: %w", key, err)
	}
	count := incr.Val()
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("setting expiry for %q: %w", key, err)
		}
	}
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("reading ttl for %q: %w", key, err)
	}
	return count, time.Now().Add(ttl), nil
}

func (r *RedisStore) PeekFixed(ctx context.Context, key string) (int64, time.Time, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("reading rate limit key %q: %w", key, err)
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("parsing rate limit value for %q: %w", key, err)
	}
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("reading ttl for %q: %w", key, err)
	}
	return count, time.Now().Add(ttl), true, nil
}

// sliding window is implemented with a Redis sorted set keyed by
// timestamp, scored by the same value so pruning is a ZREMRANGEBYSCORE.
func (r *RedisStore) AddTimestamp(ctx context.Context, key string, now time.Time, window time.Duration) ([]time.Time, error) {
	score := float64(now.UnixNano())
	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now.Add(-window).UnixNano(), 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: score})
	pipe.Expire(ctx, key, window)
	members := pipe.ZRange(ctx, key, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("updating sliding window key %q: %w", key, err)
	}
	return parseMembers(members.Val())
}

func (r *RedisStore) PeekSliding(ctx context.Context, key string, now time.Time, window time.Duration) ([]time.Time, error) {
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)
	members, err := r.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: cutoff, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("reading sliding window key %q: %w", key, err)
	}
	return parseMembers(members)
}

func parseMembers(members []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(members))
	for _, m := range members {
		nanos, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing sliding window member %q: %w", m, err)
		}
		out = append(out, time.Unix(0, nanos))
	}
	return out, nil
}
