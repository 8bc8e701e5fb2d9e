package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis adapts a pooled github.com/redis/go-redis/v9 client to Cache,
// grounded on the bootstrap pattern used elsewhere in the stack
// (ParseURL, construct, Ping).
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an already-connected client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Dial parses url, constructs a client, and verifies connectivity with a
// Ping before returning, closing the client on failure.
func Dial(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %q: %w", key, err)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache delete %q: %w", key, err)
	}
	return n > 0, nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists %q: %w", key, err)
	}
	return n > 0, nil
}

// DeletePattern translates glob's single '*' into Redis's native glob
// syntax (identical), scans with SCAN to avoid blocking on KEYS, and
// deletes matches in batches.
func (r *Redis) DeletePattern(ctx context.Context, glob string) (int64, error) {
	var cursor uint64
	var count int64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, glob, 256).Result()
		if err != nil {
			return count, fmt.Errorf("scanning pattern %q: %w", glob, err)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return count, fmt.Errorf("deleting scanned keys: %w", err)
			}
			count += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count, nil
}

func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("cache ttl %q: %w", key, err)
	}
	if d < 0 {
		return 0, false, nil
	}
	return d, true, nil
}

func (r *Redis) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := r.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("cache incrby %q: %w", key, err)
	}
	return n, nil
}

func (r *Redis) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := r.client.DecrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("cache decrby %q: %w", key, err)
	}
	return n, nil
}

func (r *Redis) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache mget: %w", err)
	}
	out := make(map[string][]byte, len(keys))
	for i, v := range vals {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[keys[i]] = []byte(s)
		}
	}
	return out, nil
}

func (r *Redis) SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	pipe := r.client.Pipeline()
	for k, v := range items {
		pipe.Set(ctx, k, v, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache setmany: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

func (r *Redis) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	pattern := prefix + "*"
	if prefix == "" {
		pattern = "*"
	}
	var cursor uint64
	var out []string
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 256).Result()
		if err != nil {
			return nil, fmt.Errorf("listing keys: %w", err)
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func (r *Redis) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache health check: %w", err)
	}
	return nil
}
