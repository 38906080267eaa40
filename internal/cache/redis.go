package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 2 * time.Second

// RedisCache implements Cache[T] on top of a shared Redis instance, storing
// values as JSON. A Redis round-trip failure is treated as a cache miss so
// callers always fall back to the source of truth.
type RedisCache[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisClient connects to Redis at addr ("host:port" or a redis:// URL)
// and verifies the connection.
func NewRedisClient(addr string) (*redis.Client, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		// Fallback to simple connection
		opt = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// NewRedisCache wraps an existing client. All keys are namespaced under
// prefix to keep different value types apart.
func NewRedisCache[T any](client *redis.Client, prefix string, ttl time.Duration) *RedisCache[T] {
	return &RedisCache[T]{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache[T]) key(k string) string {
	return c.prefix + ":" + k
}

// Get retrieves a value from the cache
func (c *RedisCache[T]) Get(key string) (T, bool) {
	var zero T

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("Redis get failed, treating as miss", "key", key, "error", err)
		}
		return zero, false
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		slog.Warn("Redis value unmarshal failed, treating as miss", "key", key, "error", err)
		return zero, false
	}
	return value, true
}

// Set stores a value in the cache
func (c *RedisCache[T]) Set(key string, data T) {
	raw, err := json.Marshal(data)
	if err != nil {
		slog.Warn("Redis value marshal failed, skipping set", "key", key, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := c.client.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		slog.Warn("Redis set failed", "key", key, "error", err)
	}
}

// Delete removes a key from the cache
func (c *RedisCache[T]) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		slog.Warn("Redis delete failed", "key", key, "error", err)
	}
}

// DeletePrefix removes every key starting with prefix.
func (c *RedisCache[T]) DeletePrefix(prefix string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	removed := 0
	iter := c.client.Scan(ctx, 0, c.key(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			slog.Warn("Redis delete failed", "key", iter.Val(), "error", err)
			continue
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		slog.Warn("Redis scan failed", "prefix", prefix, "error", err)
	}
	return removed
}

// Size returns the number of keys under this cache's namespace.
func (c *RedisCache[T]) Size() int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count := 0
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count
}
