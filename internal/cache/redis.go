package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	applog "shakkin/internal/log"
)

// RedisCache stores byte payloads in Redis under a key prefix. Redis
// failures degrade to cache misses so callers fall back to recomputing.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to addr and verifies the connection with PING.
func NewRedisCache(ctx context.Context, addr, prefix string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return newRedisCache(client, prefix, ttl), nil
}

func newRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// key namespaces k under the prefix, separated by a colon.
func (c *RedisCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return strings.TrimSuffix(c.prefix, ":") + ":" + k
}

// Get implements Cache
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "Redis get failed",
				applog.FieldComponent, applog.ComponentCache, "key", key, "error", err)
		}
		return nil, false
	}
	return val, true
}

// Set implements Cache
func (c *RedisCache) Set(ctx context.Context, key string, data []byte) {
	if err := c.client.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Redis set failed",
			applog.FieldComponent, applog.ComponentCache, "key", key, "error", err)
	}
}

// Delete implements Cache
func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		slog.WarnContext(ctx, "Redis delete failed",
			applog.FieldComponent, applog.ComponentCache, "key", key, "error", err)
	}
}

// Ping reports whether Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
