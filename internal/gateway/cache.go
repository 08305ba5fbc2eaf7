// cache.go provides the response cache in front of upstream calls.
//
// Caching is an optimization, never a correctness dependency: a backend
// failure turns Get into a miss and Set into a no-op. The "caching disabled"
// state is a designed backend (noop), not an error path.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"groww-gateway/internal/config"
)

// Cache stores serialized responses under derived keys with per-entry TTLs.
// Expired entries are treated identically to absent ones.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// NewNoopCache returns a cache where every Get misses and every Set is
// dropped. Used when caching is disabled or the backend is unreachable.
func NewNoopCache() Cache { return noopCache{} }

type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (noopCache) Set(context.Context, string, []byte, time.Duration) {}

// NewMemoryCache returns a process-local cache with lazy plus periodic
// expiry. Good enough for a single instance; use redis to share across
// replicas.
func NewMemoryCache() Cache {
	return &memoryCache{inner: gocache.New(5*time.Minute, 10*time.Minute)}
}

type memoryCache struct {
	inner *gocache.Cache
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := c.inner.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.inner.Set(key, value, ttl)
}

// NewRedisCache connects to redis and verifies the connection with a ping.
// Callers that want the documented pass-through degradation fall back to
// NewNoopCache when this returns an error.
func NewRedisCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &redisCache{
		client: client,
		logger: logger.With("component", "cache"),
	}, nil
}

type redisCache struct {
	client *redis.Client
	logger *slog.Logger
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Debug("cache get failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return b, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Debug("cache set failed, dropping entry", "key", key, "error", err)
	}
}
