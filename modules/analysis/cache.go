package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores completed analysis results keyed by query so repeat lookups
// skip the upstream call and do not consume a search.
type Cache interface {
	Get(ctx context.Context, query string) ([]byte, bool, error)
	Set(ctx context.Context, query string, result []byte) error
}

// RedisCache is the redis-backed analysis cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates an analysis cache with the given entry lifetime.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

// cacheKey hashes the query so arbitrary user input never lands in key
// space directly.
func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "analysis:" + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Get(ctx context.Context, query string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(query)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, query string, result []byte) error {
	return c.client.Set(ctx, cacheKey(query), result, c.ttl).Err()
}

// MemoryCache is an in-memory analysis cache for tests.
type MemoryCache struct {
	entries map[string][]byte
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (c *MemoryCache) Get(_ context.Context, query string) ([]byte, bool, error) {
	val, ok := c.entries[cacheKey(query)]
	return val, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, query string, result []byte) error {
	c.entries[cacheKey(query)] = result
	return nil
}
