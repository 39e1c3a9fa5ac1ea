package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "hierarchy"

// HierarchyCache stores rendered hierarchy documents by source checksum and query.
type HierarchyCache interface {
	Get(ctx context.Context, checksum, query string) ([]byte, bool, error)
	Set(ctx context.Context, checksum, query string, payload []byte) error
}

type redisHierarchyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewHierarchyCache returns a Redis-backed cache, or nil when Redis is
// disabled or ttl is zero.
func NewHierarchyCache(r *Redis, ttl time.Duration) HierarchyCache {
	if !r.Enabled() || ttl <= 0 {
		return nil
	}
	return &redisHierarchyCache{client: r.Client, ttl: ttl}
}

// CacheKey builds the Redis key for a checksum and query.
func CacheKey(checksum, query string) string {
	return fmt.Sprintf("%s:%s:%s", cacheKeyPrefix, checksum, query)
}

func (c *redisHierarchyCache) Get(ctx context.Context, checksum, query string) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, CacheKey(checksum, query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (c *redisHierarchyCache) Set(ctx context.Context, checksum, query string, payload []byte) error {
	return c.client.Set(ctx, CacheKey(checksum, query), payload, c.ttl).Err()
}
