package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Cache stores search results by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]Place, bool)
	Set(ctx context.Context, key string, places []Place) error
}

// Key fingerprints a query. Case and runs of whitespace do not matter.
func Key(q string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(q), " "))
	return fmt.Sprintf("geocode:%016x", xxhash.Sum64String(norm))
}

// LRUCache is an in-process cache bounded by entry count.
type LRUCache struct {
	lru *lru.Cache[string, []Place]
}

// NewLRUCache creates a cache holding up to size queries.
func NewLRUCache(size int) *LRUCache {
	if size <= 0 {
		size = 512
	}
	c, _ := lru.New[string, []Place](size)
	return &LRUCache{lru: c}
}

func (c *LRUCache) Get(_ context.Context, key string) ([]Place, bool) {
	return c.lru.Get(key)
}

func (c *LRUCache) Set(_ context.Context, key string, places []Place) error {
	c.lru.Add(key, places)
	return nil
}

// RedisCache shares results between server instances.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects to addr and pings it.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{rdb: rdb, ttl: ttl}, nil
}

// Get treats any Redis error as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]Place, bool) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var places []Place
	if err := json.Unmarshal(b, &places); err != nil {
		return nil, false
	}
	return places, true
}

func (c *RedisCache) Set(ctx context.Context, key string, places []Place) error {
	b, err := json.Marshal(places)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
