// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Cache stores backend replies keyed by prompt hash.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryCache is a bounded in-process LRU cache with optional expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, string]
}

// NewMemoryCache creates an LRU holding at most size replies. A ttl <= 0
// keeps entries until they are evicted by size.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 128
	}
	return &MemoryCache{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.lru.Add(key, value)
	return nil
}

// Len returns the number of cached replies.
func (c *MemoryCache) Len() int { return c.lru.Len() }

// RedisCacheConfig describes the Redis connection used by RedisCache.
type RedisCacheConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisCache shares cached replies between processes through Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisCacheConfig) (*RedisCache, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis cache: address is required")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "agentloop:completion:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis cache: connect: %w", err)
	}
	return &RedisCache{client: client, prefix: prefix, ttl: cfg.TTL}, nil
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, c.prefix+key, value, c.ttl).Err()
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error { return c.client.Close() }

// CachedCompleter serves repeated prompts from a Cache. Cache failures are
// logged and fall through to the wrapped Completer; backend errors are never
// cached.
type CachedCompleter struct {
	next      Completer
	cache     Cache
	namespace string
	logger    *slog.Logger
}

// NewCachedCompleter wraps next with cache. namespace is mixed into every
// key, typically the provider and model name.
func NewCachedCompleter(next Completer, cache Cache, namespace string) *CachedCompleter {
	return &CachedCompleter{next: next, cache: cache, namespace: namespace, logger: slog.Default()}
}

// CacheKey returns the cache key for prompt within namespace.
func CacheKey(namespace, prompt string) string {
	sum := sha256.Sum256([]byte(namespace + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

// Complete implements Completer.
func (c *CachedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	key := CacheKey(c.namespace, prompt)
	if v, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "llm.cache.get.error", slog.String("error", err.Error()))
	} else if ok {
		c.logger.DebugContext(ctx, "llm.cache.hit", slog.String("key", key))
		return v, nil
	}

	reply, err := c.next.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := c.cache.Set(ctx, key, reply); err != nil {
		c.logger.WarnContext(ctx, "llm.cache.set.error", slog.String("error", err.Error()))
	}
	return reply, nil
}

var (
	_ Cache     = (*MemoryCache)(nil)
	_ Cache     = (*RedisCache)(nil)
	_ Completer = (*CachedCompleter)(nil)
)
