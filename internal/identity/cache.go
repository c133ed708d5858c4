package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache adapts a go-redis client to Cache.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

// CachedStore reads through a Cache in front of a Resolver. Cache failures
// are logged and never fail the call.
type CachedStore struct {
	Resolver
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStore(next Resolver, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedStore {
	return &CachedStore{Resolver: next, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedStore) ResolveOrCreate(ctx context.Context, displayName string) (int, error) {
	name := Normalize(displayName)
	if name == "" {
		return 0, ErrEmptyName
	}
	key := "user:" + name

	if v, ok := c.get(ctx, key); ok {
		if id, err := strconv.Atoi(v); err == nil {
			return id, nil
		}
	}
	id, err := c.Resolver.ResolveOrCreate(ctx, name)
	if err != nil {
		return 0, err
	}
	c.set(ctx, key, strconv.Itoa(id))
	return id, nil
}

func (c *CachedStore) ClueReference(ctx context.Context, userID int) (string, error) {
	key := fmt.Sprintf("clue:%d", userID)
	if v, ok := c.get(ctx, key); ok {
		return v, nil
	}
	clue, err := c.Resolver.ClueReference(ctx, userID)
	if err != nil {
		return "", err
	}
	c.set(ctx, key, clue)
	return clue, nil
}

func (c *CachedStore) get(ctx context.Context, key string) (string, bool) {
	v, err := c.cache.Get(ctx, key)
	if err == nil {
		return v, true
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("identity cache read failed", "key", key, "error", err)
	}
	return "", false
}

func (c *CachedStore) set(ctx context.Context, key, value string) {
	if err := c.cache.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("identity cache write failed", "key", key, "error", err)
	}
}
