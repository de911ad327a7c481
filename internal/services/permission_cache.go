package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// CachedDecision is the result of a cache lookup. Generation is the cache
// generation the lookup saw; a decision computed after a miss must be stored
// under it so a concurrent Invalidate orphans the write.
type CachedDecision struct {
	Allowed    bool
	Found      bool
	Generation int64
}

// PermissionCache remembers authorization decisions for a short time.
// Invalidate drops every remembered decision.
type PermissionCache interface {
	Get(ctx context.Context, userID, slug string) (CachedDecision, error)
	Set(ctx context.Context, generation int64, userID, slug string, allowed bool) error
	Invalidate(ctx context.Context) error
}

const permissionGenerationKey = "formsdb:perm:generation"

// RedisPermissionCache keys decisions by (generation, user, slug). Bumping
// the generation orphans every earlier entry, which then expires by ttl.
type RedisPermissionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPermissionCache(client *redis.Client, ttl time.Duration) *RedisPermissionCache {
	return &RedisPermissionCache{client: client, ttl: ttl}
}

func (c *RedisPermissionCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, permissionGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisPermissionCache) key(gen int64, userID, slug string) string {
	return fmt.Sprintf("formsdb:perm:%d:%s:%s", gen, userID, slug)
}

func (c *RedisPermissionCache) Get(ctx context.Context, userID, slug string) (CachedDecision, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return CachedDecision{}, err
	}
	decision := CachedDecision{Generation: gen}
	val, err := c.client.Get(ctx, c.key(gen, userID, slug)).Result()
	if errors.Is(err, redis.Nil) {
		return decision, nil
	}
	if err != nil {
		return CachedDecision{}, err
	}
	decision.Allowed = val == "1"
	decision.Found = true
	return decision, nil
}

// Set stores a decision under the generation its lookup saw. Once the
// generation has moved on, the entry is unreachable and expires by ttl.
func (c *RedisPermissionCache) Set(ctx context.Context, generation int64, userID, slug string, allowed bool) error {
	val := "0"
	if allowed {
		val = "1"
	}
	return c.client.Set(ctx, c.key(generation, userID, slug), val, c.ttl).Err()
}

func (c *RedisPermissionCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, permissionGenerationKey).Err()
}
