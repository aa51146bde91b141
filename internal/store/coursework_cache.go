package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CourseworkCache caches derived per-coursework data in Redis. Every key is
// namespaced by a per-coursework generation counter, so invalidating a
// coursework is a single INCR that atomically orphans all of its cached
// entries. Entries are never patched individually.
type CourseworkCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCourseworkCache builds the cache. A nil client disables caching; every
// Get becomes a miss and Set/Invalidate become no-ops.
func NewCourseworkCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *CourseworkCache {
	return &CourseworkCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "coursework_cache").Logger(),
	}
}

func (c *CourseworkCache) generationKey(courseworkID uint) string {
	return fmt.Sprintf("coursework:%d:generation", courseworkID)
}

func (c *CourseworkCache) generation(ctx context.Context, courseworkID uint) int64 {
	value, err := c.client.Get(ctx, c.generationKey(courseworkID)).Int64()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Uint("coursework_id", courseworkID).Msg("failed to read cache generation")
		}
		return 0
	}
	return value
}

func (c *CourseworkCache) entryKey(ctx context.Context, courseworkID uint, key string) string {
	return fmt.Sprintf("coursework:%d:g%d:%s", courseworkID, c.generation(ctx, courseworkID), key)
}

// Get loads a cached value into dest. The boolean reports a cache hit.
func (c *CourseworkCache) Get(ctx context.Context, courseworkID uint, key string, dest interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}

	payload, err := c.client.Get(ctx, c.entryKey(ctx, courseworkID, key)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("failed to read cache entry")
		}
		return false
	}

	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to decode cache entry")
		return false
	}

	return true
}

// Set stores a value under the coursework's current generation.
func (c *CourseworkCache) Set(ctx context.Context, courseworkID uint, key string, value interface{}) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to encode cache entry")
		return
	}

	if err := c.client.Set(ctx, c.entryKey(ctx, courseworkID, key), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to store cache entry")
	}
}

// Invalidate drops every cached entry for the coursework by bumping its
// generation. Orphaned entries age out via their TTL.
func (c *CourseworkCache) Invalidate(ctx context.Context, courseworkID uint) {
	if c == nil || c.client == nil {
		return
	}

	if err := c.client.Incr(ctx, c.generationKey(courseworkID)).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("coursework_id", courseworkID).Msg("failed to invalidate coursework cache")
	}
}
