package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/warden/internal/logger"
)

// redisTimeout bounds every cache round trip; a slow cache degrades to a miss
const redisTimeout = 2 * time.Second

// RedisRulesCache shares the active rules list of one tenant between replicas.
// The list is stored as a JSON array under "warden:rules:<tenant>".
// Redis failures are logged and reported as misses, so the engine falls back
// to its store.
type RedisRulesCache struct {
	client redis.UniversalClient
	key    string
	config CacheConfig
}

// NewRedisRulesCache creates a cache for tenantID on client
func NewRedisRulesCache(client redis.UniversalClient, tenantID string, config CacheConfig) *RedisRulesCache {
	return &RedisRulesCache{
		client: client,
		key:    RedisKey(tenantID),
		config: config,
	}
}

// RedisKey returns the key a tenant's active rules are cached under
func RedisKey(tenantID string) string {
	return fmt.Sprintf("warden:rules:%s", tenantID)
}

// Config returns the cache configuration
func (c *RedisRulesCache) Config() CacheConfig {
	return c.config
}

// Get returns the cached rules, or nil on a miss or error
func (c *RedisRulesCache) Get() []*Rule {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		logger.Warn("rules cache read failed", "key", c.key, "error", err)
		return nil
	}

	rules := []*Rule{}
	if err := json.Unmarshal(data, &rules); err != nil {
		logger.Warn("rules cache entry is corrupt", "key", c.key, "error", err)
		return nil
	}
	return rules
}

// Set stores rules with the configured TTL
func (c *RedisRulesCache) Set(rules []*Rule) {
	if rules == nil {
		rules = []*Rule{}
	}
	data, err := json.Marshal(rules)
	if err != nil {
		logger.Warn("rules cache encode failed", "key", c.key, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := c.client.Set(ctx, c.key, data, c.config.TTL).Err(); err != nil {
		logger.Warn("rules cache write failed", "key", c.key, "error", err)
	}
}

// Invalidate deletes the cached entry for every replica
func (c *RedisRulesCache) Invalidate() {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		logger.Warn("rules cache invalidate failed", "key", c.key, "error", err)
	}
}

// IsValid reports whether an unexpired entry exists
func (c *RedisRulesCache) IsValid() bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	n, err := c.client.Exists(ctx, c.key).Result()
	if err != nil {
		logger.Warn("rules cache lookup failed", "key", c.key, "error", err)
		return false
	}
	return n == 1
}
