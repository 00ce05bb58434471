package rules

import (
	"slices"
	"sync"
	"time"
)

// InMemoryRulesCache holds one snapshot of the active rules in process memory.
// It is safe for concurrent use.
type InMemoryRulesCache struct {
	config CacheConfig

	mu       sync.RWMutex
	snapshot []*Rule // nil when invalidated
	storedAt time.Time
}

func NewInMemoryRulesCache(config CacheConfig) *InMemoryRulesCache {
	return &InMemoryRulesCache{config: config}
}

func (c *InMemoryRulesCache) Config() CacheConfig {
	return c.config
}

// Get returns a copy of the snapshot. A valid snapshot of zero rules comes back
// as an empty, non-nil slice so callers can tell it apart from a miss.
func (c *InMemoryRulesCache) Get() []*Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh() {
		return nil
	}
	return slices.Clone(c.snapshot)
}

func (c *InMemoryRulesCache) Set(rules []*Rule) {
	snapshot := slices.Clone(rules)
	if snapshot == nil {
		snapshot = []*Rule{}
	}

	c.mu.Lock()
	c.snapshot = snapshot
	c.storedAt = time.Now()
	c.mu.Unlock()
}

func (c *InMemoryRulesCache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
}

func (c *InMemoryRulesCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fresh()
}

// fresh must be called with mu held
func (c *InMemoryRulesCache) fresh() bool {
	if c.snapshot == nil {
		return false
	}
	return c.config.TTL <= 0 || time.Since(c.storedAt) <= c.config.TTL
}
