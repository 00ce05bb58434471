package rules

import "time"

// RulesCache holds the active rules of one engine between store reads.
// InMemoryRulesCache serves a single process. RedisRulesCache lets server
// replicas share a tenant's list.
type RulesCache interface {
	// Get returns nil on a miss or after expiry
	Get() []*Rule
	Set(rules []*Rule)
	// Invalidate forces the next Get to miss
	Invalidate()
	IsValid() bool
}

type CacheConfig struct {
	// TTL bounds how long a Set stays valid. Zero keeps entries until Invalidate.
	TTL time.Duration

	// RefreshOnInvalidate makes the engine reload from the store as soon as a
	// rule changes rather than on the next read.
	RefreshOnInvalidate bool
}

// DefaultCacheConfig never expires and refreshes lazily
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{}
}
