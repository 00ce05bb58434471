package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config holds the server settings read from the environment
type Config struct {
	// DatabaseURL is the PostgreSQL connection string. ENV: DATABASE_URL
	DatabaseURL string `env:"DATABASE_URL,required"`
	// Port the HTTP server listens on. ENV: PORT
	Port string `env:"PORT,default=8080"`

	// RedisURL enables the Redis rules cache when set, e.g. redis://localhost:6379/0. ENV: REDIS_URL
	RedisURL string `env:"REDIS_URL"`
	// RulesCacheTTL bounds how long an active-rules list is served from cache.
	// Zero means the cache is only invalidated by rule mutations. ENV: RULES_CACHE_TTL
	RulesCacheTTL time.Duration `env:"RULES_CACHE_TTL,default=0s"`

	// StrictDecoding rejects facts that do not match the tenant schema instead of
	// passing them through. Requests may still opt in individually. ENV: STRICT_DECODING
	StrictDecoding bool `env:"STRICT_DECODING,default=false"`

	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=30s"`
	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT,default=60s"`
	SlowRequestThreshold time.Duration `env:"SLOW_REQUEST_THRESHOLD,default=500ms"`
}

// Load reads Config from the environment
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envdecode cannot express in tags
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.RulesCacheTTL < 0 {
		return fmt.Errorf("RULES_CACHE_TTL must not be negative, got %s", c.RulesCacheTTL)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}
