// Package cache provides the read cache for workflow state, with Redis
// and in-memory backends.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is not found in the cache.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the operations the orchestration service needs from a
// cache backend.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error

	// DeletePattern invalidates every key matching a glob pattern.
	DeletePattern(ctx context.Context, pattern string) error

	// Incr atomically increments a counter key.
	Incr(ctx context.Context, key string) (int64, error)

	Close() error
	Health(ctx context.Context) error
	Stats() Stats
}

// Stats holds cache statistics.
type Stats struct {
	Hits   int64
	Misses int64
	Keys   int64
}

// Config holds cache configuration.
type Config struct {
	// Type is the cache backend type: "redis" or "memory".
	Type string

	// URL is the Redis connection URL (redis://localhost:6379).
	URL      string
	Password string
	DB       int

	// Cluster configuration.
	ClusterAddrs []string
	ClusterMode  bool

	// Connection pool settings.
	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	// DefaultTTL applies when a Set passes ttl 0.
	DefaultTTL time.Duration

	// Prefix namespaces keys so several services can share one Redis.
	Prefix string

	// MaxItems bounds the in-memory backend (0 = unlimited).
	MaxItems int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Type:         "memory",
		DefaultTTL:   30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		MaxItems:     10000,
		Prefix:       "orchestration",
	}
}

// New creates a cache backend from configuration.
func New(cfg Config) (Cache, error) {
	switch cfg.Type {
	case "redis":
		return NewRedisCache(cfg)
	case "memory", "":
		return NewMemoryCache(cfg), nil
	default:
		return nil, errors.New("unsupported cache type: " + cfg.Type)
	}
}
