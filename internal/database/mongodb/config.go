// Package mongodb manages the MongoDB connection for the orchestration
// service: pooling, connect retries, transactions and health probes.
package mongodb

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds MongoDB connection configuration.
type Config struct {
	// URI is the connection string (mongodb://localhost:27017).
	URI string

	// Database is the database name.
	Database string

	// Connection pool bounds.
	MinPoolSize uint64
	MaxPoolSize uint64

	ConnectTimeout         time.Duration
	SocketTimeout          time.Duration
	ServerSelectionTimeout time.Duration

	RetryWrites bool
	RetryReads  bool

	// Connect retry policy for startup.
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URI:                    "mongodb://localhost:27017",
		Database:               "orchestration",
		MinPoolSize:            5,
		MaxPoolSize:            100,
		ConnectTimeout:         10 * time.Second,
		SocketTimeout:          30 * time.Second,
		ServerSelectionTimeout: 5 * time.Second,
		RetryWrites:            true,
		RetryReads:             true,
		MaxRetries:             3,
		RetryBackoff:           100 * time.Millisecond,
		MaxRetryBackoff:        5 * time.Second,
	}
}

// ConfigFromEnv builds a Config from MONGODB_* environment variables,
// starting from the defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("MONGODB_URI"); v != "" {
		cfg.URI = v
	}
	if v := os.Getenv("MONGODB_DATABASE"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("MONGODB_MIN_POOL_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.MinPoolSize = n
		}
	}
	if v := os.Getenv("MONGODB_MAX_POOL_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.MaxPoolSize = n
		}
	}
	if v := os.Getenv("MONGODB_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ConnectTimeout = d
		}
	}
	return cfg
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("mongodb: URI is required")
	}
	if c.Database == "" {
		return fmt.Errorf("mongodb: database name is required")
	}
	if c.MinPoolSize > c.MaxPoolSize {
		return fmt.Errorf("mongodb: MinPoolSize (%d) cannot exceed MaxPoolSize (%d)",
			c.MinPoolSize, c.MaxPoolSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("mongodb: MaxRetries cannot be negative")
	}
	return nil
}
