// Package config assembles the process configuration from environment
// variables. Each subsystem keeps its own Config type; this package only
// collects them into one immutable value for the server command.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paklog/orchestration/internal/cache"
	"github.com/paklog/orchestration/internal/database/mongodb"
	"github.com/paklog/orchestration/internal/execution"
	"github.com/paklog/orchestration/internal/loadbalance"
	"github.com/paklog/orchestration/internal/waveless"
	"github.com/paklog/orchestration/pkg/integration"
	"github.com/paklog/orchestration/pkg/logging"
)

// HTTPConfig holds the HTTP listener settings.
type HTTPConfig struct {
	Addr           string
	RequestTimeout time.Duration
}

// AuthConfig holds the bearer-token settings for the API. An empty
// Secret disables authentication.
type AuthConfig struct {
	Secret string
	Issuer string
}

// RedisConfig holds the shared Redis connection used by the lock and
// the asynq retry queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config is the full process configuration.
type Config struct {
	HTTP        HTTPConfig
	Auth        AuthConfig
	Mongo       mongodb.Config
	Cache       cache.Config
	Redis       RedisConfig
	Logging     logging.Config
	Execution   execution.Config
	Waveless    waveless.Config
	LoadBalance loadbalance.Config

	// Services are the execution services steps can call, one config
	// per entry of EXECUTION_SERVICES.
	Services []integration.Config

	// Workers is the asynq worker concurrency for delayed retries.
	Workers int
}

// FromEnv builds the process configuration from environment variables,
// starting from each subsystem's defaults.
func FromEnv() Config {
	cfg := Config{
		HTTP: HTTPConfig{
			Addr:           envString("HTTP_ADDR", ":8080"),
			RequestTimeout: envDuration("HTTP_REQUEST_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			Secret: os.Getenv("AUTH_SECRET"),
			Issuer: os.Getenv("AUTH_ISSUER"),
		},
		Mongo: mongodb.ConfigFromEnv(),
		Redis: RedisConfig{
			Addr:     envString("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		Logging:     logging.ConfigFromEnv(),
		Execution:   execution.DefaultConfig(),
		Waveless:    waveless.DefaultConfig(),
		LoadBalance: loadbalance.DefaultConfig(),
		Workers:     envInt("WORKER_CONCURRENCY", 10),
	}

	cfg.Cache = cache.DefaultConfig()
	if v := os.Getenv("CACHE_TYPE"); v != "" {
		cfg.Cache.Type = v
	}
	if v := os.Getenv("CACHE_URL"); v != "" {
		cfg.Cache.URL = v
		if cfg.Cache.Type == "" || cfg.Cache.Type == "memory" {
			cfg.Cache.Type = "redis"
		}
	}
	if v := os.Getenv("CACHE_PREFIX"); v != "" {
		cfg.Cache.Prefix = v
	}
	cfg.Cache.DefaultTTL = envDuration("CACHE_TTL", cfg.Cache.DefaultTTL)

	cfg.Execution.LockTTL = envDuration("LOCK_TTL", cfg.Execution.LockTTL)
	cfg.Execution.LockMaxWait = envDuration("LOCK_MAX_WAIT", cfg.Execution.LockMaxWait)

	cfg.Waveless.DefaultBatchSize = envInt("WAVELESS_BATCH_SIZE", cfg.Waveless.DefaultBatchSize)
	cfg.Waveless.MaxBatchSize = envInt("WAVELESS_MAX_BATCH_SIZE", cfg.Waveless.MaxBatchSize)
	cfg.Waveless.BaseTick = envDuration("WAVELESS_TICK", cfg.Waveless.BaseTick)
	cfg.Waveless.SampleInterval = envDuration("WAVELESS_SAMPLE_INTERVAL", cfg.Waveless.SampleInterval)

	for _, name := range splitList(os.Getenv("EXECUTION_SERVICES")) {
		cfg.Services = append(cfg.Services, integration.ConfigFromEnv(name))
	}

	return cfg
}

// Validate checks the assembled configuration.
func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http addr must not be empty")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr must not be empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("worker concurrency %d must be positive", c.Workers)
	}
	if err := c.Mongo.Validate(); err != nil {
		return fmt.Errorf("mongo: %w", err)
	}
	if err := c.Execution.Validate(); err != nil {
		return fmt.Errorf("execution: %w", err)
	}
	if err := c.Waveless.Validate(); err != nil {
		return fmt.Errorf("waveless: %w", err)
	}
	for _, svc := range c.Services {
		if svc.BaseURL == "" {
			return fmt.Errorf("service %s: base url must not be empty", svc.ServiceName)
		}
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
