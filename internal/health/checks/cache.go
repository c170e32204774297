package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/paklog/orchestration/internal/cache"
	"github.com/paklog/orchestration/internal/health"
)

// CacheChecker probes the workflow cache backend.
type CacheChecker struct {
	cache    cache.Cache
	timeout  time.Duration
	severity health.Severity
}

// CacheOption is a functional option for CacheChecker.
type CacheOption func(*CacheChecker)

// WithCacheTimeout sets the probe timeout.
func WithCacheTimeout(d time.Duration) CacheOption {
	return func(c *CacheChecker) {
		c.timeout = d
	}
}

// WithCacheSeverity sets the severity level.
func WithCacheSeverity(s health.Severity) CacheOption {
	return func(c *CacheChecker) {
		c.severity = s
	}
}

// NewCacheChecker creates a cache health checker. The cache is a read
// optimization, so it defaults to warning severity.
func NewCacheChecker(c cache.Cache, opts ...CacheOption) *CacheChecker {
	checker := &CacheChecker{
		cache:    c,
		timeout:  1 * time.Second,
		severity: health.SeverityWarning,
	}
	for _, opt := range opts {
		opt(checker)
	}
	return checker
}

// Name returns the name of this check.
func (c *CacheChecker) Name() string {
	return "cache"
}

// Severity returns the severity of this check.
func (c *CacheChecker) Severity() health.Severity {
	return c.severity
}

// Check pings the cache and reports hit counters.
func (c *CacheChecker) Check(ctx context.Context) health.CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.cache.Health(ctx); err != nil {
		return health.CheckResult{
			Status:  health.StatusUnhealthy,
			Message: fmt.Sprintf("cache ping failed: %v", err),
		}
	}

	stats := c.cache.Stats()
	return health.CheckResult{
		Status: health.StatusHealthy,
		Details: map[string]any{
			"hits":   stats.Hits,
			"misses": stats.Misses,
			"keys":   stats.Keys,
		},
	}
}
