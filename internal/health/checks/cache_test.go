package checks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paklog/orchestration/internal/cache"
	"github.com/paklog/orchestration/internal/health"
)

func TestCacheCheckerHealthy(t *testing.T) {
	c := cache.NewMemoryCache(cache.DefaultConfig())
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "workflow:wf-1", []byte("v"), 0))
	_, _ = c.Get(context.Background(), "workflow:wf-1")

	checker := NewCacheChecker(c)
	result := checker.Check(context.Background())

	assert.Equal(t, health.StatusHealthy, result.Status)
	assert.Equal(t, int64(1), result.Details["hits"])
	assert.Equal(t, int64(1), result.Details["keys"])
}

func TestCacheCheckerUnhealthyAfterClose(t *testing.T) {
	c := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, c.Close())

	checker := NewCacheChecker(c)
	result := checker.Check(context.Background())

	assert.Equal(t, health.StatusUnhealthy, result.Status)
	assert.Contains(t, result.Message, "cache ping failed")
}

func TestCacheCheckerDefaults(t *testing.T) {
	c := cache.NewMemoryCache(cache.DefaultConfig())
	defer c.Close()

	checker := NewCacheChecker(c)

	assert.Equal(t, "cache", checker.Name())
	assert.Equal(t, health.SeverityWarning, checker.Severity())
}

func TestCacheCheckerOptions(t *testing.T) {
	c := cache.NewMemoryCache(cache.DefaultConfig())
	defer c.Close()

	checker := NewCacheChecker(c,
		WithCacheTimeout(5*time.Second),
		WithCacheSeverity(health.SeverityCritical),
	)

	assert.Equal(t, 5*time.Second, checker.timeout)
	assert.Equal(t, health.SeverityCritical, checker.Severity())
}
