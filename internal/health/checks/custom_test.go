package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paklog/orchestration/internal/health"
)

func TestCustomCheckerRunsFunction(t *testing.T) {
	called := false
	checker := NewCustomChecker("scheduler", func(context.Context) health.CheckResult {
		called = true
		return health.CheckResult{
			Status:  health.StatusHealthy,
			Details: map[string]any{"queueDepth": 12},
		}
	})

	result := checker.Check(context.Background())

	assert.True(t, called)
	assert.Equal(t, health.StatusHealthy, result.Status)
	assert.Equal(t, 12, result.Details["queueDepth"])
}

func TestCustomCheckerDefaults(t *testing.T) {
	checker := NewCustomChecker("scheduler", func(context.Context) health.CheckResult {
		return health.CheckResult{Status: health.StatusHealthy}
	})

	assert.Equal(t, "scheduler", checker.Name())
	assert.Equal(t, health.SeverityWarning, checker.Severity())
}

func TestCustomCheckerSeverityOption(t *testing.T) {
	checker := NewCustomChecker("task-queue", func(context.Context) health.CheckResult {
		return health.CheckResult{Status: health.StatusHealthy}
	}, WithCustomSeverity(health.SeverityCritical))

	assert.Equal(t, health.SeverityCritical, checker.Severity())
}

func TestCustomCheckerReceivesContext(t *testing.T) {
	type ctxKey string
	key := ctxKey("probe")

	checker := NewCustomChecker("task-queue", func(ctx context.Context) health.CheckResult {
		if ctx.Value(key) == "ok" {
			return health.CheckResult{Status: health.StatusHealthy}
		}
		return health.CheckResult{Status: health.StatusUnhealthy}
	})

	ctx := context.WithValue(context.Background(), key, "ok")
	assert.Equal(t, health.StatusHealthy, checker.Check(ctx).Status)
}
