package checks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/paklog/orchestration/internal/database/mongodb"
	"github.com/paklog/orchestration/internal/health"
)

type stubProbe struct {
	result mongodb.HealthCheckResult
}

func (s *stubProbe) Check(context.Context) mongodb.HealthCheckResult {
	return s.result
}

func TestDatabaseCheckerHealthy(t *testing.T) {
	probe := &stubProbe{result: mongodb.HealthCheckResult{
		Status:  mongodb.HealthStatusHealthy,
		Details: map[string]any{"version": "7.0.5", "currentConnections": int32(4)},
	}}

	checker := NewDatabaseChecker(probe)
	result := checker.Check(context.Background())

	assert.Equal(t, health.StatusHealthy, result.Status)
	assert.Equal(t, "7.0.5", result.Details["version"])
	assert.Empty(t, result.Message)
}

func TestDatabaseCheckerUnhealthy(t *testing.T) {
	probe := &stubProbe{result: mongodb.HealthCheckResult{
		Status:  mongodb.HealthStatusUnhealthy,
		Message: "ping failed: connection refused",
	}}

	checker := NewDatabaseChecker(probe)
	result := checker.Check(context.Background())

	assert.Equal(t, health.StatusUnhealthy, result.Status)
	assert.Contains(t, result.Message, "mongodb check failed")
	assert.Contains(t, result.Message, "connection refused")
}

func TestDatabaseCheckerDefaults(t *testing.T) {
	checker := NewDatabaseChecker(&stubProbe{})

	assert.Equal(t, "mongodb", checker.Name())
	assert.Equal(t, health.SeverityCritical, checker.Severity())
}

func TestDatabaseCheckerOptions(t *testing.T) {
	checker := NewDatabaseChecker(&stubProbe{},
		WithDatabaseTimeout(5*time.Second),
		WithDatabaseSeverity(health.SeverityWarning),
	)

	assert.Equal(t, 5*time.Second, checker.timeout)
	assert.Equal(t, health.SeverityWarning, checker.Severity())
}
