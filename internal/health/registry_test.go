package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubChecker struct {
	name     string
	severity Severity
	result   CheckResult
}

func (s *stubChecker) Name() string       { return s.name }
func (s *stubChecker) Severity() Severity { return s.severity }
func (s *stubChecker) Check(context.Context) CheckResult {
	return s.result
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry("1.4.0")

	assert.Equal(t, "1.4.0", r.Version())
	assert.Empty(t, r.Checkers())
	assert.WithinDuration(t, time.Now(), r.StartTime(), time.Second)
}

func TestLivenessAlwaysHealthy(t *testing.T) {
	r := NewRegistry("1.4.0")
	r.Register(&stubChecker{
		name:     "mongodb",
		severity: SeverityCritical,
		result:   CheckResult{Status: StatusUnhealthy},
	})

	resp := r.Liveness(context.Background())

	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.4.0", resp.Version)
	assert.NotEmpty(t, resp.Uptime)
	assert.Empty(t, resp.Checks)
}

func TestReadinessRunsOnlyCriticalChecks(t *testing.T) {
	r := NewRegistry("1.4.0")
	r.Register(&stubChecker{
		name:     "mongodb",
		severity: SeverityCritical,
		result:   CheckResult{Status: StatusHealthy},
	})
	r.Register(&stubChecker{
		name:     "cache",
		severity: SeverityWarning,
		result:   CheckResult{Status: StatusUnhealthy},
	})

	resp := r.Readiness(context.Background())

	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Contains(t, resp.Checks, "mongodb")
	assert.NotContains(t, resp.Checks, "cache")
}

func TestReadinessFailsOnCriticalCheck(t *testing.T) {
	r := NewRegistry("1.4.0")
	r.Register(&stubChecker{
		name:     "mongodb",
		severity: SeverityCritical,
		result:   CheckResult{Status: StatusUnhealthy, Message: "ping failed"},
	})

	resp := r.Readiness(context.Background())

	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "ping failed", resp.Checks["mongodb"].Message)
}

func TestHealthRunsAllChecks(t *testing.T) {
	r := NewRegistry("1.4.0")
	r.Register(&stubChecker{
		name:     "mongodb",
		severity: SeverityCritical,
		result:   CheckResult{Status: StatusHealthy},
	})
	r.Register(&stubChecker{
		name:     "cache",
		severity: SeverityWarning,
		result:   CheckResult{Status: StatusHealthy},
	})

	resp := r.Health(context.Background())

	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestWarningFailureDegradesOverallStatus(t *testing.T) {
	r := NewRegistry("1.4.0")
	r.Register(&stubChecker{
		name:     "mongodb",
		severity: SeverityCritical,
		result:   CheckResult{Status: StatusHealthy},
	})
	r.Register(&stubChecker{
		name:     "cache",
		severity: SeverityWarning,
		result:   CheckResult{Status: StatusUnhealthy, Message: "redis down"},
	})

	resp := r.Health(context.Background())

	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestCriticalFailureWinsOverDegraded(t *testing.T) {
	r := NewRegistry("1.4.0")
	r.Register(&stubChecker{
		name:     "cache",
		severity: SeverityWarning,
		result:   CheckResult{Status: StatusDegraded},
	})
	r.Register(&stubChecker{
		name:     "mongodb",
		severity: SeverityCritical,
		result:   CheckResult{Status: StatusUnhealthy},
	})

	resp := r.Health(context.Background())

	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestCheckDurationRecorded(t *testing.T) {
	r := NewRegistry("1.4.0")
	r.Register(&stubChecker{
		name:     "mongodb",
		severity: SeverityCritical,
		result:   CheckResult{Status: StatusHealthy},
	})

	resp := r.Health(context.Background())

	assert.GreaterOrEqual(t, resp.Checks["mongodb"].Duration, time.Duration(0))
}
