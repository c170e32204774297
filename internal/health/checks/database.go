// Package checks provides the built-in dependency checkers.
package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/paklog/orchestration/internal/database/mongodb"
	"github.com/paklog/orchestration/internal/health"
)

// MongoProbe is the slice of mongodb.HealthCheck this checker needs.
type MongoProbe interface {
	Check(ctx context.Context) mongodb.HealthCheckResult
}

// DatabaseChecker probes MongoDB connectivity.
type DatabaseChecker struct {
	probe    MongoProbe
	timeout  time.Duration
	severity health.Severity
}

// DatabaseOption is a functional option for DatabaseChecker.
type DatabaseOption func(*DatabaseChecker)

// WithDatabaseTimeout sets the probe timeout.
func WithDatabaseTimeout(d time.Duration) DatabaseOption {
	return func(c *DatabaseChecker) {
		c.timeout = d
	}
}

// WithDatabaseSeverity sets the severity level.
func WithDatabaseSeverity(s health.Severity) DatabaseOption {
	return func(c *DatabaseChecker) {
		c.severity = s
	}
}

// NewDatabaseChecker creates a MongoDB health checker.
func NewDatabaseChecker(probe MongoProbe, opts ...DatabaseOption) *DatabaseChecker {
	c := &DatabaseChecker{
		probe:    probe,
		timeout:  2 * time.Second,
		severity: health.SeverityCritical,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the name of this check.
func (c *DatabaseChecker) Name() string {
	return "mongodb"
}

// Severity returns the severity of this check.
func (c *DatabaseChecker) Severity() health.Severity {
	return c.severity
}

// Check runs the MongoDB probe.
func (c *DatabaseChecker) Check(ctx context.Context) health.CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := c.probe.Check(ctx)
	if result.Status != mongodb.HealthStatusHealthy {
		return health.CheckResult{
			Status:  health.StatusUnhealthy,
			Message: fmt.Sprintf("mongodb check failed: %s", result.Message),
		}
	}

	return health.CheckResult{
		Status:  health.StatusHealthy,
		Details: result.Details,
	}
}
