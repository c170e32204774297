package checks

import (
	"context"

	"github.com/paklog/orchestration/internal/health"
)

// CustomChecker wraps a plain function as a health check. The scheduler
// and asynq worker register themselves this way.
type CustomChecker struct {
	name     string
	checkFn  func(ctx context.Context) health.CheckResult
	severity health.Severity
}

// CustomOption is a functional option for CustomChecker.
type CustomOption func(*CustomChecker)

// WithCustomSeverity sets the severity level.
func WithCustomSeverity(s health.Severity) CustomOption {
	return func(c *CustomChecker) {
		c.severity = s
	}
}

// NewCustomChecker creates a function-backed health checker.
func NewCustomChecker(name string, checkFn func(ctx context.Context) health.CheckResult, opts ...CustomOption) *CustomChecker {
	c := &CustomChecker{
		name:     name,
		checkFn:  checkFn,
		severity: health.SeverityWarning,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the name of this check.
func (c *CustomChecker) Name() string {
	return c.name
}

// Severity returns the severity of this check.
func (c *CustomChecker) Severity() health.Severity {
	return c.severity
}

// Check runs the wrapped function.
func (c *CustomChecker) Check(ctx context.Context) health.CheckResult {
	return c.checkFn(ctx)
}
