// Package health aggregates liveness and readiness probes for the
// orchestration service.
package health

import (
	"context"
	"time"
)

// Status is the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Severity controls whether a failing check takes the service out of
// rotation.
type Severity string

const (
	// SeverityCritical checks gate the readiness endpoint.
	SeverityCritical Severity = "critical"
	// SeverityWarning checks are reported but never fail readiness.
	SeverityWarning Severity = "warning"
)

// Response is the aggregate probe response.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the result of one checker.
type CheckResult struct {
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// Checker is one probe against a dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
	Severity() Severity
}
