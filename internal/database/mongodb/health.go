package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// HealthStatus is the health state of the MongoDB connection.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck probes the MongoDB connection.
type HealthCheck struct {
	client  *Client
	logger  *slog.Logger
	timeout time.Duration
}

// HealthCheckResult is the outcome of one probe.
type HealthCheckResult struct {
	Status    HealthStatus
	Message   string
	Latency   time.Duration
	Details   map[string]any
	Timestamp time.Time
}

// NewHealthCheck creates a health check for the given client.
func NewHealthCheck(client *Client, logger *slog.Logger) *HealthCheck {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthCheck{
		client:  client,
		logger:  logger.With("component", "mongodb_health"),
		timeout: 5 * time.Second,
	}
}

// SetTimeout overrides the probe timeout.
func (h *HealthCheck) SetTimeout(timeout time.Duration) {
	h.timeout = timeout
}

// Check pings the primary and collects server details.
func (h *HealthCheck) Check(ctx context.Context) HealthCheckResult {
	start := time.Now()
	result := HealthCheckResult{
		Timestamp: start,
		Details:   make(map[string]any),
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if h.client.IsClosed() {
		result.Status = HealthStatusUnhealthy
		result.Message = "client is closed"
		result.Latency = time.Since(start)
		return result
	}

	mongoClient := h.client.Client()
	if mongoClient == nil {
		result.Status = HealthStatusUnhealthy
		result.Message = "client is nil"
		result.Latency = time.Since(start)
		return result
	}

	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		result.Status = HealthStatusUnhealthy
		result.Message = fmt.Sprintf("ping failed: %v", err)
		result.Latency = time.Since(start)
		h.logger.Warn("health check failed", "error", err, "latency", result.Latency)
		return result
	}

	if db := h.client.Database(); db != nil {
		var serverStatus bson.M
		err := db.RunCommand(ctx, bson.D{{Key: "serverStatus", Value: 1}}).Decode(&serverStatus)
		if err == nil {
			if connections, ok := serverStatus["connections"].(bson.M); ok {
				result.Details["currentConnections"] = connections["current"]
				result.Details["availableConnections"] = connections["available"]
			}
			if version, ok := serverStatus["version"].(string); ok {
				result.Details["version"] = version
			}
		}
	}

	pool := h.client.PoolStats()
	result.Details["poolActive"] = pool.ActiveConnections
	result.Details["poolInUse"] = pool.InUseConnections

	result.Status = HealthStatusHealthy
	result.Message = "connection is healthy"
	result.Latency = time.Since(start)
	return result
}

// IsHealthy reports whether the last probe passed.
func (h *HealthCheck) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx).Status == HealthStatusHealthy
}

// Ping verifies connectivity without collecting details.
func (h *HealthCheck) Ping(ctx context.Context) error {
	if h.client.IsClosed() {
		return fmt.Errorf("mongodb: client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	mongoClient := h.client.Client()
	if mongoClient == nil {
		return fmt.Errorf("mongodb: client is nil")
	}
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb: ping failed: %w", err)
	}
	return nil
}

// CheckReadiness verifies the database accepts operations.
func (h *HealthCheck) CheckReadiness(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if h.client.IsClosed() {
		return fmt.Errorf("mongodb: client is closed")
	}

	db := h.client.Database()
	if db == nil {
		return fmt.Errorf("mongodb: database is nil")
	}
	if _, err := db.ListCollectionNames(ctx, bson.D{}); err != nil {
		return fmt.Errorf("mongodb: not ready: %w", err)
	}
	return nil
}
