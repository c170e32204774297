package metrics

import "time"

// DatabaseMetrics records MongoDB operation metrics.
type DatabaseMetrics struct {
	registry *Registry
}

// Database returns the MongoDB metrics interface for the registry.
func (r *Registry) Database() *DatabaseMetrics {
	return &DatabaseMetrics{registry: r}
}

// RecordOperation records one MongoDB operation with its outcome.
func (d *DatabaseMetrics) RecordOperation(operation, collection string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	d.registry.dbQueriesTotal.WithLabelValues(operation, collection, status).Inc()
	d.registry.dbQueryDuration.WithLabelValues(operation, collection).Observe(duration.Seconds())
}

// RecordError records one classified MongoDB operation error.
func (d *DatabaseMetrics) RecordError(operation, collection, errorType string) {
	d.registry.dbQueryErrors.WithLabelValues(operation, collection, errorType).Inc()
}

// SetConnectionPool updates the connection pool gauges.
func (d *DatabaseMetrics) SetConnectionPool(active, idle, max float64) {
	d.registry.dbConnectionsActive.Set(active)
	d.registry.dbConnectionsIdle.Set(idle)
	d.registry.dbConnectionsMax.Set(max)
}
