package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry owns every Prometheus metric the orchestration service exposes.
type Registry struct {
	config   Config
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec
	httpActiveRequests  *prometheus.GaugeVec

	// Mongo metrics
	dbQueriesTotal      *prometheus.CounterVec
	dbQueryDuration     *prometheus.HistogramVec
	dbQueryErrors       *prometheus.CounterVec
	dbConnectionsActive prometheus.Gauge
	dbConnectionsIdle   prometheus.Gauge
	dbConnectionsMax    prometheus.Gauge

	// Workflow metrics
	workflowExecutionsTotal   *prometheus.CounterVec
	workflowExecutionDuration *prometheus.HistogramVec
	workflowActiveCount       *prometheus.GaugeVec
	workflowStepDuration      *prometheus.HistogramVec

	// Saga metrics
	sagaRecoveriesTotal    *prometheus.CounterVec
	sagaCompensationsTotal *prometheus.CounterVec

	// Waveless scheduler metrics
	schedulerBatchesTotal         prometheus.Counter
	schedulerBatchSize            prometheus.Histogram
	schedulerAdmissionsTotal      prometheus.Counter
	schedulerQueueDepth           prometheus.Gauge
	schedulerAdmissionPausedTotal prometheus.Counter

	// Integration metrics
	integrationCallsTotal   *prometheus.CounterVec
	integrationCallDuration *prometheus.HistogramVec
	integrationCircuitState *prometheus.GaugeVec
	integrationRetryCount   *prometheus.CounterVec
	integrationErrors       *prometheus.CounterVec

	mu sync.RWMutex
}

// Global registry instance
var (
	globalRegistry *Registry
	once           sync.Once
)

// NewRegistry creates a metrics registry with the given configuration.
func NewRegistry(config Config) *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		config:   config,
		registry: reg,
	}

	r.registerHTTPMetrics()
	r.registerMongoMetrics()
	r.registerWorkflowMetrics()
	r.registerSagaMetrics()
	r.registerSchedulerMetrics()
	r.registerIntegrationMetrics()

	if config.EnableProcessMetrics {
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	if config.EnableRuntimeMetrics {
		reg.MustRegister(collectors.NewGoCollector())
	}

	return r
}

// Global returns the global registry, initializing it with defaults on
// first use.
func Global() *Registry {
	once.Do(func() {
		globalRegistry = NewRegistry(DefaultConfig())
	})
	return globalRegistry
}

// SetGlobal replaces the global registry instance.
func SetGlobal(r *Registry) {
	globalRegistry = r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Config returns the registry configuration.
func (r *Registry) Config() Config {
	return r.config
}

func (r *Registry) registerHTTPMetrics() {
	ns := r.config.Namespace

	r.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status_code"},
	)

	r.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   r.config.HistogramBuckets.HTTPDuration,
		},
		[]string{"method", "path"},
	)

	r.httpRequestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   r.config.HistogramBuckets.HTTPSize,
		},
		[]string{"method", "path"},
	)

	r.httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   r.config.HistogramBuckets.HTTPSize,
		},
		[]string{"method", "path"},
	)

	r.httpActiveRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "active_requests",
			Help:      "Number of currently active HTTP requests",
		},
		[]string{"method", "path"},
	)

	r.registry.MustRegister(
		r.httpRequestsTotal,
		r.httpRequestDuration,
		r.httpRequestSize,
		r.httpResponseSize,
		r.httpActiveRequests,
	)
}

func (r *Registry) registerMongoMetrics() {
	ns := r.config.Namespace

	r.dbQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "mongodb",
			Name:      "operations_total",
			Help:      "Total number of MongoDB operations executed",
		},
		[]string{"operation", "collection", "status"},
	)

	r.dbQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "mongodb",
			Name:      "operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   r.config.HistogramBuckets.DBDuration,
		},
		[]string{"operation", "collection"},
	)

	r.dbQueryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "mongodb",
			Name:      "operation_errors_total",
			Help:      "Total number of MongoDB operation errors",
		},
		[]string{"operation", "collection", "error_type"},
	)

	r.dbConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "mongodb",
			Name:      "connections_active",
			Help:      "Number of checked-out MongoDB connections",
		},
	)

	r.dbConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "mongodb",
			Name:      "connections_idle",
			Help:      "Number of idle MongoDB connections",
		},
	)

	r.dbConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "mongodb",
			Name:      "connections_max",
			Help:      "Configured MongoDB connection pool size",
		},
	)

	r.registry.MustRegister(
		r.dbQueriesTotal,
		r.dbQueryDuration,
		r.dbQueryErrors,
		r.dbConnectionsActive,
		r.dbConnectionsIdle,
		r.dbConnectionsMax,
	)
}

func (r *Registry) registerWorkflowMetrics() {
	ns := r.config.Namespace

	r.workflowExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "workflow",
			Name:      "executions_total",
			Help:      "Total number of finished workflow executions",
		},
		[]string{"workflow_name", "status"},
	)

	r.workflowExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "workflow",
			Name:      "execution_duration_seconds",
			Help:      "Workflow execution duration in seconds",
			Buckets:   r.config.HistogramBuckets.WorkflowDuration,
		},
		[]string{"workflow_name"},
	)

	r.workflowActiveCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "workflow",
			Name:      "active_count",
			Help:      "Number of currently active workflows",
		},
		[]string{"workflow_name"},
	)

	r.workflowStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "workflow",
			Name:      "step_duration_seconds",
			Help:      "Workflow step duration in seconds",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
		[]string{"workflow_name", "step_name"},
	)

	r.registry.MustRegister(
		r.workflowExecutionsTotal,
		r.workflowExecutionDuration,
		r.workflowActiveCount,
		r.workflowStepDuration,
	)
}

func (r *Registry) registerSagaMetrics() {
	ns := r.config.Namespace

	r.sagaRecoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "saga",
			Name:      "recoveries_total",
			Help:      "Total number of saga recovery decisions",
		},
		[]string{"direction"},
	)

	r.sagaCompensationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "saga",
			Name:      "compensations_total",
			Help:      "Total number of finished backward recoveries",
		},
		[]string{"outcome"},
	)

	r.registry.MustRegister(
		r.sagaRecoveriesTotal,
		r.sagaCompensationsTotal,
	)
}

func (r *Registry) registerSchedulerMetrics() {
	ns := r.config.Namespace

	r.schedulerBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "batches_total",
			Help:      "Total number of waveless admission batches processed",
		},
	)

	r.schedulerBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "batch_size",
			Help:      "Size of waveless admission batches",
			Buckets:   []float64{1, 2, 5, 10, 20, 50},
		},
	)

	r.schedulerAdmissionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "admissions_total",
			Help:      "Total number of workflows admitted by the waveless scheduler",
		},
	)

	r.schedulerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Number of workflows waiting for admission",
		},
	)

	r.schedulerAdmissionPausedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "admission_paused_total",
			Help:      "Number of ticks on which admission was paused for overload",
		},
	)

	r.registry.MustRegister(
		r.schedulerBatchesTotal,
		r.schedulerBatchSize,
		r.schedulerAdmissionsTotal,
		r.schedulerQueueDepth,
		r.schedulerAdmissionPausedTotal,
	)
}

func (r *Registry) registerIntegrationMetrics() {
	ns := r.config.Namespace

	r.integrationCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "integration",
			Name:      "calls_total",
			Help:      "Total number of remote service calls",
		},
		[]string{"service_name", "endpoint", "status_code"},
	)

	r.integrationCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "integration",
			Name:      "call_duration_seconds",
			Help:      "Remote service call duration in seconds",
			Buckets:   r.config.HistogramBuckets.IntegrationDuration,
		},
		[]string{"service_name", "endpoint"},
	)

	r.integrationCircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "integration",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (1 on the active state)",
		},
		[]string{"service_name", "state"},
	)

	r.integrationRetryCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "integration",
			Name:      "retries_total",
			Help:      "Total number of remote call retry attempts",
		},
		[]string{"service_name", "endpoint"},
	)

	r.integrationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "integration",
			Name:      "errors_total",
			Help:      "Total number of remote call errors",
		},
		[]string{"service_name", "endpoint", "error_type"},
	)

	r.registry.MustRegister(
		r.integrationCallsTotal,
		r.integrationCallDuration,
		r.integrationCircuitState,
		r.integrationRetryCount,
		r.integrationErrors,
	)
}
