package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	cfg := DefaultConfig()
	cfg.EnableProcessMetrics = false
	cfg.EnableRuntimeMetrics = false
	return NewRegistry(cfg)
}

func TestRegistryNamespace(t *testing.T) {
	r := newTestRegistry()
	r.HTTP().RecordRequest("GET", "/workflows", 200, 0.05, 100, 500)

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["orchestration_http_requests_total"])
	assert.True(t, names["orchestration_http_request_duration_seconds"])
}

func TestWorkflowExecutionTimer(t *testing.T) {
	r := newTestRegistry()
	wm := r.Workflow()

	timer := wm.NewExecutionTimer("picking")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.workflowActiveCount.WithLabelValues("picking")))

	timer.Success()
	assert.Equal(t, 0.0, testutil.ToFloat64(r.workflowActiveCount.WithLabelValues("picking")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.workflowExecutionsTotal.WithLabelValues("picking", "success")))

	wm.NewExecutionTimer("picking").Compensated()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.workflowExecutionsTotal.WithLabelValues("picking", "compensated")))
}

func TestSagaMetrics(t *testing.T) {
	r := newTestRegistry()

	r.RecordSagaRecovery(RecoveryForward)
	r.RecordSagaRecovery(RecoveryForward)
	r.RecordSagaRecovery(RecoveryBackward)
	r.RecordCompensation(CompensationPartial)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.sagaRecoveriesTotal.WithLabelValues(RecoveryForward)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sagaRecoveriesTotal.WithLabelValues(RecoveryBackward)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sagaCompensationsTotal.WithLabelValues(CompensationPartial)))
}

func TestSchedulerMetrics(t *testing.T) {
	r := newTestRegistry()

	r.RecordSchedulerBatch(5, 4)
	r.RecordSchedulerBatch(2, 2)
	r.SetSchedulerQueueDepth(12)
	r.RecordAdmissionPaused()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.schedulerBatchesTotal))
	assert.Equal(t, 6.0, testutil.ToFloat64(r.schedulerAdmissionsTotal))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.schedulerQueueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.schedulerAdmissionPausedTotal))
}

func TestDatabaseMetrics(t *testing.T) {
	r := newTestRegistry()
	dm := r.Database()

	dm.RecordOperation("save", "workflow_instances", 5*time.Millisecond, nil)
	dm.RecordOperation("save", "workflow_instances", 5*time.Millisecond, errors.New("conflict"))
	dm.RecordError("save", "workflow_instances", "version_conflict")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.dbQueriesTotal.WithLabelValues("save", "workflow_instances", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.dbQueriesTotal.WithLabelValues("save", "workflow_instances", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.dbQueryErrors.WithLabelValues("save", "workflow_instances", "version_conflict")))
}

func TestCircuitBreakerStateGauge(t *testing.T) {
	r := newTestRegistry()

	r.Integration().SetCircuitBreakerState("inventory-service", CircuitBreakerOpen)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.integrationCircuitState.WithLabelValues("inventory-service", "open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.integrationCircuitState.WithLabelValues("inventory-service", "closed")))
	assert.Equal(t, 2.0, CircuitBreakerOpen.Value())
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("dial tcp: i/o timeout"), "timeout"},
		{errors.New("connection refused"), "connection_refused"},
		{errors.New("lookup svc: no such host"), "dns_error"},
		{errors.New("x509: certificate expired"), "tls_error"},
		{errors.New("context canceled"), "cancelled"},
		{errors.New("boom"), "unknown"},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyError(tt.err))
	}
}

func TestClassifyHTTPError(t *testing.T) {
	assert.Equal(t, "client_error", ClassifyHTTPError(404))
	assert.Equal(t, "server_error", ClassifyHTTPError(503))
	assert.Equal(t, "connection_error", ClassifyHTTPError(0))
	assert.Equal(t, "unknown", ClassifyHTTPError(200))
}

func TestDefaultPathNormalizer(t *testing.T) {
	assert.Equal(t, "/workflows/{id}", DefaultPathNormalizer("/workflows/0f8fad5b-d9cb-469f-a165-70867728950e"))
	assert.Equal(t, "/workflows/{id}/steps", DefaultPathNormalizer("/workflows/507f1f77bcf86cd799439011/steps"))
	assert.Equal(t, "/orders/{id}", DefaultPathNormalizer("/orders/12345"))
	assert.Equal(t, "/healthz", DefaultPathNormalizer("/healthz"))
}

func TestHTTPMiddleware(t *testing.T) {
	r := newTestRegistry()
	handler := HTTPMiddleware(r)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/workflows", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequestsTotal.WithLabelValues("POST", "/workflows", "202")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.httpActiveRequests.WithLabelValues("POST", "/workflows")))
}

func TestMiddlewareSkipPaths(t *testing.T) {
	r := newTestRegistry()
	handler := HTTPMiddlewareWithOptions(r, MiddlewareOptions{SkipPaths: []string{"/metrics"}})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Zero(t, testutil.CollectAndCount(r.httpRequestsTotal))
}
