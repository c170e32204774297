package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paklog/orchestration/internal/workflow"
	"github.com/paklog/orchestration/pkg/integration"
)

func callerWithService(t *testing.T, serviceName string, handler http.HandlerFunc) (*Caller, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := integration.DefaultConfig()
	cfg.ServiceName = serviceName
	cfg.BaseURL = srv.URL
	cfg.EnableMetrics = false
	cfg.EnableLogging = false
	cfg.Retry.MaxAttempts = 1

	c := NewCaller(nil)
	require.NoError(t, c.RegisterService(cfg))
	return c, srv
}

func TestCallDispatchesOperation(t *testing.T) {
	c, _ := callerWithService(t, "inventory-service", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/operations/reserve_inventory", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "order-1", req["orderId"])

		_ = json.NewEncoder(w).Encode(map[string]any{"reservationId": "rsv-1"})
	})

	out, err := c.Call(context.Background(), "inventory-service", "reserve_inventory", map[string]any{"orderId": "order-1"})
	require.NoError(t, err)
	assert.Equal(t, "rsv-1", out["reservationId"])
}

func TestCallUnknownService(t *testing.T) {
	c := NewCaller(nil)

	_, err := c.Call(context.Background(), "ghost-service", "noop", nil)

	var wErr workflow.WorkflowError
	require.ErrorAs(t, err, &wErr)
	assert.Equal(t, workflow.ErrorInternal, wErr.Type)
	assert.Equal(t, "UNKNOWN_SERVICE", wErr.Code)
	assert.False(t, wErr.Recoverable)
}

func TestCallMapsBusinessRuleViolation(t *testing.T) {
	c, _ := callerWithService(t, "inventory-service", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "insufficient stock for WIDGET-9"})
	})

	_, err := c.Call(context.Background(), "inventory-service", "reserve_inventory", nil)

	var wErr workflow.WorkflowError
	require.ErrorAs(t, err, &wErr)
	assert.Equal(t, workflow.ErrorBusinessRuleViolation, wErr.Type)
	assert.Equal(t, "HTTP_409", wErr.Code)
	assert.Equal(t, "insufficient stock for WIDGET-9", wErr.Message)
	assert.Equal(t, "inventory-service", wErr.ServiceName)
	assert.False(t, wErr.Recoverable)
	assert.True(t, wErr.RequiresCompensation())
}

func TestCallMapsValidationError(t *testing.T) {
	c, _ := callerWithService(t, "picking-service", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.Call(context.Background(), "picking-service", "pick_items", nil)

	var wErr workflow.WorkflowError
	require.ErrorAs(t, err, &wErr)
	assert.Equal(t, workflow.ErrorValidation, wErr.Type)
	assert.False(t, wErr.RequiresCompensation())
}

func TestCallMapsServerErrorAsRecoverable(t *testing.T) {
	c, _ := callerWithService(t, "robot-service", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Call(context.Background(), "robot-service", "assign_robot", nil)

	var wErr workflow.WorkflowError
	require.ErrorAs(t, err, &wErr)
	assert.Equal(t, workflow.ErrorServiceUnavailable, wErr.Type)
	assert.True(t, wErr.Recoverable)
}

func TestCallMapsTimeout(t *testing.T) {
	c, srv := callerWithService(t, "robot-service", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	_ = srv

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Call(ctx, "robot-service", "assign_robot", nil)

	var wErr workflow.WorkflowError
	require.ErrorAs(t, err, &wErr)
	assert.Equal(t, workflow.ErrorTimeout, wErr.Type)
	assert.True(t, wErr.Recoverable)
}

func TestCallMapsCircuitOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	cfg := integration.DefaultConfig()
	cfg.ServiceName = "packing-service"
	cfg.BaseURL = srv.URL
	cfg.EnableMetrics = false
	cfg.EnableLogging = false
	cfg.Retry.MaxAttempts = 1
	cfg.CircuitBreaker.FailureThreshold = 1
	cfg.CircuitBreaker.Timeout = time.Hour

	c := NewCaller(nil)
	require.NoError(t, c.RegisterService(cfg))

	_, err := c.Call(context.Background(), "packing-service", "pack_order", nil)
	require.Error(t, err)

	_, err = c.Call(context.Background(), "packing-service", "pack_order", nil)

	var wErr workflow.WorkflowError
	require.ErrorAs(t, err, &wErr)
	assert.Equal(t, workflow.ErrorServiceUnavailable, wErr.Type)
	assert.Equal(t, "CIRCUIT_OPEN", wErr.Code)
	assert.True(t, wErr.Recoverable)
}

func TestCallMalformedResponse(t *testing.T) {
	c, _ := callerWithService(t, "inventory-service", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := c.Call(context.Background(), "inventory-service", "reserve_inventory", nil)

	var wErr workflow.WorkflowError
	require.ErrorAs(t, err, &wErr)
	assert.Equal(t, workflow.ErrorDataIntegrity, wErr.Type)
}

func TestServices(t *testing.T) {
	c, _ := callerWithService(t, "inventory-service", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	assert.Equal(t, []string{"inventory-service"}, c.Services())
}
