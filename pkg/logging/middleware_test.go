package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func middlewareHarness(t *testing.T) (*HTTPMiddleware, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := NewWithWriter(Config{Level: "info", Format: "json", SampleRate: 1.0}, buf)
	return NewHTTPMiddleware(logger.Logger), buf
}

func TestMiddlewareLogsRequest(t *testing.T) {
	mw, buf := middlewareHarness(t)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"wf-1"}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/workflows?priority=high", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/workflows", entry["path"])
	assert.Equal(t, float64(http.StatusCreated), entry["status"])
	assert.Equal(t, "priority=high", entry["query"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestMiddlewareGeneratesRequestID(t *testing.T) {
	mw, _ := middlewareHarness(t)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, GetRequestID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/workflows/wf-1", nil))

	assert.NotEmpty(t, rec.Header().Get(RequestHeaderRequestID))
}

func TestMiddlewarePropagatesUpstreamIDs(t *testing.T) {
	mw, buf := middlewareHarness(t)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/workflows", nil)
	req.Header.Set(RequestHeaderRequestID, "req-upstream")
	req.Header.Set(RequestHeaderTraceID, "trace-upstream")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-upstream", rec.Header().Get(RequestHeaderRequestID))
	assert.Equal(t, "trace-upstream", rec.Header().Get(RequestHeaderTraceID))
	assert.Contains(t, buf.String(), "trace-upstream")
}

func TestMiddlewareErrorLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		mw, buf := middlewareHarness(t)
		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/workflows", nil))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, tt.level, entry["level"])
	}
}

func TestMiddlewareSkipsHealthProbes(t *testing.T) {
	mw, buf := middlewareHarness(t)
	mw.SkipPaths("/healthz", "/readyz")

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, buf.String())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/workflows", nil))
	assert.True(t, strings.Contains(buf.String(), "/workflows"))
}

func TestLoggerFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	base := slog.New(slog.NewJSONHandler(buf, nil))

	ctx := TraceContext{RequestID: "req-1", TraceID: "trace-1", UserID: "operator-1"}.ToContext(context.Background())
	LoggerFromContext(ctx, base).Info("resumed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "operator-1", entry["user_id"])
}
