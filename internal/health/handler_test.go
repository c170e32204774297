package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, handler http.HandlerFunc, path string) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHealthEndpointHealthy(t *testing.T) {
	r := NewRegistry("1.4.0")
	h := NewHandler(r)

	rec, resp := probe(t, h.Health, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.4.0", resp.Version)
}

func TestHealthEndpointUnhealthy(t *testing.T) {
	r := NewRegistry("1.4.0")
	r.Register(&stubChecker{
		name:     "mongodb",
		severity: SeverityCritical,
		result:   CheckResult{Status: StatusUnhealthy, Message: "connection refused"},
	})
	h := NewHandler(r)

	rec, resp := probe(t, h.Health, "/health")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestLivenessEndpointIgnoresFailingChecks(t *testing.T) {
	r := NewRegistry("1.4.0")
	r.Register(&stubChecker{
		name:     "mongodb",
		severity: SeverityCritical,
		result:   CheckResult{Status: StatusUnhealthy},
	})
	h := NewHandler(r)

	rec, resp := probe(t, h.Liveness, "/health/live")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusHealthy, resp.Status)
}

func TestReadinessEndpoint(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		r := NewRegistry("1.4.0")
		r.Register(&stubChecker{
			name:     "mongodb",
			severity: SeverityCritical,
			result:   CheckResult{Status: StatusHealthy},
		})
		h := NewHandler(r)

		rec, _ := probe(t, h.Readiness, "/health/ready")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		r := NewRegistry("1.4.0")
		r.Register(&stubChecker{
			name:     "mongodb",
			severity: SeverityCritical,
			result:   CheckResult{Status: StatusUnhealthy, Message: "connection refused"},
		})
		h := NewHandler(r)

		rec, _ := probe(t, h.Readiness, "/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestMountRegistersRoutes(t *testing.T) {
	h := NewHandler(NewRegistry("1.4.0"))

	router := chi.NewRouter()
	h.Mount(router)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}
