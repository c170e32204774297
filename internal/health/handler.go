package health

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the probe endpoints over HTTP.
type Handler struct {
	registry *Registry
}

// NewHandler creates a handler backed by the registry.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Health handles GET /health with full check details.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeResponse(w, h.registry.Health(r.Context()))
}

// Liveness handles GET /health/live for the Kubernetes liveness probe.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	h.writeResponse(w, h.registry.Liveness(r.Context()))
}

// Readiness handles GET /health/ready for the Kubernetes readiness
// probe. Returns 503 while a critical dependency is down.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	h.writeResponse(w, h.registry.Readiness(r.Context()))
}

func (h *Handler) writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")

	status := http.StatusOK
	if resp.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Mount registers the probe routes on a chi router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/health/live", h.Liveness)
	r.Get("/health/ready", h.Readiness)
}
