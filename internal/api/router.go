package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/paklog/orchestration/internal/health"
	"github.com/paklog/orchestration/pkg/logging"
	"github.com/paklog/orchestration/pkg/metrics"
)

// RouterConfig holds the optional pieces of the router.
type RouterConfig struct {
	Auth           *TokenValidator
	HealthHandler  *health.Handler
	Metrics        *metrics.Registry
	Logger         *logging.Logger
	RequestTimeout time.Duration
}

// NewRouter assembles the chi router: probe and scrape endpoints stay
// open, workflow and waveless routes sit behind the bearer-token guard.
func NewRouter(h *Handler, cfg RouterConfig) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	if cfg.Logger != nil {
		r.Use(logging.NewHTTPMiddleware(cfg.Logger.Logger).
			SkipPaths("/health", "/health/live", "/health/ready", "/metrics").
			Handler)
	}
	if cfg.Metrics != nil {
		r.Use(metrics.HTTPMiddlewareWithOptions(cfg.Metrics, metrics.MiddlewareOptions{
			SkipPaths: []string{"/health", "/health/live", "/health/ready", "/metrics"},
		}))
	}
	r.Use(jsonContentType)

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.Mount(r)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(cfg.Auth))

		r.Route("/workflows", func(r chi.Router) {
			r.Post("/", h.StartWorkflow)
			r.Get("/", h.ListWorkflows)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetWorkflow)
				r.Post("/pause", h.PauseWorkflow)
				r.Post("/resume", h.ResumeWorkflow)
				r.Post("/cancel", h.CancelWorkflow)
				r.Post("/retry", h.RetryWorkflow)
				r.Post("/compensate", h.CompensateWorkflow)
				r.Post("/waveless", h.EnableWaveless)
				r.Route("/steps/{stepID}", func(r chi.Router) {
					r.Post("/execute", h.ExecuteStep)
					r.Post("/fail", h.FailStep)
				})
			})
		})

		r.Route("/waveless", func(r chi.Router) {
			r.Get("/metrics", h.WavelessMetrics)
			r.Post("/rebalance", h.Rebalance)
		})
	})

	return r
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
