package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the Prometheus scrape handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(
		r.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}

// ServeHTTP implements http.Handler for the Registry.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Handler().ServeHTTP(w, req)
}

// Handler returns the global registry's scrape handler.
func Handler() http.Handler {
	return Global().Handler()
}
