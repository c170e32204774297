package metrics

import (
	"net/http"
	"regexp"
	"time"
)

// MiddlewareOptions configures the HTTP metrics middleware.
type MiddlewareOptions struct {
	// PathNormalizer collapses dynamic path segments before labeling.
	// Defaults to DefaultPathNormalizer.
	PathNormalizer func(string) string

	// SkipPaths are never recorded.
	SkipPaths []string
}

// HTTPMiddleware records request metrics with default options.
func HTTPMiddleware(registry *Registry) func(http.Handler) http.Handler {
	return HTTPMiddlewareWithOptions(registry, MiddlewareOptions{})
}

// HTTPMiddlewareWithOptions records request count, duration, size and
// in-flight gauge for every request.
func HTTPMiddlewareWithOptions(registry *Registry, opts MiddlewareOptions) func(http.Handler) http.Handler {
	if opts.PathNormalizer == nil {
		opts.PathNormalizer = DefaultPathNormalizer
	}

	skip := make(map[string]bool, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := opts.PathNormalizer(r.URL.Path)
			if skip[path] {
				next.ServeHTTP(w, r)
				return
			}

			httpMetrics := registry.HTTP()
			httpMetrics.IncActiveRequests(r.Method, path)
			defer httpMetrics.DecActiveRequests(r.Method, path)

			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(wrapped, r)

			reqSize := r.ContentLength
			if reqSize < 0 {
				reqSize = 0
			}
			httpMetrics.RecordRequest(
				r.Method,
				path,
				wrapped.status,
				time.Since(start).Seconds(),
				reqSize,
				wrapped.size,
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += int64(n)
	return n, err
}

func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

var (
	uuidPattern      = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	objectIDPattern  = regexp.MustCompile(`/[0-9a-fA-F]{24}(?:/|$)`)
	numericIDPattern = regexp.MustCompile(`/\d+(?:/|$)`)
)

// DefaultPathNormalizer replaces workflow IDs (UUIDs, ObjectIDs and
// numeric IDs) with {id} to keep label cardinality bounded.
func DefaultPathNormalizer(path string) string {
	path = uuidPattern.ReplaceAllString(path, "{id}")

	replaceSegment := func(s string) string {
		if s[len(s)-1] == '/' {
			return "/{id}/"
		}
		return "/{id}"
	}
	path = objectIDPattern.ReplaceAllStringFunc(path, replaceSegment)
	path = numericIDPattern.ReplaceAllStringFunc(path, replaceSegment)
	return path
}
