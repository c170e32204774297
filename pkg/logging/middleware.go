package logging

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestHeaderRequestID is the header name for request IDs.
const RequestHeaderRequestID = "X-Request-ID"

// RequestHeaderTraceID is the header name for trace IDs.
const RequestHeaderTraceID = "X-Trace-ID"

// HTTPMiddleware logs HTTP requests and propagates trace identifiers.
type HTTPMiddleware struct {
	logger    *slog.Logger
	skipPaths map[string]bool
}

// NewHTTPMiddleware creates a new HTTP logging middleware.
func NewHTTPMiddleware(logger *slog.Logger) *HTTPMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPMiddleware{
		logger:    logger.With("component", "http"),
		skipPaths: make(map[string]bool),
	}
}

// SkipPaths marks paths that should not be logged, such as health probes.
func (m *HTTPMiddleware) SkipPaths(paths ...string) *HTTPMiddleware {
	for _, p := range paths {
		m.skipPaths[p] = true
	}
	return m
}

// Handler returns the middleware handler.
func (m *HTTPMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestHeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		traceID := r.Header.Get(RequestHeaderTraceID)
		if traceID == "" {
			traceID = requestID
		}

		tc := TraceContext{
			RequestID: requestID,
			TraceID:   traceID,
			SpanID:    uuid.New().String(),
		}
		ctx := tc.ToContext(r.Context())

		w.Header().Set(RequestHeaderRequestID, requestID)
		if traceID != requestID {
			w.Header().Set(RequestHeaderTraceID, traceID)
		}

		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		if m.skipPaths[r.URL.Path] {
			return
		}

		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", wrapped.status),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_addr", r.RemoteAddr),
			slog.Int64("response_bytes", wrapped.bytes),
		}
		if r.URL.RawQuery != "" {
			attrs = append(attrs, slog.String("query", r.URL.RawQuery))
		}
		if r.ContentLength > 0 {
			attrs = append(attrs, slog.Int64("request_bytes", r.ContentLength))
		}

		level := slog.LevelInfo
		if wrapped.status >= 500 {
			level = slog.LevelError
		} else if wrapped.status >= 400 {
			level = slog.LevelWarn
		}

		m.logger.LogAttrs(ctx, level, "http request", attrs...)
	})
}

// responseWriter wraps http.ResponseWriter to capture status and bytes written.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// RequestLogger creates a request logging middleware from a logger.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return NewHTTPMiddleware(logger).Handler
}

// LoggerFromContext returns a logger with trace values pre-populated.
func LoggerFromContext(ctx context.Context, baseLogger *slog.Logger) *slog.Logger {
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	tc := FromContext(ctx)
	attrs := make([]any, 0, 6)
	if tc.RequestID != "" {
		attrs = append(attrs, "request_id", tc.RequestID)
	}
	if tc.TraceID != "" {
		attrs = append(attrs, "trace_id", tc.TraceID)
	}
	if tc.UserID != "" {
		attrs = append(attrs, "user_id", tc.UserID)
	}

	return baseLogger.With(attrs...)
}
