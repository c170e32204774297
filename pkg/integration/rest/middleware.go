package rest

import (
	"log/slog"
	"net/http"

	"github.com/paklog/orchestration/pkg/logging"
	"github.com/paklog/orchestration/pkg/metrics"
)

// Middleware is an interface for request/response middleware.
type Middleware interface {
	HandleRequest(req *http.Request) error
	HandleResponse(resp *Response) error
}

// LoggingMiddleware logs request and response details with sensitive
// headers redacted.
type LoggingMiddleware struct {
	logger *slog.Logger
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware() *LoggingMiddleware {
	return &LoggingMiddleware{
		logger: slog.Default().With("component", "rest_middleware"),
	}
}

// HandleRequest logs the outgoing request.
func (m *LoggingMiddleware) HandleRequest(req *http.Request) error {
	m.logger.Debug("outgoing request",
		"method", req.Method,
		"url", req.URL.String(),
		"headers", m.redactHeaders(req.Header),
	)
	return nil
}

// HandleResponse logs the incoming response.
func (m *LoggingMiddleware) HandleResponse(resp *Response) error {
	m.logger.Debug("incoming response",
		"status_code", resp.StatusCode,
		"duration", resp.Duration,
		"body_size", len(resp.Body),
	)
	return nil
}

func (m *LoggingMiddleware) redactHeaders(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			continue
		}
		if logging.IsSensitiveField(key) {
			result[key] = logging.RedactedValue
		} else {
			result[key] = values[0]
		}
	}
	return result
}

// MetricsMiddleware records per-request call metrics.
type MetricsMiddleware struct {
	serviceName string
	timer       *metrics.IntegrationCallTimer
}

// NewMetricsMiddleware creates a new metrics middleware.
func NewMetricsMiddleware(serviceName string) *MetricsMiddleware {
	return &MetricsMiddleware{serviceName: serviceName}
}

// HandleRequest starts timing the request.
func (m *MetricsMiddleware) HandleRequest(req *http.Request) error {
	if reg := metrics.Global(); reg != nil {
		m.timer = reg.Integration().NewCallTimer(m.serviceName, req.URL.Path)
	}
	return nil
}

// HandleResponse records the response metrics.
func (m *MetricsMiddleware) HandleResponse(resp *Response) error {
	if m.timer != nil {
		m.timer.Done(resp.StatusCode)
	}
	return nil
}

// HeaderMiddleware adds fixed headers to requests.
type HeaderMiddleware struct {
	headers map[string]string
}

// NewHeaderMiddleware creates a new header middleware.
func NewHeaderMiddleware(headers map[string]string) *HeaderMiddleware {
	return &HeaderMiddleware{headers: headers}
}

// HandleRequest adds headers to the request.
func (m *HeaderMiddleware) HandleRequest(req *http.Request) error {
	for key, value := range m.headers {
		req.Header.Set(key, value)
	}
	return nil
}

// HandleResponse is a no-op for header middleware.
func (m *HeaderMiddleware) HandleResponse(_ *Response) error {
	return nil
}

// RequestIDMiddleware propagates a request ID to the execution services.
type RequestIDMiddleware struct {
	generator func() string
}

// NewRequestIDMiddleware creates a new request ID middleware.
func NewRequestIDMiddleware(generator func() string) *RequestIDMiddleware {
	return &RequestIDMiddleware{generator: generator}
}

// HandleRequest adds a request ID to the request.
func (m *RequestIDMiddleware) HandleRequest(req *http.Request) error {
	if m.generator != nil {
		req.Header.Set(logging.RequestHeaderRequestID, m.generator())
	}
	return nil
}

// HandleResponse is a no-op for request ID middleware.
func (m *RequestIDMiddleware) HandleResponse(_ *Response) error {
	return nil
}
