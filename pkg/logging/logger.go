package logging

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"
	// TraceIDKey is the context key for trace IDs.
	TraceIDKey contextKey = "trace_id"
	// UserIDKey is the context key for authenticated user IDs.
	UserIDKey contextKey = "user_id"
	// SpanIDKey is the context key for span IDs.
	SpanIDKey contextKey = "span_id"
)

// Logger wraps slog.Logger with orchestration-specific helpers.
type Logger struct {
	*slog.Logger
	config Config
}

// New creates a new Logger with the given configuration.
func New(config Config) *Logger {
	return NewWithWriter(config, config.GetOutput())
}

// NewWithWriter creates a new Logger writing to w.
func NewWithWriter(config Config, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(config.Level),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	if config.Redact {
		handler = NewRedactingHandler(handler, nil)
	}

	handler = &ContextHandler{
		Handler:    handler,
		sampleRate: config.SampleRate,
	}

	return &Logger{
		Logger: slog.New(handler),
		config: config,
	}
}

// SetDefault sets this logger as the default slog logger.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), config: l.config}
}

// WithComponent returns a new Logger tagged with a component name.
func (l *Logger) WithComponent(component string) *Logger {
	return l.With("component", component)
}

// WithWorkflow returns a new Logger with workflow context.
func (l *Logger) WithWorkflow(workflowID string) *Logger {
	return l.With("workflow_id", workflowID)
}

// WithStep returns a new Logger with workflow step context.
func (l *Logger) WithStep(workflowID, stepID string) *Logger {
	return l.With(
		slog.String("workflow_id", workflowID),
		slog.String("step_id", stepID),
	)
}

// WithService returns a new Logger with remote service context.
func (l *Logger) WithService(serviceName string) *Logger {
	return l.With("service", serviceName)
}

// ContextHandler is a slog.Handler that extracts trace values from the
// request context and applies debug sampling.
type ContextHandler struct {
	slog.Handler
	sampleRate float64
}

// Enabled reports whether the handler handles records at the given level.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level == slog.LevelDebug && h.sampleRate < 1.0 {
		if rand.Float64() > h.sampleRate {
			return false
		}
	}
	return h.Handler.Enabled(ctx, level)
}

// Handle adds context values to the log record and passes it on.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range []contextKey{RequestIDKey, TraceIDKey, UserIDKey, SpanIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			r.AddAttrs(slog.String(string(key), v))
		}
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler with the given attributes.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs), sampleRate: h.sampleRate}
}

// WithGroup returns a new ContextHandler with the given group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name), sampleRate: h.sampleRate}
}

// Default returns a logger built from environment configuration.
func Default() *Logger {
	return New(ConfigFromEnv())
}

// ComponentLogger creates a component-tagged logger from the default slog logger.
func ComponentLogger(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
