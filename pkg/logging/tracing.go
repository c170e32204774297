package logging

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext holds the tracing identifiers carried through a request.
type TraceContext struct {
	RequestID string
	TraceID   string
	SpanID    string
	UserID    string
}

// NewTraceContext creates a TraceContext with generated IDs. The trace ID
// defaults to the request ID so a single request forms its own trace.
func NewTraceContext() TraceContext {
	requestID := uuid.New().String()
	return TraceContext{
		RequestID: requestID,
		TraceID:   requestID,
		SpanID:    uuid.New().String(),
	}
}

// ToContext adds the trace context values to ctx.
func (tc TraceContext) ToContext(ctx context.Context) context.Context {
	if tc.RequestID != "" {
		ctx = context.WithValue(ctx, RequestIDKey, tc.RequestID)
	}
	if tc.TraceID != "" {
		ctx = context.WithValue(ctx, TraceIDKey, tc.TraceID)
	}
	if tc.SpanID != "" {
		ctx = context.WithValue(ctx, SpanIDKey, tc.SpanID)
	}
	if tc.UserID != "" {
		ctx = context.WithValue(ctx, UserIDKey, tc.UserID)
	}
	return ctx
}

// FromContext extracts a TraceContext from ctx.
func FromContext(ctx context.Context) TraceContext {
	tc := TraceContext{}
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		tc.RequestID = v
	}
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		tc.TraceID = v
	}
	if v, ok := ctx.Value(SpanIDKey).(string); ok {
		tc.SpanID = v
	}
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		tc.UserID = v
	}
	return tc
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithUserID adds an authenticated user ID to the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}
