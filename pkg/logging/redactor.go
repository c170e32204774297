package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// Sensitive field names (case-insensitive). Workflow contexts carry
// order and customer payloads, so the set covers credentials and
// common PII keys alike.
var defaultSensitiveFields = map[string]bool{
	"password":      true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
	"credential":    true,
	"credentials":   true,
	"access_token":  true,
	"refresh_token": true,
	"bearer":        true,
	"card_number":   true,
	"cvv":           true,
	"ssn":           true,
}

var defaultSensitivePatterns = []*regexp.Regexp{
	// password=... / password: ...
	regexp.MustCompile(`(?i)password["']?\s*[:=]\s*["']?[^\s"',}]+`),
	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-_\.]+`),
	// JWT tokens
	regexp.MustCompile(`eyJ[a-zA-Z0-9\-_]+\.eyJ[a-zA-Z0-9\-_]+\.[a-zA-Z0-9\-_]+`),
	// Email addresses
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	// Card numbers with optional spaces or dashes
	regexp.MustCompile(`\b\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`),
}

// Redactor removes sensitive data from log attributes and strings.
type Redactor struct {
	mu       sync.RWMutex
	fields   map[string]bool
	patterns []*regexp.Regexp
}

// NewRedactor creates a Redactor with the default field and pattern sets.
func NewRedactor() *Redactor {
	r := &Redactor{
		fields:   make(map[string]bool, len(defaultSensitiveFields)),
		patterns: append([]*regexp.Regexp(nil), defaultSensitivePatterns...),
	}
	for k := range defaultSensitiveFields {
		r.fields[k] = true
	}
	return r
}

// AddSensitiveField adds a field name to the sensitive set.
func (r *Redactor) AddSensitiveField(field string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[strings.ToLower(field)] = true
}

// AddSensitivePattern compiles and adds a regex pattern.
func (r *Redactor) AddSensitivePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, re)
	return nil
}

// IsSensitiveField reports whether a field name is sensitive.
func (r *Redactor) IsSensitiveField(field string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fields[strings.ToLower(field)]
}

// RedactString replaces sensitive patterns in s.
func (r *Redactor) RedactString(s string) string {
	r.mu.RLock()
	patterns := r.patterns
	r.mu.RUnlock()

	for _, pattern := range patterns {
		s = pattern.ReplaceAllString(s, RedactedValue)
	}
	return s
}

// RedactMap redacts sensitive fields from a map recursively. Workflow
// context maps pass through here before being logged.
func (r *Redactor) RedactMap(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	result := make(map[string]any, len(data))
	for k, v := range data {
		if r.IsSensitiveField(k) {
			result[k] = RedactedValue
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			result[k] = r.RedactMap(val)
		case string:
			result[k] = r.RedactString(val)
		case []any:
			result[k] = r.redactSlice(val)
		default:
			result[k] = v
		}
	}
	return result
}

func (r *Redactor) redactSlice(data []any) []any {
	result := make([]any, len(data))
	for i, v := range data {
		switch val := v.(type) {
		case map[string]any:
			result[i] = r.RedactMap(val)
		case string:
			result[i] = r.RedactString(val)
		case []any:
			result[i] = r.redactSlice(val)
		default:
			result[i] = v
		}
	}
	return result
}

var defaultRedactor = NewRedactor()

// RedactSensitive redacts a map using the default redactor.
func RedactSensitive(data map[string]any) map[string]any {
	return defaultRedactor.RedactMap(data)
}

// IsSensitiveField reports whether a field name is sensitive using the
// default redactor.
func IsSensitiveField(field string) bool {
	return defaultRedactor.IsSensitiveField(field)
}

// RedactingHandler wraps a slog.Handler to redact sensitive attributes.
type RedactingHandler struct {
	slog.Handler
	redactor *Redactor
}

// NewRedactingHandler creates a RedactingHandler. A nil redactor uses
// the package default.
func NewRedactingHandler(handler slog.Handler, redactor *Redactor) *RedactingHandler {
	if redactor == nil {
		redactor = defaultRedactor
	}
	return &RedactingHandler{Handler: handler, redactor: redactor}
}

// Handle redacts record attributes before passing them on.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.Handler.Handle(ctx, clean)
}

func (h *RedactingHandler) redactAttr(a slog.Attr) slog.Attr {
	if h.redactor.IsSensitiveField(a.Key) {
		return slog.String(a.Key, RedactedValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redactor.RedactString(a.Value.String()))
	case slog.KindGroup:
		attrs := a.Value.Group()
		clean := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			clean[i] = h.redactAttr(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	default:
		return a
	}
}

// WithAttrs returns a new RedactingHandler with the given attributes.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.redactAttr(a)
	}
	return &RedactingHandler{Handler: h.Handler.WithAttrs(clean), redactor: h.redactor}
}

// WithGroup returns a new RedactingHandler with the given group.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{Handler: h.Handler.WithGroup(name), redactor: h.redactor}
}
