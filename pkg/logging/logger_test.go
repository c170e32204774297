package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(t *testing.T, cfg Config) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	return NewWithWriter(cfg, buf), buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("garbage"))
}

func TestJSONOutput(t *testing.T) {
	logger, buf := captureLogger(t, DefaultConfig())

	logger.Info("workflow started", "workflow_id", "wf-1")

	entry := decodeLine(t, buf)
	assert.Equal(t, "workflow started", entry["msg"])
	assert.Equal(t, "wf-1", entry["workflow_id"])
}

func TestLevelFiltering(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "warn"
	logger, buf := captureLogger(t, cfg)

	logger.Info("suppressed")
	assert.Empty(t, buf.String())

	logger.Warn("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestContextValuesAddedToRecords(t *testing.T) {
	logger, buf := captureLogger(t, DefaultConfig())

	ctx := WithRequestID(context.Background(), "req-42")
	logger.InfoContext(ctx, "step executed")

	entry := decodeLine(t, buf)
	assert.Equal(t, "req-42", entry["request_id"])
}

func TestDomainHelpers(t *testing.T) {
	logger, buf := captureLogger(t, DefaultConfig())

	logger.WithComponent("saga_coordinator").WithStep("wf-1", "reserve-inventory").Info("compensating")

	entry := decodeLine(t, buf)
	assert.Equal(t, "saga_coordinator", entry["component"])
	assert.Equal(t, "wf-1", entry["workflow_id"])
	assert.Equal(t, "reserve-inventory", entry["step_id"])
}

func TestRedactionOfSensitiveAttrs(t *testing.T) {
	logger, buf := captureLogger(t, DefaultConfig())

	logger.Info("remote call", "token", "abc123", "operation", "reserve_inventory")

	entry := decodeLine(t, buf)
	assert.Equal(t, RedactedValue, entry["token"])
	assert.Equal(t, "reserve_inventory", entry["operation"])
}

func TestRedactionDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Redact = false
	logger, buf := captureLogger(t, cfg)

	logger.Info("remote call", "token", "abc123")

	entry := decodeLine(t, buf)
	assert.Equal(t, "abc123", entry["token"])
}

func TestRedactorMap(t *testing.T) {
	r := NewRedactor()

	out := r.RedactMap(map[string]any{
		"password": "hunter2",
		"order": map[string]any{
			"card_number": "4111 1111 1111 1111",
			"sku":         "WIDGET-9",
		},
		"note": "contact ops@example.com for escalations",
	})

	assert.Equal(t, RedactedValue, out["password"])
	order := out["order"].(map[string]any)
	assert.Equal(t, RedactedValue, order["card_number"])
	assert.Equal(t, "WIDGET-9", order["sku"])
	assert.Contains(t, out["note"], RedactedValue)
}

func TestRedactorStringPatterns(t *testing.T) {
	r := NewRedactor()

	assert.Equal(t, RedactedValue, r.RedactString("Bearer eyJhbGciOiJIUzI1NiJ9.payload"))
	assert.Contains(t, r.RedactString("auth failed for user@example.com"), RedactedValue)
	assert.Equal(t, "plain text", r.RedactString("plain text"))
}

func TestIsSensitiveField(t *testing.T) {
	assert.True(t, IsSensitiveField("Authorization"))
	assert.True(t, IsSensitiveField("api_key"))
	assert.False(t, IsSensitiveField("workflow_id"))
}

func TestTraceContextRoundTrip(t *testing.T) {
	tc := NewTraceContext()
	tc.UserID = "operator-1"

	ctx := tc.ToContext(context.Background())
	got := FromContext(ctx)

	assert.Equal(t, tc.RequestID, got.RequestID)
	assert.Equal(t, tc.RequestID, got.TraceID)
	assert.Equal(t, "operator-1", got.UserID)
	assert.Equal(t, tc.RequestID, GetRequestID(ctx))
	assert.Equal(t, tc.TraceID, GetTraceID(ctx))
}
