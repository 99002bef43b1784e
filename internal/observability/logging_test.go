package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler_AddsRequestValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "production")

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, TraceIDKey, "trace-1")
	ctx = WithUserID(ctx, "user-1")
	logger.InfoContext(ctx, "hello", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "req-1", rec["request_id"])
	assert.Equal(t, "trace-1", rec["trace_id"])
	assert.Equal(t, "user-1", rec["user_id"])
	assert.Equal(t, "v", rec["k"])
}

func TestContextHandler_WithAttrsKeepsContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "prod").With("component", "test")

	logger.InfoContext(context.WithValue(context.Background(), RequestIDKey, "r"), "x")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "test", rec["component"])
	assert.Equal(t, "r", rec["request_id"])
}

func TestNewLogger_TextOutsideProduction(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "development").Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(assert.AnError))
}

func TestHTTPMetrics_Singleton(t *testing.T) {
	assert.Same(t, HTTPMetrics(), HTTPMetrics())
}
