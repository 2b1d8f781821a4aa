package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLogger(t *testing.T) {
	t.Run("writes JSON", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		logger.Info("graph_built", slog.Int("nodes", 42))

		out := buf.String()
		assert.Contains(t, out, `"level":"INFO"`)
		assert.Contains(t, out, `"msg":"graph_built"`)
		assert.Contains(t, out, `"nodes":42`)
	})

	t.Run("respects level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelWarn)

		logger.Info("hidden")
		logger.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, "TEXT", slog.LevelInfo).Info("hello", slog.String("k", "v"))
		assert.Contains(t, buf.String(), "msg=hello k=v")
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLogHelpers(t *testing.T) {
	t.Run("LogError", func(t *testing.T) {
		var buf bytes.Buffer
		LogError(NewStructuredLogger(&buf, slog.LevelInfo), "load failed", assert.AnError,
			slog.String("source", "yaml:network.yaml"))

		out := buf.String()
		assert.Contains(t, out, `"level":"ERROR"`)
		assert.Contains(t, out, `"msg":"load failed"`)
		assert.Contains(t, out, `"error":"assert.AnError general error for testing"`)
		assert.Contains(t, out, `"source":"yaml:network.yaml"`)
	})

	t.Run("LogOperation drops zero durations", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		LogOperation(logger, "plan_computed", slog.Duration("duration", 0), slog.Int("steps", 3))
		assert.NotContains(t, buf.String(), "duration")
		assert.Contains(t, buf.String(), `"steps":3`)

		buf.Reset()
		LogOperation(logger, "plan_computed", slog.Duration("duration", time.Second))
		assert.Contains(t, buf.String(), "duration")
	})

	t.Run("nil logger is ignored", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogError(nil, "x", assert.AnError)
			LogOperation(nil, "x")
			LogHTTPRequest(nil, "GET", "/", 200, 1)
		})
	})

	t.Run("LogHTTPRequest", func(t *testing.T) {
		var buf bytes.Buffer
		LogHTTPRequest(NewStructuredLogger(&buf, slog.LevelInfo), "GET", "/api/plan", 200, 1.5)

		out := buf.String()
		assert.Contains(t, out, `"msg":"http_request"`)
		assert.Contains(t, out, `"path":"/api/plan"`)
		assert.Contains(t, out, `"status":200`)
	})
}

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("boom") }

func TestSafeCloseWithLogging(t *testing.T) {
	var buf bytes.Buffer
	SafeCloseWithLogging(failingCloser{}, NewStructuredLogger(&buf, slog.LevelInfo), "close_db")

	assert.Contains(t, buf.String(), `"error":"boom"`)
	assert.Contains(t, buf.String(), `"operation":"close_db"`)
	assert.NotPanics(t, func() { SafeCloseWithLogging(nil, nil, "noop") })
}

func TestContextLogger(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	logger := Discard()
	assert.Same(t, logger, FromContext(WithLogger(context.Background(), logger)))
	assert.NotNil(t, OrDiscard(nil))
	assert.Same(t, logger, OrDiscard(logger))
}
