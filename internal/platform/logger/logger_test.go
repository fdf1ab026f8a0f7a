package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		want  slog.Level
		known bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{" warn ", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}

	for _, tc := range tests {
		got, ok := ParseLevel(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.known, ok, tc.in)
	}
}

func TestSetup(t *testing.T) {
	t.Parallel()

	buf := &TestLogBuffer{}
	log, err := Setup(LoggerConfig{Level: "warn", Output: buf})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown", "key", "value")

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["msg"])
	assert.Equal(t, "value", entries[0]["key"])
}

func TestSetupInvalidLevelWarns(t *testing.T) {
	t.Parallel()

	buf := &TestLogBuffer{}
	_, err := Setup(LoggerConfig{Level: "loud", Output: buf})
	require.NoError(t, err)

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "loud", entries[0]["configured_level"])
}

func TestFromContextOrDefault(t *testing.T) {
	t.Parallel()

	fallback, fallbackBuf := NewCaptureLogger()
	scoped, scopedBuf := NewCaptureLogger()

	FromContextOrDefault(context.Background(), fallback).Info("to fallback")
	assert.Contains(t, fallbackBuf.String(), "to fallback")

	ctx := WithLogger(context.Background(), scoped)
	FromContextOrDefault(ctx, fallback).Info("to scoped")
	assert.Contains(t, scopedBuf.String(), "to scoped")
	assert.NotContains(t, fallbackBuf.String(), "to scoped")
}

func TestRequestIDIsAttached(t *testing.T) {
	t.Parallel()

	log, buf := NewCaptureLogger()
	ctx := WithRequestID(WithLogger(context.Background(), log), "req-42")

	assert.Equal(t, "req-42", RequestID(ctx))
	FromContext(ctx).Info("hello")

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0]["request_id"])
}
