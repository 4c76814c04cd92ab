package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(ObservabilityConfig{LogLevel: "warn", LogFormat: "json"}, &buf)
		logger.Info("dropped")
		logger.Warn("kept", "k", "v")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
		assert.Equal(t, "kept", entry["msg"])
		assert.Equal(t, "v", entry["k"])
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(ObservabilityConfig{LogLevel: "debug", LogFormat: "text"}, &buf)
		logger.Debug("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})
}
