package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps a LOG_LEVEL value onto a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", level)
}

// NewLogger builds the process logger from observability settings
func NewLogger(obs ObservabilityConfig, w io.Writer) *slog.Logger {
	level, _ := ParseLevel(obs.LogLevel)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if obs.LogFormat == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}
