// Package logging constructs the application's slog logger.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/neetlogiq/collegematch/internal/config"
)

// New builds a logger from the log section of the configuration. Console
// format is the default; json is used when batches run under a scheduler.
func New(cfg config.Log) *slog.Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
