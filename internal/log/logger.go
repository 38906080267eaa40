// Package log sets up the process-wide structured logger.
package log

import (
	"log/slog"
	"os"
)

// Standard component names used in log fields.
const (
	ComponentAPI    = "api"
	ComponentWorker = "worker"
)

// Setup installs a text handler at the given level as the default logger
// and returns it.
func Setup(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// ForComponent returns a logger tagged with the component name.
func ForComponent(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
