package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup builds the process-wide logger from a CARTWISE_LOG_LEVEL-style
// string ("debug", "info", "warn", "error"; case and whitespace ignored,
// anything else means info), installs it as the slog default, and returns
// it. Components derive their own loggers from it via With.
func Setup(level string) *slog.Logger {
	lvl := parseLevel(level)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
