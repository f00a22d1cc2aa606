package app

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the app-wide logger type (slog).
type Logger = *slog.Logger

var logLevels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

func parseLogLevel(level string) slog.Level {
	if lvl, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// NewLogger creates the process logger and installs it as slog's default.
//
// format selects the handler: "json" (default) for the agent, "pretty" for
// terminals (colored unless NO_COLOR is set), "text" for slog's logfmt.
func NewLogger(level, format string) *slog.Logger {
	log := slog.New(newHandler(os.Stderr, level, format))
	slog.SetDefault(log)
	return log
}

func newHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(level),
		AddSource: parseLogLevel(level) <= slog.LevelDebug,
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "pretty":
		_, noColor := os.LookupEnv("NO_COLOR")
		return newPrettyHandler(w, opts, !noColor)
	case "text":
		return slog.NewTextHandler(w, opts)
	default:
		return slog.NewJSONHandler(w, opts)
	}
}
