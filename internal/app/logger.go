package app

import (
	"io"
	"log/slog"
)

// newLogger builds the orchestrator's logger from the configured level and
// format. Each App carries its own instance; the process-wide slog default
// is never touched, so concurrent Apps in tests keep isolated output.
func newLogger(level, format string, outW io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if format == "text" {
		return slog.New(slog.NewTextHandler(outW, opts))
	}
	return slog.New(slog.NewJSONHandler(outW, opts))
}

// parseLevel maps a level name to its slog value; unknown names fall back
// to info, matching the CLI default.
func parseLevel(name string) slog.Level {
	switch name {
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
