// Package logging builds the slog loggers used by the ztick commands.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a logger writing to stderr.
//
// format is "text" (human-readable) or "json" (structured). stdout stays reserved for program
// output.
func NewLogger(level slog.Leveler, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to w. Pass a *slog.LevelVar as level to change the
// level at run time (for example from the ops log-level endpoint).
func NewLoggerWithWriter(level slog.Leveler, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// LookupLevel converts a level name to slog.Level. It accepts debug, info, warn (or warning) and
// error (or err), case-insensitive and ignoring surrounding spaces.
func LookupLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "err":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ParseLevel is LookupLevel returning slog.LevelInfo for unrecognized values.
func ParseLevel(s string) slog.Level {
	l, _ := LookupLevel(s)
	return l
}

// LevelName buckets an arbitrary slog.Level into debug, info, warn or error.
func LevelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "debug"
	case l < slog.LevelWarn:
		return "info"
	case l < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}
