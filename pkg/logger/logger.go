// Package logger builds the slog handlers used across naturegraph: a
// coloured console handler backed by charmbracelet/log and a JSON handler
// for log shippers.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// NewColorHandler returns a leveled, timestamped console handler writing to w.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	level := slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level.Level()
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		ReportCaller:    opts != nil && opts.AddSource,
		Level:           log.Level(level),
	})
}

// NewJSONHandler returns a JSON handler writing to w.
func NewJSONHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	return slog.NewJSONHandler(w, opts)
}

// NewDefaultLogger returns a console logger on stderr.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewHandler picks the handler for format ("json" or anything else for the
// console handler).
func NewHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return NewJSONHandler(w, opts)
	}
	return NewColorHandler(w, opts)
}

// ParseLevel maps debug, info, warn/warning and error onto slog levels.
// Unknown names yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
