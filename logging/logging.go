// Package logging wires log/slog for the CLI and the engine.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Setup installs the process logger described by a run config: level is
// one of ParseLevel's names, format is "text" or "json". Text output omits
// timestamps so that CLI stderr stays diffable. The installed logger is
// also slog's default, so New picks it up.
func Setup(w io.Writer, level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch format {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "", "text":
		opts.ReplaceAttr = dropTime
		h = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("logging: unknown format %q", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

// New returns the default logger tagged with a component attribute.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

// ParseLevel maps debug, info, warn and error (any case) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
}

// Discard returns a logger that drops everything, for tests and library
// callers that do not want engine chatter.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
