// Package logutil wires the core's structured logging on top of log/slog.
//
// A package-level default logger hands out per-component child loggers
// via With; the level is env-var driven (SYNCSPIRIT_LOG_LEVEL) rather
// than a config-file knob, since configuration file parsing happens
// above this package.
package logutil

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu      sync.Mutex
	handler slog.Handler
	base    *slog.Logger
)

func init() {
	Reset()
}

// Reset rebuilds the default logger from the current environment. Tests
// call this after changing SYNCSPIRIT_LOG_LEVEL / SYNCSPIRIT_LOG_FORMAT.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	level := parseLevel(os.Getenv("SYNCSPIRIT_LOG_LEVEL"))
	opts := &slog.HandlerOptions{Level: level}

	var out = os.Stderr
	if strings.EqualFold(os.Getenv("SYNCSPIRIT_LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	base = slog.New(handler)
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// For returns a logger scoped to a component name, e.g. logutil.For("scanner").
func For(component string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return base.With(slog.String("component", component))
}

// Error is a convenience slog.Attr for wrapping an error under the "error" key.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}
