package config

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the process logger on stdout. Production emits JSON tagged with the
// service name; other environments get the human-readable text handler. LOG_LEVEL accepts
// any slog level name (debug, info, warn, error) and defaults to info.
func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env, os.Getenv("LOG_LEVEL"))
}

func newLogger(w io.Writer, env, levelName string) *slog.Logger {
	var level slog.Level
	if levelName != "" && level.UnmarshalText([]byte(levelName)) != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if env == "production" {
		return slog.New(slog.NewJSONHandler(w, opts)).With("service", "event-portal")
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
