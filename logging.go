package main

import (
	"io"
	"log"
	"log/slog"
	"strings"
)

// setupLogger installs a text slog handler at the given level as the process
// default. The standard log package is routed through it, so progress lines
// written with log.Printf are emitted at info level and disappear at warn.
func setupLogger(w io.Writer, levelStr string) {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	log.SetFlags(0)
}
