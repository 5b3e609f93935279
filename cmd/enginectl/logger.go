package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

// newLogger builds a slog.Logger the way internal/app's deleted newLogger
// did (level/format switch), enriched with isatty detection for "auto"
// format: a terminal gets text, anything redirected or piped gets JSON.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	resolvedFormat := formatStr
	if resolvedFormat == "auto" || resolvedFormat == "" {
		resolvedFormat = "text"
		if f, ok := outW.(*os.File); ok && !isatty.IsTerminal(f.Fd()) {
			resolvedFormat = "json"
		}
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if resolvedFormat == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}
	return slog.New(handler)
}
