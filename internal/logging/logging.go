// Package logging wires up the process-wide slog logger.
package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Setup builds the root logger and installs it as slog's default.
// format is "json", "pretty", or "auto" (pretty on a terminal, JSON otherwise).
func Setup(format string, level slog.Level) *slog.Logger {
	var handler slog.Handler
	switch format {
	case "pretty":
		handler = prettyHandler(level)
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		if isatty.IsTerminal(os.Stdout.Fd()) {
			handler = prettyHandler(level)
		} else {
			handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func prettyHandler(level slog.Level) slog.Handler {
	return tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})
}
