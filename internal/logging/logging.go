// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func handlerOptions(level string) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}
}

// consoleHandler writes text to terminals and JSON to pipes and files, so
// a run redirected into a log collector stays machine readable.
func consoleHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.NewTextHandler(w, opts)
	}
	if _, ok := w.(*os.File); ok {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Setup builds a logger writing to console at level and, when file is
// non-nil, a full debug-level text log to file. The result is installed as
// the slog default.
func Setup(console io.Writer, file io.Writer, level string) *slog.Logger {
	var consoleOut, fileOut slog.Handler
	if console != nil {
		consoleOut = consoleHandler(console, handlerOptions(level))
	}
	if file != nil {
		fileOut = slog.NewTextHandler(file, handlerOptions("debug"))
	}

	logger := slog.New(tee(consoleOut, fileOut))
	slog.SetDefault(logger)
	logger.Debug("logging initialized", "level", level)
	return logger
}
