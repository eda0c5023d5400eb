package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler copies every record to the console handler and, for a run with
// a log file, to the file handler. Each target filters by its own level.
type teeHandler struct {
	targets []slog.Handler
}

func tee(targets ...slog.Handler) slog.Handler {
	live := targets[:0:0]
	for _, h := range targets {
		if h != nil {
			live = append(live, h)
		}
	}
	if len(live) == 1 {
		return live[0]
	}
	return &teeHandler{targets: live}
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.targets {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes to every target that accepts the level. A failed write
// does not stop the remaining targets; the failures are joined.
func (t *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t.targets {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return t
	}
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t *teeHandler) each(f func(slog.Handler) slog.Handler) *teeHandler {
	out := &teeHandler{targets: make([]slog.Handler, len(t.targets))}
	for i, h := range t.targets {
		out.targets[i] = f(h)
	}
	return out
}
