package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// TeeHandler duplicates slog records to several handlers.
type TeeHandler []slog.Handler

// NewTeeHandler combines handlers, skipping nil entries.
func NewTeeHandler(handlers ...slog.Handler) TeeHandler {
	out := make(TeeHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// Enabled reports whether any handler accepts level.
func (t TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes r to every handler that accepts its level.
func (t TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

// WithAttrs applies attrs to every handler.
func (t TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(TeeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

// WithGroup applies the group to every handler.
func (t TeeHandler) WithGroup(name string) slog.Handler {
	out := make(TeeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

// OpenTextLog opens path for appending and returns a text handler writing
// to it. The caller closes the file.
func OpenTextLog(path string, level slog.Leveler) (slog.Handler, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}), f, nil
}

// Compile-time interface satisfaction check.
var _ slog.Handler = TeeHandler(nil)
