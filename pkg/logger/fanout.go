package logger

import (
	"context"
	"log/slog"
)

// fanoutHandler delivers each record to the primary handler and, when the
// secondary is enabled for the record level, to the secondary as well.
// Primary errors win; secondary failures are dropped.
type fanoutHandler struct {
	primary   slog.Handler
	secondary slog.Handler
}

func (h fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.secondary.Enabled(ctx, level)
}

func (h fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	if h.primary.Enabled(ctx, record.Level) {
		err = h.primary.Handle(ctx, record.Clone())
	}
	if h.secondary.Enabled(ctx, record.Level) {
		_ = h.secondary.Handle(ctx, record.Clone())
	}
	return err
}

func (h fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return fanoutHandler{primary: h.primary.WithAttrs(attrs), secondary: h.secondary.WithAttrs(attrs)}
}

func (h fanoutHandler) WithGroup(name string) slog.Handler {
	return fanoutHandler{primary: h.primary.WithGroup(name), secondary: h.secondary.WithGroup(name)}
}
