package observability

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
)

// CountingHandler wraps a slog.Handler and stamps every record with a
// monotonically increasing "seq" attribute, so log lines from a single
// process can be correlated and ordered across components.
type CountingHandler struct {
	inner slog.Handler
	seq   *atomic.Uint64
}

func NewCountingHandler(inner slog.Handler) *CountingHandler {
	return &CountingHandler{inner: inner, seq: &atomic.Uint64{}}
}

func (h *CountingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CountingHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(slog.Uint64("seq", h.seq.Add(1)))
	return h.inner.Handle(ctx, record)
}

func (h *CountingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CountingHandler{inner: h.inner.WithAttrs(attrs), seq: h.seq}
}

func (h *CountingHandler) WithGroup(name string) slog.Handler {
	return &CountingHandler{inner: h.inner.WithGroup(name), seq: h.seq}
}

// NewLogger builds the process logger: text output with sequence counting.
// Components receive child loggers via With so there is no package-level
// logging state anywhere in the service.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	base := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewCountingHandler(base))
}
