package ctxlogger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// ContextHandler wraps a slog.Handler and prepends any attrs stored in the
// context with AppendCtx to every record.
type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}

	return h.Handler.Handle(ctx, r)
}

// AppendCtx returns a context carrying the given attr in addition to any
// attrs already present.
func AppendCtx(parent context.Context, attr slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}

	if attrs, ok := parent.Value(ctxKey{}).([]slog.Attr); ok {
		next := make([]slog.Attr, len(attrs), len(attrs)+1)
		copy(next, attrs)
		return context.WithValue(parent, ctxKey{}, append(next, attr))
	}

	return context.WithValue(parent, ctxKey{}, []slog.Attr{attr})
}
