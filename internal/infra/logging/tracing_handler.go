package logging

import (
	"context"
	"log/slog"

	context_ "github.com/mkrupp/homecase-lending/internal/infra/context"
)

// TracingHandler wraps another slog.Handler and attaches request scoped data
// from the context: the trace id set by the HTTP transport and the caller
// resolved from the session token.
type TracingHandler struct {
	h slog.Handler
}

var _ slog.Handler = (*TracingHandler)(nil)

// NewTracingHandler creates a new TracingHandler wrapping the given handler.
func NewTracingHandler(h slog.Handler) *TracingHandler {
	return &TracingHandler{h: h}
}

// Handle implements slog.Handler.
func (h *TracingHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		r.AddAttrs(slog.Group("trace", slog.String("id", traceID)))
	}

	// anonymous requests carry no caller group
	if principal, ok := context_.PrincipalFromContext(ctx); ok {
		r.AddAttrs(slog.Group("caller",
			slog.Int64("account", int64(principal.AccountID)),
			slog.String("role", string(principal.Role)),
		))
	}

	//nolint:wrapcheck
	return h.h.Handle(ctx, r)
}

func (h *TracingHandler) WithAttrs(attrs []slog.Attr) Handler {
	return NewTracingHandler(h.h.WithAttrs(attrs))
}

func (h *TracingHandler) WithGroup(name string) Handler {
	return NewTracingHandler(h.h.WithGroup(name))
}

func (h *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}
