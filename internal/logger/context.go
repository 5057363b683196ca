package logger

import (
	"context"
	"log/slog"
)

// contextKey is private so no other package can overwrite the logger.
type contextKey struct{}

// Into returns a copy of ctx carrying l. A nil l leaves ctx unchanged.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, l)
}

// With returns a copy of ctx whose logger adds args to every record, as
// slog.Logger.With does. Command handlers use it to tag records with the
// command and the logged-in user.
func With(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	return Into(ctx, From(ctx).With(args...))
}

// From returns the logger carried by ctx, falling back to Default.
func From(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return Default()
}
