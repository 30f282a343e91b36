// Package requestid propagates a per-message request ID through context and
// log lines.
package requestid

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithRequestID returns a context with the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the request ID from context, or generates a new one.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// Ensure returns ctx unchanged when it already carries an ID, otherwise a
// context carrying a fresh one. The ID in effect is returned too.
func Ensure(ctx context.Context) (context.Context, string) {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return ctx, id
	}
	return New(ctx)
}

// New generates a new request ID and returns the enriched context and ID.
func New(ctx context.Context) (context.Context, string) {
	id := uuid.New().String()
	return WithRequestID(ctx, id), id
}

// Logger returns l with the context's request ID attached, if there is one.
func Logger(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	id, ok := ctx.Value(ctxKey{}).(string)
	if !ok || id == "" {
		return l
	}
	return l.With().Str("request_id", id).Logger()
}
