// Package reqctx carries per-request identifiers through a context.
package reqctx

import (
	"context"

	"github.com/google/uuid"
)

type requestIDKey struct{}
type sessionIDKey struct{}

// NewID generates a random UUID v4.
func NewID() string {
	return uuid.NewString()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns "" if absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithSessionID attaches the browser session id. Never the bearer token.
func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sid)
}

func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey{}).(string)
	return sid
}
