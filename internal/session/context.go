package session

import (
	"context"
)

type contextKey string

const sessionContextKey contextKey = "pulseboard_session"

func ContextWithSession(ctx context.Context, meta *Metadata) context.Context {
	return context.WithValue(ctx, sessionContextKey, meta)
}

func FromContext(ctx context.Context) (*Metadata, bool) {
	meta, ok := ctx.Value(sessionContextKey).(*Metadata)
	return meta, ok
}
