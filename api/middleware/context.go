package middleware

import (
	"context"

	"github.com/thaitruongdao01-afk/saintpaul/internal/session"
)

type contextKey string

const (
	ctxSessionID contextKey = "session_id"
	ctxSession   contextKey = "session"
)

func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

// SessionFromContext returns the store seeded by SessionContext.
func SessionFromContext(ctx context.Context) *session.Store {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxSession).(*session.Store); ok {
		return v
	}
	return nil
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *session.User {
	store := SessionFromContext(ctx)
	if store == nil {
		return nil
	}
	return store.CurrentUser()
}

// WithSession injects a session store and its id into the context.
func WithSession(ctx context.Context, store *session.Store) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if store == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, ctxSessionID, store.ID())
	return context.WithValue(ctx, ctxSession, store)
}
