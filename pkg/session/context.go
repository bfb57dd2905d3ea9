package session

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// WithSession stores the session in the context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext retrieves the session from the context.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok
}

// UserIDFromContext returns the authenticated user's ID, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	s, ok := FromContext(ctx)
	if !ok || !s.IsAuthenticated() {
		return uuid.Nil, false
	}
	return *s.UserID, true
}
