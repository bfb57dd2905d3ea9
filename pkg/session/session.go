package session

import (
	"time"

	"github.com/google/uuid"
)

// Session represents an authenticated user session.
type Session struct {
	ID             uuid.UUID  `json:"id"`
	Token          string     `json:"token"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// New creates a new session for the given user with the given lifetime.
func New(token string, userID *uuid.UUID, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:             uuid.New(),
		Token:          token,
		UserID:         userID,
		ExpiresAt:      now.Add(ttl),
		LastActivityAt: now,
		CreatedAt:      now,
	}
}

// IsAuthenticated returns true if the session has a user ID.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.UserID != nil
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return s != nil && time.Now().After(s.ExpiresAt)
}
