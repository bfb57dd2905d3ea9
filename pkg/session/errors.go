package session

import "errors"

var (
	ErrNoSessionToken  = errors.New("no session token in request")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidSession  = errors.New("invalid session")
)
