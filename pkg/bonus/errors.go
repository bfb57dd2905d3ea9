package bonus

import "errors"

var (
	ErrGrantNotFound   = errors.New("bonus grant not found")
	ErrInvalidType     = errors.New("invalid bonus type")
	ErrInvalidDuration = errors.New("invalid bonus duration")
	ErrInvalidValue    = errors.New("bonus value must be positive")
	ErrMissingUserID   = errors.New("target user ID is required")
)
