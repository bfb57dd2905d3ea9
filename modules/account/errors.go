package account

import "errors"

var (
	ErrDeletionRequestNotFound = errors.New("deletion request not found")
	ErrDeletionRequestExists   = errors.New("deletion request already open")
	ErrInvalidDeletionStatus   = errors.New("invalid deletion request status")
	ErrEmptyFeedback           = errors.New("feedback message is empty")
)
