package account

import (
	"context"

	"github.com/google/uuid"
)

// Store defines persistence for the account module.
type Store interface {
	// GetDeletionRequest returns the user's most recent deletion request.
	// Returns ErrDeletionRequestNotFound when the user never filed one.
	GetDeletionRequest(ctx context.Context, userID uuid.UUID) (*DeletionRequest, error)

	// CreateDeletionRequest files a new request. Returns
	// ErrDeletionRequestExists when the user already has a pending one.
	CreateDeletionRequest(ctx context.Context, req *DeletionRequest) error

	// CreateFeedback stores a feedback submission.
	CreateFeedback(ctx context.Context, fb *Feedback) error

	// CreateUnsubscribe records an opt-out. Saving the same email twice is
	// a no-op.
	CreateUnsubscribe(ctx context.Context, email string) error

	// IsUnsubscribed reports whether the email has opted out.
	IsUnsubscribed(ctx context.Context, email string) (bool, error)
}
