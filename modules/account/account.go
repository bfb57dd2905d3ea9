// Package account exposes the user-facing account endpoints: deletion
// requests, feedback submission, and email unsubscribe.
package account

import (
	"time"

	"github.com/google/uuid"
)

// DeletionRequestStatus is the admin queue state of a deletion request.
type DeletionRequestStatus string

const (
	DeletionPending   DeletionRequestStatus = "pending"
	DeletionApproved  DeletionRequestStatus = "approved"
	DeletionRejected  DeletionRequestStatus = "rejected"
	DeletionCompleted DeletionRequestStatus = "completed"
)

// ValidDeletionStatus reports whether s is one of the queue states an admin
// may set.
func ValidDeletionStatus(s DeletionRequestStatus) bool {
	switch s {
	case DeletionPending, DeletionApproved, DeletionRejected, DeletionCompleted:
		return true
	}
	return false
}

// DeletionRequest is a user's request to have their account removed. One
// open request per user; processing is manual through the admin queue.
type DeletionRequest struct {
	ID          uuid.UUID             `json:"id"`
	UserID      uuid.UUID             `json:"user_id"`
	Reason      string                `json:"reason,omitempty"`
	Status      DeletionRequestStatus `json:"status"`
	ProcessedBy *uuid.UUID            `json:"processed_by,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// Feedback is a free-form product feedback submission. Submitting one earns
// the feedback bonus.
type Feedback struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Unsubscribe records an email address opting out of campaign email.
type Unsubscribe struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
