package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the interface for subscription persistence.
// Each user has exactly one subscription, so UserID serves as the primary key.
type Store interface {
	// Get retrieves a subscription by user ID.
	// Returns ErrSubscriptionNotFound if no subscription exists.
	Get(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// Save creates or updates a subscription keyed by UserID.
	Save(ctx context.Context, subscription *Subscription) error

	// ListDueTrials returns subscriptions still in trial status whose trial
	// window ended before the given time. Already converted or expired rows
	// are excluded by the status filter, which is what makes the sweep
	// idempotent.
	ListDueTrials(ctx context.Context, now time.Time) ([]*Subscription, error)
}
