package bonus

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the interface for bonus grant persistence.
type Store interface {
	// Create persists a new grant. The implementation assigns timestamps;
	// ID must be set by the caller.
	Create(ctx context.Context, grant *Grant) error

	// Update saves changes to an existing grant.
	// Returns ErrGrantNotFound for unknown IDs.
	Update(ctx context.Context, grant *Grant) error

	// ListActiveByUser returns all active grants for a user.
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*Grant, error)

	// GetActiveByUserAndReason returns the user's active grant with the
	// given reason, used by dedupe-by-reason award paths.
	// Returns ErrGrantNotFound when none exists.
	GetActiveByUserAndReason(ctx context.Context, userID uuid.UUID, reason string) (*Grant, error)

	// ConsumeSearch decrements one search from the user's oldest active
	// fixed_searches grant with value remaining, deactivating a once grant
	// whose value reaches zero. The decrement and the value guard evaluate
	// atomically. Returns ErrGrantNotFound when no grant has value left.
	ConsumeSearch(ctx context.Context, userID uuid.UUID) (*Grant, error)

	// ListActiveMonthly returns every active grant with monthly duration,
	// across all users, for the period rollover job.
	ListActiveMonthly(ctx context.Context) ([]*Grant, error)
}
