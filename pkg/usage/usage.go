// Package usage tracks per-user monthly search consumption against plan
// quotas. Consumption is a single conditional write at the storage layer so
// concurrent requests cannot push a user past their limit.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MonthlyUsage is a user's search ledger for one billing period.
type MonthlyUsage struct {
	UserID        uuid.UUID
	SearchesUsed  int
	SearchesLimit int // subscription.UnlimitedSearches (-1) means no quota
	PeriodStart   time.Time
	PeriodEnd     time.Time
	UpdatedAt     time.Time
}

// Remaining returns how many searches are left in the period, not counting
// bonus extras. Unlimited plans report -1.
func (u MonthlyUsage) Remaining() int {
	if u.SearchesLimit < 0 {
		return -1
	}
	if u.SearchesUsed >= u.SearchesLimit {
		return 0
	}
	return u.SearchesLimit - u.SearchesUsed
}

// ConsumeParams carries the quota context for a single consume call. Limit is
// the plan quota, used when the ledger row does not exist yet. The ledger
// funds the plan quota only; bonus searches are consumed from their grants.
type ConsumeParams struct {
	Limit       int
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// Store defines the interface for usage ledger persistence.
type Store interface {
	// Get returns the user's ledger row. Returns ErrUsageNotFound when the
	// user has never consumed in any period; callers treat that as zero
	// used.
	Get(ctx context.Context, userID uuid.UUID) (*MonthlyUsage, error)

	// Consume atomically increments the user's counter by one, but only
	// while used < limit (or the limit is unlimited). Returns
	// ErrQuotaExhausted when the guard fails. The increment and the guard
	// evaluate in one statement so concurrent calls cannot both pass a
	// nearly-exhausted quota.
	Consume(ctx context.Context, userID uuid.UUID, params ConsumeParams) (*MonthlyUsage, error)

	// Reset starts a fresh period with zero used and the given limit,
	// creating the row if needed.
	Reset(ctx context.Context, userID uuid.UUID, limit int, periodStart, periodEnd time.Time) error
}
