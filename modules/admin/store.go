package admin

import (
	"context"

	"github.com/google/uuid"

	"github.com/appideasfinder/backend/modules/account"
	"github.com/appideasfinder/backend/pkg/rbac"
)

// Store defines persistence for the admin module.
type Store interface {
	// GetUserRole returns the user's staff role, or ErrUserNotFound. A nil
	// role means the user exists but has no staff access.
	GetUserRole(ctx context.Context, userID uuid.UUID) (*rbac.Role, error)

	// ListUsers returns users newest first, bounded by limit/offset.
	ListUsers(ctx context.Context, limit, offset int) ([]*User, error)

	// Coupons.
	ListCoupons(ctx context.Context) ([]*Coupon, error)
	CreateCoupon(ctx context.Context, coupon *Coupon) error
	DeleteCoupon(ctx context.Context, id uuid.UUID) error

	// Waitlist.
	ListWaitlist(ctx context.Context) ([]*WaitlistEntry, error)

	// Deletion-request queue.
	ListDeletionRequests(ctx context.Context, status account.DeletionRequestStatus) ([]*account.DeletionRequest, error)
	UpdateDeletionRequestStatus(ctx context.Context, id uuid.UUID, status account.DeletionRequestStatus, processedBy uuid.UUID) (*account.DeletionRequest, error)

	// GetStats aggregates dashboard counters.
	GetStats(ctx context.Context) (*Stats, error)
}
