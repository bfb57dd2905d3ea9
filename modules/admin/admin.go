// Package admin exposes the staff-only management surface: bonus awards,
// coupon CRUD, the deletion-request queue, waitlist and user analytics, and
// email campaign management with open/click tracking.
package admin

import (
	"time"

	"github.com/google/uuid"

	"github.com/appideasfinder/backend/pkg/rbac"
)

// User is the minimal staff view of an account.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Role      *rbac.Role `json:"role,omitempty"` // nil for regular users
	CreatedAt time.Time  `json:"created_at"`
}

// Coupon is a discount code managed by staff.
type Coupon struct {
	ID              uuid.UUID  `json:"id"`
	Code            string     `json:"code"`
	DiscountPercent int        `json:"discount_percent"`
	Active          bool       `json:"active"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// WaitlistEntry is a pre-launch signup.
type WaitlistEntry struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	InvitedAt *time.Time `json:"invited_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Stats is the read-only dashboard summary.
type Stats struct {
	TotalUsers          int `json:"total_users"`
	ActiveSubscriptions int `json:"active_subscriptions"`
	TrialSubscriptions  int `json:"trial_subscriptions"`
	SearchesThisMonth   int `json:"searches_this_month"`
	PendingDeletions    int `json:"pending_deletions"`
	WaitlistCount       int `json:"waitlist_count"`
	ActiveBonusGrants   int `json:"active_bonus_grants"`
	FeedbackSubmissions int `json:"feedback_submissions"`
}
