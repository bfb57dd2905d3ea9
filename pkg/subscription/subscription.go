package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Subscription represents a user's subscription to a plan.
// Each user has exactly one subscription row; it is mutated through status
// changes and never deleted.
type Subscription struct {
	UserID             uuid.UUID
	PlanID             PlanID
	Status             Status
	TrialEndsAt        *time.Time // set only while Status is trial
	PeriodStart        time.Time
	PeriodEnd          time.Time
	ProviderCustomerID string // empty until the user first reaches checkout
	ProviderSubID      string // empty for trial and free plans
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CancelledAt        *time.Time
}

// IsTrialing returns true if the subscription is in trial status.
func (s *Subscription) IsTrialing() bool {
	return s.Status == StatusTrial
}

// IsActive returns true if the subscription is active (paid or free plan).
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// IsTrialExpiredAt returns true if the trial window has ended at the given
// time. Fixed-time variant keeps the trial sweep testable.
func (s *Subscription) IsTrialExpiredAt(now time.Time) bool {
	if s.TrialEndsAt == nil {
		return false
	}
	return now.After(*s.TrialEndsAt)
}

// IsTrialExpired returns true if the trial period has ended.
func (s *Subscription) IsTrialExpired() bool {
	return s.IsTrialExpiredAt(time.Now().UTC())
}

// TrialDaysRemainingAt returns the days remaining in the trial at a given
// time, rounding partial days up. Zero when not trialing or expired.
func (s *Subscription) TrialDaysRemainingAt(now time.Time) int {
	if !s.IsTrialing() || s.TrialEndsAt == nil {
		return 0
	}

	remaining := s.TrialEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}

	days := remaining.Hours() / 24
	return int(days + 0.5)
}
