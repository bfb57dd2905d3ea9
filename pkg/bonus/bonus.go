// Package bonus manages promotional grants that extend or replace a user's
// search quota. Grants are awarded by admins or by product triggers such as
// the feedback reward, and decay according to their duration.
package bonus

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies what a grant gives the user.
type Type string

const (
	// TypeFixedSearches adds a fixed number of searches on top of the plan
	// quota.
	TypeFixedSearches Type = "fixed_searches"
	// TypePercentage discounts the subscription price by a percentage.
	TypePercentage Type = "percentage"
)

// Duration controls how long a grant stays active.
type Duration string

const (
	// DurationOnce applies for the current period only.
	DurationOnce Duration = "once"
	// DurationMonthly applies for a counted number of monthly periods.
	DurationMonthly Duration = "monthly"
	// DurationPermanent never expires.
	DurationPermanent Duration = "permanent"
)

// FeedbackReason marks the grant created by the feedback reward trigger.
// The award path dedupes on it so repeat feedback increments one grant
// instead of stacking rows.
const FeedbackReason = "feedback_reward"

// Grant is a single bonus awarded to a user.
type Grant struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Type            Type
	Value           int
	Duration        Duration
	MonthsRemaining *int // set only for monthly duration
	Reason          string
	Active          bool
	GrantedBy       *uuid.UUID // nil for system-triggered grants
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// validType reports whether t is one of the enumerated grant types.
func validType(t Type) bool {
	return t == TypeFixedSearches || t == TypePercentage
}

// validDuration reports whether d is one of the enumerated durations.
func validDuration(d Duration) bool {
	return d == DurationOnce || d == DurationMonthly || d == DurationPermanent
}
