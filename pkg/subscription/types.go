package subscription

// PlanID identifies a subscription plan.
type PlanID string

const (
	PlanTrial         PlanID = "trial"
	PlanCoreMonthly   PlanID = "core_monthly"
	PlanCoreAnnual    PlanID = "core_annual"
	PlanPrimeMonthly  PlanID = "prime_monthly"
	PlanPrimeAnnual   PlanID = "prime_annual"
	PlanFreeUnlimited PlanID = "free_unlimited"
)

// ConversionTargetPlan is the plan expired trials convert to.
const ConversionTargetPlan = PlanCoreMonthly

// Status represents the current state of a subscription.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// BillingInterval represents the billing frequency for a plan.
type BillingInterval string

const (
	BillingIntervalNone    BillingInterval = "none" // free plans with no billing
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalAnnual  BillingInterval = "annual"
)

// UnlimitedSearches indicates no search quota for a plan
// (-1 chosen for SQL compatibility).
const UnlimitedSearches = -1

// Money represents a monetary amount in the smallest currency unit.
// For example, $10.99 USD would be Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  `yaml:"amount"`
	Currency string `yaml:"currency"`
}

// CheckoutOptions contains options for creating a checkout session.
type CheckoutOptions struct {
	Email      string // pre-fill billing email if known
	SuccessURL string // redirect after successful payment
	CancelURL  string // redirect if customer cancels
}
