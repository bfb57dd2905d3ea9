// Package access decides whether a user may run a search right now. The
// decision combines subscription status, the monthly usage ledger, and any
// active bonus grants. Every lookup failure denies access; the gate never
// grants on partial information.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/appideasfinder/backend/pkg/bonus"
	"github.com/appideasfinder/backend/pkg/subscription"
	"github.com/appideasfinder/backend/pkg/usage"
)

var (
	// ErrAccessDenied is returned when the user has no entitlement to
	// search, either by plan status or exhausted quota.
	ErrAccessDenied = errors.New("access denied")
	// ErrCheckFailed wraps lookup failures; the gate fails closed on them.
	ErrCheckFailed = errors.New("access check failed")
)

// SubscriptionReader is the slice of the subscription service the gate needs.
type SubscriptionReader interface {
	GetSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error)
	Plan(id subscription.PlanID) (subscription.Plan, error)
}

// UsageReader reads the user's current ledger row.
type UsageReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*usage.MonthlyUsage, error)
}

// BonusReader lists the user's active grants.
type BonusReader interface {
	ListActive(ctx context.Context, userID uuid.UUID) ([]*bonus.Grant, error)
}

// Decision is the gate's verdict for one user at one point in time.
type Decision struct {
	Allowed bool
	// BonusOnly is set when plan status alone would deny access and an
	// active bonus with remaining value carried the decision. Bonus-only
	// searches are charged to the grant, not to the usage ledger.
	BonusOnly bool
	// Reason is a stable denial code, empty when allowed.
	Reason string
	// Remaining is searches left including bonus extras, -1 for unlimited.
	Remaining int
	// ConsumeParams is pre-filled for the follow-up ledger increment when
	// the decision is positive and plan-funded. Zero for bonus-only
	// decisions.
	ConsumeParams usage.ConsumeParams
}

// Denial reasons.
const (
	ReasonNoSubscription = "no_subscription"
	ReasonPlanInactive   = "plan_inactive"
	ReasonTrialExpired   = "trial_expired"
	ReasonQuotaExhausted = "quota_exhausted"
)

// Gate evaluates search entitlement.
type Gate struct {
	subs  SubscriptionReader
	usage UsageReader
	bonus BonusReader
	log   *slog.Logger
	now   func() time.Time
}

// Option configures optional gate settings.
type Option func(*Gate)

// WithLogger sets the logger for denied and failed checks.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate creates an access gate. Panics on nil dependencies to fail fast
// during initialization.
func NewGate(subs SubscriptionReader, usageStore UsageReader, bonusSvc BonusReader, opts ...Option) *Gate {
	if subs == nil {
		panic("access: SubscriptionReader is required")
	}
	if usageStore == nil {
		panic("access: UsageReader is required")
	}
	if bonusSvc == nil {
		panic("access: BonusReader is required")
	}

	g := &Gate{
		subs:  subs,
		usage: usageStore,
		bonus: bonusSvc,
		log:   slog.New(slog.DiscardHandler),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check evaluates whether the user may run a search. A denied decision comes
// back with a nil error; an error means the check itself could not complete
// and the caller must treat it as denied.
func (g *Gate) Check(ctx context.Context, userID uuid.UUID) (Decision, error) {
	now := g.now()

	sub, err := g.subs.GetSubscription(ctx, userID)
	if err != nil && !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return Decision{}, fmt.Errorf("%w: %w", ErrCheckFailed, err)
	}

	grants, err := g.bonus.ListActive(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrCheckFailed, err)
	}

	extra := 0
	for _, grant := range grants {
		if grant.Type == bonus.TypeFixedSearches {
			extra += grant.Value
		}
	}

	entitled, reason := planEntitles(sub, now)
	if !entitled {
		// Bonus-only mode: an active grant with remaining value carries
		// access on its own. The plan-period ledger does not apply here;
		// whatever the user burned while the plan entitled them has no
		// claim on the bonus. A grant consumed down to zero grants nothing.
		if extra > 0 {
			return Decision{Allowed: true, BonusOnly: true, Remaining: extra}, nil
		}
		return Decision{Allowed: false, Reason: reason}, nil
	}

	return g.checkQuota(ctx, userID, sub, extra, now)
}

// planEntitles reports whether subscription status alone grants access.
func planEntitles(sub *subscription.Subscription, now time.Time) (bool, string) {
	if sub == nil {
		return false, ReasonNoSubscription
	}

	switch sub.Status {
	case subscription.StatusActive:
		return true, ""
	case subscription.StatusTrial:
		if sub.IsTrialExpiredAt(now) {
			return false, ReasonTrialExpired
		}
		return true, ""
	default:
		return false, ReasonPlanInactive
	}
}

// checkQuota verifies the usage ledger has room. A missing ledger row means
// zero used with the full limit available.
func (g *Gate) checkQuota(ctx context.Context, userID uuid.UUID, sub *subscription.Subscription, extra int, now time.Time) (Decision, error) {
	limit, periodStart, periodEnd := g.planQuota(sub, now)

	used := 0
	row, err := g.usage.Get(ctx, userID)
	switch {
	case errors.Is(err, usage.ErrUsageNotFound):
		// Never consumed, full quota available.
	case err != nil:
		return Decision{}, fmt.Errorf("%w: %w", ErrCheckFailed, err)
	default:
		used = row.SearchesUsed
		limit = row.SearchesLimit
		periodStart, periodEnd = row.PeriodStart, row.PeriodEnd
	}

	params := usage.ConsumeParams{
		Limit:       limit,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}

	if limit < 0 {
		return Decision{Allowed: true, Remaining: -1, ConsumeParams: params}, nil
	}

	// Bonus searches sit on top of the plan quota; the ledger counts plan
	// searches only, so the grant values still to burn are always headroom.
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	remaining += extra

	if remaining == 0 {
		g.log.DebugContext(ctx, "quota exhausted",
			slog.String("user_id", userID.String()),
			slog.Int("used", used),
			slog.Int("limit", limit))
		return Decision{Reason: ReasonQuotaExhausted, ConsumeParams: params}, nil
	}

	return Decision{
		Allowed:       true,
		Remaining:     remaining,
		ConsumeParams: params,
	}, nil
}

// planQuota resolves the plan's quota and billing period for users without a
// ledger row yet.
func (g *Gate) planQuota(sub *subscription.Subscription, now time.Time) (int, time.Time, time.Time) {
	if sub == nil {
		return 0, now, now.AddDate(0, 1, 0)
	}

	limit := 0
	if plan, err := g.subs.Plan(sub.PlanID); err == nil {
		limit = plan.SearchesPerMonth
	}

	periodStart, periodEnd := sub.PeriodStart, sub.PeriodEnd
	if !periodEnd.After(periodStart) {
		periodStart, periodEnd = now, now.AddDate(0, 1, 0)
	}

	return limit, periodStart, periodEnd
}
