package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// UsageResetter resets a user's monthly usage ledger when their plan or
// billing period changes. Implemented by the usage package; the narrow
// interface avoids an import cycle.
type UsageResetter interface {
	Reset(ctx context.Context, userID uuid.UUID, limit int, periodStart, periodEnd time.Time) error
}

// Service defines the public interface for subscription management.
type Service interface {
	// Plans returns the public plans available for self-service signup,
	// ordered by price.
	Plans() []Plan

	// Plan returns a plan by ID. Returns ErrPlanNotFound for unknown IDs.
	Plan(id PlanID) (Plan, error)

	// StartTrial creates a trial subscription for a new user.
	StartTrial(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// GetSubscription retrieves a user's subscription.
	GetSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// CreateCheckoutLink generates a checkout link for a user to subscribe
	// to a plan. Free plans activate immediately without touching the
	// billing provider.
	CreateCheckoutLink(ctx context.Context, userID uuid.UUID, planID PlanID, opts CheckoutOptions) (*CheckoutLink, error)

	// Cancel cancels the user's subscription, provider-side first when a
	// provider subscription exists.
	Cancel(ctx context.Context, userID uuid.UUID) error

	// ChangePlan moves an active paid subscription to a different plan.
	ChangePlan(ctx context.Context, userID uuid.UUID, planID PlanID) (*Subscription, error)

	// HandleWebhook processes incoming webhook events from the billing
	// provider.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error

	// CheckTrial converts or expires a single user's trial if the trial
	// window has elapsed. A no-op for non-trial subscriptions.
	CheckTrial(ctx context.Context, userID uuid.UUID) error

	// ConvertDueTrials sweeps all subscriptions whose trial window has
	// elapsed, converting each to the paid target plan or expiring it.
	ConvertDueTrials(ctx context.Context, now time.Time) (*SweepResult, error)
}

type service struct {
	catalog  Catalog
	provider BillingProvider
	store    Store
	usage    UsageResetter
	log      *slog.Logger
	now      func() time.Time
}

// Option configures optional service settings.
type Option func(*service)

// WithLogger sets the logger used for webhook and sweep diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new Service with the given dependencies.
// Panics if required dependencies are nil to fail fast during initialization.
func NewService(ctx context.Context, src CatalogSource, provider BillingProvider, store Store, usage UsageResetter, opts ...Option) (Service, error) {
	if src == nil {
		panic("subscription: CatalogSource is required")
	}
	if provider == nil {
		panic("subscription: BillingProvider is required")
	}
	if store == nil {
		panic("subscription: Store is required")
	}
	if usage == nil {
		panic("subscription: UsageResetter is required")
	}

	catalog, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	s := &service{
		catalog:  catalog,
		provider: provider,
		store:    store,
		usage:    usage,
		log:      slog.New(slog.DiscardHandler),
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *service) Plans() []Plan {
	plans := make([]Plan, 0, len(s.catalog))
	for _, plan := range s.catalog {
		if plan.Public {
			plans = append(plans, plan)
		}
	}

	sort.Slice(plans, func(i, j int) bool {
		return plans[i].Price.Amount < plans[j].Price.Amount
	})

	return plans
}

func (s *service) Plan(id PlanID) (Plan, error) {
	plan, ok := s.catalog[id]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return plan, nil
}

// planByPriceID maps a provider price ID back to our plan, used when
// webhooks report subscriptions by price.
func (s *service) planByPriceID(priceID string) (Plan, bool) {
	if priceID == "" {
		return Plan{}, false
	}
	for _, plan := range s.catalog {
		if plan.ProviderPriceID == priceID {
			return plan, true
		}
	}
	return Plan{}, false
}

func (s *service) StartTrial(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	if _, err := s.store.Get(ctx, userID); err == nil {
		return nil, ErrSubscriptionAlreadyExists
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	plan, ok := s.catalog[PlanTrial]
	if !ok {
		return nil, ErrPlanNotFound
	}

	now := s.now()
	trialEnd := plan.TrialEndsAt(now)

	sub := &Subscription{
		UserID:      userID,
		PlanID:      PlanTrial,
		Status:      StatusTrial,
		TrialEndsAt: &trialEnd,
		PeriodStart: now,
		PeriodEnd:   trialEnd,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save trial subscription: %w", err)
	}

	if err := s.usage.Reset(ctx, userID, plan.SearchesPerMonth, now, trialEnd); err != nil {
		return nil, fmt.Errorf("failed to initialize usage ledger: %w", err)
	}

	return sub, nil
}

func (s *service) GetSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.store.Get(ctx, userID)
}

func (s *service) CreateCheckoutLink(ctx context.Context, userID uuid.UUID, planID PlanID, opts CheckoutOptions) (*CheckoutLink, error) {
	plan, ok := s.catalog[planID]
	if !ok {
		return nil, ErrPlanNotFound
	}

	existing, err := s.store.Get(ctx, userID)
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	// A user already on an active paid plan goes through ChangePlan, not
	// a second checkout.
	if existing != nil && existing.Status == StatusActive && existing.ProviderSubID != "" {
		return nil, ErrSubscriptionAlreadyExists
	}

	// Free plans bypass the payment provider entirely for instant
	// activation.
	if plan.Interval == BillingIntervalNone {
		now := s.now()
		sub := existing
		if sub == nil {
			sub = &Subscription{UserID: userID, CreatedAt: now}
		}
		sub.PlanID = planID
		sub.Status = StatusActive
		sub.TrialEndsAt = nil
		sub.PeriodStart = now
		sub.PeriodEnd = now.AddDate(0, 1, 0)
		sub.UpdatedAt = now

		if err := s.store.Save(ctx, sub); err != nil {
			return nil, fmt.Errorf("failed to save free plan subscription: %w", err)
		}
		if err := s.usage.Reset(ctx, userID, plan.SearchesPerMonth, sub.PeriodStart, sub.PeriodEnd); err != nil {
			return nil, fmt.Errorf("failed to reset usage ledger: %w", err)
		}

		return &CheckoutLink{
			URL:       opts.SuccessURL,
			ExpiresAt: now.Add(5 * time.Minute),
		}, nil
	}

	return s.provider.CreateCheckoutLink(ctx, CheckoutRequest{
		PriceID:    plan.ProviderPriceID,
		CustomerID: userID.String(),
		Email:      opts.Email,
		SuccessURL: opts.SuccessURL,
		CancelURL:  opts.CancelURL,
	})
}

func (s *service) Cancel(ctx context.Context, userID uuid.UUID) error {
	sub, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	if sub.Status != StatusActive {
		return ErrSubscriptionNotActive
	}

	if sub.ProviderSubID != "" {
		if err := s.provider.CancelSubscription(ctx, sub.ProviderSubID); err != nil {
			return err
		}
	}

	now := s.now()
	sub.Status = StatusCancelled
	sub.CancelledAt = &now
	sub.UpdatedAt = now

	return s.store.Save(ctx, sub)
}

func (s *service) ChangePlan(ctx context.Context, userID uuid.UUID, planID PlanID) (*Subscription, error) {
	plan, ok := s.catalog[planID]
	if !ok {
		return nil, ErrPlanNotFound
	}
	if plan.ProviderPriceID == "" {
		return nil, ErrMissingPriceID
	}

	sub, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if sub.Status != StatusActive || sub.ProviderSubID == "" {
		return nil, ErrSubscriptionNotActive
	}

	providerSub, err := s.provider.ChangePlan(ctx, sub.ProviderSubID, plan.ProviderPriceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sub.PlanID = planID
	sub.UpdatedAt = now
	if !providerSub.PeriodStart.IsZero() {
		sub.PeriodStart = providerSub.PeriodStart
		sub.PeriodEnd = providerSub.PeriodEnd
	}

	if err := s.store.Save(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.usage.Reset(ctx, userID, plan.SearchesPerMonth, sub.PeriodStart, sub.PeriodEnd); err != nil {
		return nil, fmt.Errorf("failed to reset usage ledger: %w", err)
	}

	return sub, nil
}

func (s *service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		return err
	}

	log := s.log.With(
		slog.String("event_type", string(event.Type)),
		slog.String("provider_event", event.ProviderEvent),
	)

	// Customer ID in custom data must be a valid UUID matching our user ID
	// format. Events without it cannot be attributed and are skipped.
	userID, err := uuid.Parse(event.CustomerID)
	if err != nil {
		log.WarnContext(ctx, "webhook without attributable user ID, skipping")
		return nil
	}

	switch event.Type {
	case EventSubscriptionCreated:
		return s.applySubscriptionEvent(ctx, userID, event, true)

	case EventSubscriptionUpdated:
		return s.applySubscriptionEvent(ctx, userID, event, false)

	case EventSubscriptionCancelled:
		sub, err := s.store.Get(ctx, userID)
		if err != nil {
			return err
		}
		now := s.now()
		sub.Status = StatusCancelled
		sub.CancelledAt = &now
		sub.UpdatedAt = now
		return s.store.Save(ctx, sub)

	case EventPaymentFailed:
		// The provider retries payment on its own schedule. The
		// subscription stays as-is until a cancellation event arrives.
		log.WarnContext(ctx, "payment failed", slog.String("user_id", userID.String()))
		return nil

	default:
		log.DebugContext(ctx, "unhandled webhook event")
		return nil
	}
}

// applySubscriptionEvent upserts our subscription row from a provider
// subscription created/updated event.
func (s *service) applySubscriptionEvent(ctx context.Context, userID uuid.UUID, event *WebhookEvent, create bool) error {
	now := s.now()

	sub, err := s.store.Get(ctx, userID)
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		sub = &Subscription{UserID: userID, CreatedAt: now}
	case err != nil:
		return err
	}

	plan, ok := s.planByPriceID(event.PlanPriceID)
	if ok {
		sub.PlanID = plan.ID
	} else if create {
		return fmt.Errorf("%w: unknown provider price %q", ErrPlanNotFound, event.PlanPriceID)
	}

	sub.Status = StatusActive
	sub.TrialEndsAt = nil
	sub.UpdatedAt = now
	if event.SubscriptionID != "" {
		sub.ProviderSubID = event.SubscriptionID
	}
	if event.ProviderCustomerID != "" {
		sub.ProviderCustomerID = event.ProviderCustomerID
	}
	if !event.PeriodStart.IsZero() {
		sub.PeriodStart = event.PeriodStart
		sub.PeriodEnd = event.PeriodEnd
	}

	if err := s.store.Save(ctx, sub); err != nil {
		return err
	}

	// A fresh paid period starts with a clean ledger.
	if ok {
		if err := s.usage.Reset(ctx, userID, plan.SearchesPerMonth, sub.PeriodStart, sub.PeriodEnd); err != nil {
			return fmt.Errorf("failed to reset usage ledger: %w", err)
		}
	}

	return nil
}
