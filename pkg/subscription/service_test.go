package subscription_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/appideasfinder/backend/pkg/subscription"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateCheckoutLink(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutLink, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.CheckoutLink), args.Error(1)
}

func (m *mockProvider) CreateSubscription(ctx context.Context, customerID, priceID string) (*subscription.ProviderSubscription, error) {
	args := m.Called(ctx, customerID, priceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.ProviderSubscription), args.Error(1)
}

func (m *mockProvider) CancelSubscription(ctx context.Context, providerSubID string) error {
	args := m.Called(ctx, providerSubID)
	return args.Error(0)
}

func (m *mockProvider) ChangePlan(ctx context.Context, providerSubID, priceID string) (*subscription.ProviderSubscription, error) {
	args := m.Called(ctx, providerSubID, priceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.ProviderSubscription), args.Error(1)
}

func (m *mockProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*subscription.WebhookEvent, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.WebhookEvent), args.Error(1)
}

// usageRecorder captures Reset calls so tests can assert on ledger resets
// without a real usage store.
type usageRecorder struct {
	mu    sync.Mutex
	calls []usageReset
}

type usageReset struct {
	UserID      uuid.UUID
	Limit       int
	PeriodStart time.Time
	PeriodEnd   time.Time
}

func (r *usageRecorder) Reset(_ context.Context, userID uuid.UUID, limit int, periodStart, periodEnd time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, usageReset{userID, limit, periodStart, periodEnd})
	return nil
}

func (r *usageRecorder) last() (usageReset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return usageReset{}, false
	}
	return r.calls[len(r.calls)-1], true
}

func testCatalog() subscription.Catalog {
	return subscription.DefaultCatalog(map[subscription.PlanID]string{
		subscription.PlanCoreMonthly:  "pri_core_monthly",
		subscription.PlanCoreAnnual:   "pri_core_annual",
		subscription.PlanPrimeMonthly: "pri_prime_monthly",
		subscription.PlanPrimeAnnual:  "pri_prime_annual",
	})
}

func newTestService(t *testing.T, provider subscription.BillingProvider, store subscription.Store, usage subscription.UsageResetter, opts ...subscription.Option) subscription.Service {
	t.Helper()

	svc, err := subscription.NewService(context.Background(),
		subscription.NewStaticSource(testCatalog()), provider, store, usage, opts...)
	require.NoError(t, err)
	return svc
}

func TestStartTrial(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := subscription.NewMemoryStore()
	usage := &usageRecorder{}
	svc := newTestService(t, &mockProvider{}, store, usage)

	userID := uuid.New()
	sub, err := svc.StartTrial(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, subscription.PlanTrial, sub.PlanID)
	assert.Equal(t, subscription.StatusTrial, sub.Status)
	require.NotNil(t, sub.TrialEndsAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), *sub.TrialEndsAt, time.Minute)

	reset, ok := usage.last()
	require.True(t, ok)
	assert.Equal(t, userID, reset.UserID)
	assert.Equal(t, 25, reset.Limit)

	_, err = svc.StartTrial(ctx, userID)
	assert.ErrorIs(t, err, subscription.ErrSubscriptionAlreadyExists)
}

func TestCreateCheckoutLink(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("paid plan delegates to provider", func(t *testing.T) {
		t.Parallel()

		provider := &mockProvider{}
		store := subscription.NewMemoryStore()
		svc := newTestService(t, provider, store, &usageRecorder{})

		userID := uuid.New()
		provider.On("CreateCheckoutLink", mock.Anything, mock.MatchedBy(func(req subscription.CheckoutRequest) bool {
			return req.PriceID == "pri_core_monthly" && req.CustomerID == userID.String()
		})).Return(&subscription.CheckoutLink{URL: "https://pay.example.com/123"}, nil)

		link, err := svc.CreateCheckoutLink(ctx, userID, subscription.PlanCoreMonthly, subscription.CheckoutOptions{})
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example.com/123", link.URL)
		provider.AssertExpectations(t)
	})

	t.Run("free plan activates immediately", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		usage := &usageRecorder{}
		svc := newTestService(t, &mockProvider{}, store, usage)

		userID := uuid.New()
		link, err := svc.CreateCheckoutLink(ctx, userID, subscription.PlanFreeUnlimited, subscription.CheckoutOptions{
			SuccessURL: "https://app.example.com/welcome",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://app.example.com/welcome", link.URL)

		sub, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Equal(t, subscription.PlanFreeUnlimited, sub.PlanID)

		reset, ok := usage.last()
		require.True(t, ok)
		assert.Equal(t, subscription.UnlimitedSearches, reset.Limit)
	})

	t.Run("rejects unknown plan", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t, &mockProvider{}, subscription.NewMemoryStore(), &usageRecorder{})

		_, err := svc.CreateCheckoutLink(ctx, uuid.New(), "nonexistent", subscription.CheckoutOptions{})
		assert.ErrorIs(t, err, subscription.ErrPlanNotFound)
	})

	t.Run("rejects second checkout for active paid subscription", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		svc := newTestService(t, &mockProvider{}, store, &usageRecorder{})

		userID := uuid.New()
		require.NoError(t, store.Save(ctx, &subscription.Subscription{
			UserID:        userID,
			PlanID:        subscription.PlanCoreMonthly,
			Status:        subscription.StatusActive,
			ProviderSubID: "sub_123",
		}))

		_, err := svc.CreateCheckoutLink(ctx, userID, subscription.PlanPrimeMonthly, subscription.CheckoutOptions{})
		assert.ErrorIs(t, err, subscription.ErrSubscriptionAlreadyExists)
	})
}

func TestCancel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("cancels provider subscription", func(t *testing.T) {
		t.Parallel()

		provider := &mockProvider{}
		store := subscription.NewMemoryStore()
		svc := newTestService(t, provider, store, &usageRecorder{})

		userID := uuid.New()
		require.NoError(t, store.Save(ctx, &subscription.Subscription{
			UserID:        userID,
			PlanID:        subscription.PlanCoreMonthly,
			Status:        subscription.StatusActive,
			ProviderSubID: "sub_123",
		}))
		provider.On("CancelSubscription", mock.Anything, "sub_123").Return(nil)

		require.NoError(t, svc.Cancel(ctx, userID))

		sub, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCancelled, sub.Status)
		assert.NotNil(t, sub.CancelledAt)
		provider.AssertExpectations(t)
	})

	t.Run("rejects non-active subscription", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		svc := newTestService(t, &mockProvider{}, store, &usageRecorder{})

		userID := uuid.New()
		trialEnd := time.Now().Add(24 * time.Hour)
		require.NoError(t, store.Save(ctx, &subscription.Subscription{
			UserID:      userID,
			PlanID:      subscription.PlanTrial,
			Status:      subscription.StatusTrial,
			TrialEndsAt: &trialEnd,
		}))

		assert.ErrorIs(t, svc.Cancel(ctx, userID), subscription.ErrSubscriptionNotActive)
	})

	t.Run("missing subscription", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t, &mockProvider{}, subscription.NewMemoryStore(), &usageRecorder{})
		assert.ErrorIs(t, svc.Cancel(ctx, uuid.New()), subscription.ErrSubscriptionNotFound)
	})
}

func TestChangePlan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	provider := &mockProvider{}
	store := subscription.NewMemoryStore()
	usage := &usageRecorder{}
	svc := newTestService(t, provider, store, usage)

	userID := uuid.New()
	require.NoError(t, store.Save(ctx, &subscription.Subscription{
		UserID:        userID,
		PlanID:        subscription.PlanCoreMonthly,
		Status:        subscription.StatusActive,
		ProviderSubID: "sub_123",
	}))

	periodStart := time.Now().UTC().Truncate(time.Second)
	periodEnd := periodStart.AddDate(0, 1, 0)
	provider.On("ChangePlan", mock.Anything, "sub_123", "pri_prime_monthly").Return(&subscription.ProviderSubscription{
		ID:          "sub_123",
		Status:      "active",
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}, nil)

	sub, err := svc.ChangePlan(ctx, userID, subscription.PlanPrimeMonthly)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanPrimeMonthly, sub.PlanID)
	assert.Equal(t, periodStart, sub.PeriodStart)

	reset, ok := usage.last()
	require.True(t, ok)
	assert.Equal(t, 300, reset.Limit)
	provider.AssertExpectations(t)
}

func TestHandleWebhook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("subscription created activates plan and resets usage", func(t *testing.T) {
		t.Parallel()

		provider := &mockProvider{}
		store := subscription.NewMemoryStore()
		usage := &usageRecorder{}
		svc := newTestService(t, provider, store, usage)

		userID := uuid.New()
		periodStart := time.Now().UTC().Truncate(time.Second)
		periodEnd := periodStart.AddDate(0, 1, 0)
		provider.On("ParseWebhook", mock.Anything, mock.Anything, "sig").Return(&subscription.WebhookEvent{
			Type:               subscription.EventSubscriptionCreated,
			CustomerID:         userID.String(),
			ProviderCustomerID: "ctm_42",
			SubscriptionID:     "sub_42",
			PlanPriceID:        "pri_core_monthly",
			PeriodStart:        periodStart,
			PeriodEnd:          periodEnd,
		}, nil)

		require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))

		sub, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Equal(t, subscription.PlanCoreMonthly, sub.PlanID)
		assert.Equal(t, "sub_42", sub.ProviderSubID)
		assert.Equal(t, "ctm_42", sub.ProviderCustomerID)
		assert.Nil(t, sub.TrialEndsAt)

		reset, ok := usage.last()
		require.True(t, ok)
		assert.Equal(t, 73, reset.Limit)
	})

	t.Run("cancellation event marks subscription cancelled", func(t *testing.T) {
		t.Parallel()

		provider := &mockProvider{}
		store := subscription.NewMemoryStore()
		svc := newTestService(t, provider, store, &usageRecorder{})

		userID := uuid.New()
		require.NoError(t, store.Save(ctx, &subscription.Subscription{
			UserID:        userID,
			PlanID:        subscription.PlanCoreMonthly,
			Status:        subscription.StatusActive,
			ProviderSubID: "sub_99",
		}))
		provider.On("ParseWebhook", mock.Anything, mock.Anything, "sig").Return(&subscription.WebhookEvent{
			Type:       subscription.EventSubscriptionCancelled,
			CustomerID: userID.String(),
		}, nil)

		require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))

		sub, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCancelled, sub.Status)
	})

	t.Run("unattributable event is skipped", func(t *testing.T) {
		t.Parallel()

		provider := &mockProvider{}
		svc := newTestService(t, provider, subscription.NewMemoryStore(), &usageRecorder{})

		provider.On("ParseWebhook", mock.Anything, mock.Anything, "sig").Return(&subscription.WebhookEvent{
			Type:       subscription.EventSubscriptionCreated,
			CustomerID: "not-a-uuid",
		}, nil)

		assert.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))
	})

	t.Run("verification failure propagates", func(t *testing.T) {
		t.Parallel()

		provider := &mockProvider{}
		svc := newTestService(t, provider, subscription.NewMemoryStore(), &usageRecorder{})

		provider.On("ParseWebhook", mock.Anything, mock.Anything, "bad").Return(nil, subscription.ErrWebhookVerificationFailed)

		err := svc.HandleWebhook(ctx, []byte("{}"), "bad")
		assert.ErrorIs(t, err, subscription.ErrWebhookVerificationFailed)
	})
}

func TestPlans(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &mockProvider{}, subscription.NewMemoryStore(), &usageRecorder{})

	plans := svc.Plans()
	require.Len(t, plans, 4)

	// Sorted by price, and internal plans never leak out.
	assert.Equal(t, subscription.PlanCoreMonthly, plans[0].ID)
	for _, plan := range plans {
		assert.True(t, plan.Public)
	}
}
