package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/appideasfinder/backend/modules/billing"
	"github.com/appideasfinder/backend/pkg/session"
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
	return m.Called(ctx, providerSubID).Error(0)
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

type noopUsage struct{}

func (noopUsage) Reset(context.Context, uuid.UUID, int, time.Time, time.Time) error { return nil }

type fixture struct {
	handler  http.Handler
	sessions *session.Manager
	store    *subscription.MemoryStore
	provider *mockProvider
}

func newFixture(t *testing.T, cronSecret string) *fixture {
	t.Helper()

	provider := &mockProvider{}
	store := subscription.NewMemoryStore()

	catalog := subscription.DefaultCatalog(map[subscription.PlanID]string{
		subscription.PlanCoreMonthly:  "pri_core_monthly",
		subscription.PlanCoreAnnual:   "pri_core_annual",
		subscription.PlanPrimeMonthly: "pri_prime_monthly",
		subscription.PlanPrimeAnnual:  "pri_prime_annual",
	})

	subs, err := subscription.NewService(context.Background(),
		subscription.NewStaticSource(catalog), provider, store, noopUsage{})
	require.NoError(t, err)

	sessions := session.NewManager(session.Config{
		CookieName: "test_session",
		Secret:     "test-session-secret",
		TTL:        time.Hour,
	}, nil)

	svc := billing.NewService(billing.Config{
		CronSecret:         cronSecret,
		CheckoutSuccessURL: "https://app.example.com/welcome",
	}, subs, sessions, nil)

	return &fixture{
		handler:  svc.Handle(),
		sessions: sessions,
		store:    store,
		provider: provider,
	}
}

func (f *fixture) login(t *testing.T, userID uuid.UUID) []*http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	_, err := f.sessions.Authenticate(context.Background(), rec, userID)
	require.NoError(t, err)
	return rec.Result().Cookies()
}

func (f *fixture) do(method, path string, body any, cookies []*http.Cookie, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	t.Run("requires authentication", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, "")
		rec := f.do(http.MethodPost, "/checkout", map[string]string{"plan_id": "core_monthly"}, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("returns the checkout URL", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, "")
		userID := uuid.New()
		cookies := f.login(t, userID)

		f.provider.On("CreateCheckoutLink", mock.Anything, mock.Anything).
			Return(&subscription.CheckoutLink{URL: "https://pay.example.com/tx_1"}, nil)

		rec := f.do(http.MethodPost, "/checkout", map[string]string{"plan_id": "core_monthly"}, cookies, nil)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp struct {
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "https://pay.example.com/tx_1", resp.Data["checkout_url"])
	})

	t.Run("unknown plan is 404", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, "")
		cookies := f.login(t, uuid.New())

		rec := f.do(http.MethodPost, "/checkout", map[string]string{"plan_id": "platinum"}, cookies, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing plan_id is a validation error", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, "")
		cookies := f.login(t, uuid.New())

		rec := f.do(http.MethodPost, "/checkout", map[string]string{}, cookies, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestGetSubscription(t *testing.T) {
	t.Parallel()

	t.Run("lapsed trial is expired on read", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, "")
		userID := uuid.New()
		cookies := f.login(t, userID)

		// No payment method on file, so the lapsed trial expires instead
		// of converting.
		trialEnd := time.Now().Add(-2 * time.Hour)
		require.NoError(t, f.store.Save(context.Background(), &subscription.Subscription{
			UserID:      userID,
			PlanID:      subscription.PlanTrial,
			Status:      subscription.StatusTrial,
			TrialEndsAt: &trialEnd,
		}))

		rec := f.do(http.MethodGet, "/subscription", nil, cookies, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data struct {
				Status string `json:"status"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, string(subscription.StatusExpired), resp.Data.Status)

		sub, err := f.store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusExpired, sub.Status)
	})

	t.Run("trial inside its window is untouched", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, "")
		userID := uuid.New()
		cookies := f.login(t, userID)

		trialEnd := time.Now().Add(24 * time.Hour)
		require.NoError(t, f.store.Save(context.Background(), &subscription.Subscription{
			UserID:      userID,
			PlanID:      subscription.PlanTrial,
			Status:      subscription.StatusTrial,
			TrialEndsAt: &trialEnd,
		}))

		rec := f.do(http.MethodGet, "/subscription", nil, cookies, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		sub, err := f.store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrial, sub.Status)
	})

	t.Run("never subscribed is 404", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, "")
		cookies := f.login(t, uuid.New())

		rec := f.do(http.MethodGet, "/subscription", nil, cookies, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCancelSubscription(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	userID := uuid.New()
	cookies := f.login(t, userID)

	require.NoError(t, f.store.Save(context.Background(), &subscription.Subscription{
		UserID:        userID,
		PlanID:        subscription.PlanCoreMonthly,
		Status:        subscription.StatusActive,
		ProviderSubID: "sub_1",
	}))
	f.provider.On("CancelSubscription", mock.Anything, "sub_1").Return(nil)

	rec := f.do(http.MethodPost, "/cancel-subscription", nil, cookies, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sub, err := f.store.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, sub.Status)
}

func TestChangePlan(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	userID := uuid.New()
	cookies := f.login(t, userID)

	require.NoError(t, f.store.Save(context.Background(), &subscription.Subscription{
		UserID:        userID,
		PlanID:        subscription.PlanCoreMonthly,
		Status:        subscription.StatusActive,
		ProviderSubID: "sub_1",
	}))
	f.provider.On("ChangePlan", mock.Anything, "sub_1", "pri_prime_monthly").
		Return(&subscription.ProviderSubscription{ID: "sub_1", Status: "active"}, nil)

	rec := f.do(http.MethodPost, "/change-plan", map[string]string{"plan_id": "prime_monthly"}, cookies, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			PlanID string `json:"plan_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "prime_monthly", resp.Data.PlanID)
}

func TestConvertTrialsEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("rejects missing bearer secret", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, "sweep-secret")
		rec := f.do(http.MethodGet, "/cron/convert-trials", nil, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("runs the sweep with the right secret", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, "sweep-secret")

		trialEnd := time.Now().Add(-24 * time.Hour)
		require.NoError(t, f.store.Save(context.Background(), &subscription.Subscription{
			UserID:      uuid.New(),
			PlanID:      subscription.PlanTrial,
			Status:      subscription.StatusTrial,
			TrialEndsAt: &trialEnd,
		}))

		rec := f.do(http.MethodGet, "/cron/convert-trials", nil, nil,
			map[string]string{"Authorization": "Bearer sweep-secret"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data subscription.SweepResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Data.Total)
		assert.Equal(t, 1, resp.Data.Expired)
	})
}

func TestWebhookEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("bad signature is 401", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, "")
		f.provider.On("ParseWebhook", mock.Anything, mock.Anything, "bad").
			Return(nil, subscription.ErrWebhookVerificationFailed)

		rec := f.do(http.MethodPost, "/webhook", map[string]string{}, nil,
			map[string]string{"Paddle-Signature": "bad"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid event is processed", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, "")
		userID := uuid.New()
		f.provider.On("ParseWebhook", mock.Anything, mock.Anything, "good").
			Return(&subscription.WebhookEvent{
				Type:           subscription.EventSubscriptionCreated,
				CustomerID:     userID.String(),
				SubscriptionID: "sub_9",
				PlanPriceID:    "pri_core_monthly",
			}, nil)

		rec := f.do(http.MethodPost, "/webhook", map[string]string{}, nil,
			map[string]string{"Paddle-Signature": "good"})
		require.Equal(t, http.StatusOK, rec.Code)

		sub, err := f.store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, sub.Status)
	})
}
