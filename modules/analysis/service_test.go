package analysis_test

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
	"github.com/stretchr/testify/require"

	"github.com/appideasfinder/backend/modules/analysis"
	"github.com/appideasfinder/backend/pkg/access"
	"github.com/appideasfinder/backend/pkg/bonus"
	"github.com/appideasfinder/backend/pkg/session"
	"github.com/appideasfinder/backend/pkg/subscription"
	"github.com/appideasfinder/backend/pkg/usage"
)

type subsReader struct {
	store   *subscription.MemoryStore
	catalog subscription.Catalog
}

func (r subsReader) GetSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	return r.store.Get(ctx, userID)
}

func (r subsReader) Plan(id subscription.PlanID) (subscription.Plan, error) {
	plan, ok := r.catalog[id]
	if !ok {
		return subscription.Plan{}, subscription.ErrPlanNotFound
	}
	return plan, nil
}

type fakeUpstream struct {
	status   int
	body     []byte
	calls    int
	lastBody []byte
}

func (u *fakeUpstream) ChatCompletion(_ context.Context, body []byte) (*analysis.ProxyResult, error) {
	u.calls++
	u.lastBody = body
	return &analysis.ProxyResult{
		StatusCode:  u.status,
		ContentType: "application/json",
		Body:        u.body,
	}, nil
}

type fixture struct {
	handler  http.Handler
	sessions *session.Manager
	subs     *subscription.MemoryStore
	usage    *usage.MemoryStore
	bonus    *bonus.Service
	cache    *analysis.MemoryCache
	upstream *fakeUpstream
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	subs := subscription.NewMemoryStore()
	usageStore := usage.NewMemoryStore()
	bonusSvc := bonus.NewService(bonus.NewMemoryStore())
	cache := analysis.NewMemoryCache()
	upstream := &fakeUpstream{status: http.StatusOK, body: []byte(`{"ideas":["a","b"]}`)}

	gate := access.NewGate(subsReader{subs, subscription.DefaultCatalog(nil)}, usageStore, bonusSvc)

	sessions := session.NewManager(session.Config{
		CookieName: "test_session",
		Secret:     "test-session-secret",
		TTL:        time.Hour,
	}, nil)

	svc := analysis.NewService(analysis.GrokConfig{APIKey: "xai-test-key"},
		gate, usageStore, bonusSvc, upstream, cache, sessions, nil)

	return &fixture{
		handler:  svc.Handle(),
		sessions: sessions,
		subs:     subs,
		usage:    usageStore,
		bonus:    bonusSvc,
		cache:    cache,
		upstream: upstream,
	}
}

func (f *fixture) loginActiveUser(t *testing.T, limit int) (uuid.UUID, []*http.Cookie) {
	t.Helper()

	userID := uuid.New()
	now := time.Now().UTC()
	require.NoError(t, f.subs.Save(context.Background(), &subscription.Subscription{
		UserID:      userID,
		PlanID:      subscription.PlanCoreMonthly,
		Status:      subscription.StatusActive,
		PeriodStart: now,
		PeriodEnd:   now.AddDate(0, 1, 0),
	}))
	require.NoError(t, f.usage.Reset(context.Background(), userID, limit, now, now.AddDate(0, 1, 0)))

	rec := httptest.NewRecorder()
	_, err := f.sessions.Authenticate(context.Background(), rec, userID)
	require.NoError(t, err)
	return userID, rec.Result().Cookies()
}

func (f *fixture) do(method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func proxyBody(query string) map[string]any {
	return map[string]any{
		"query":   query,
		"payload": map[string]any{"messages": []string{query}},
	}
}

func TestGrokProxy(t *testing.T) {
	t.Parallel()

	t.Run("requires authentication", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.do(http.MethodPost, "/grok-proxy", proxyBody("ai tools"), nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("successful proxy consumes one search", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID, cookies := f.loginActiveUser(t, 10)

		rec := f.do(http.MethodPost, "/grok-proxy", proxyBody("ai tools"), cookies)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ideas":["a","b"]}`, rec.Body.String())

		row, err := f.usage.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, 1, row.SearchesUsed)
	})

	t.Run("cache hit skips upstream and quota", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID, cookies := f.loginActiveUser(t, 10)

		rec := f.do(http.MethodPost, "/grok-proxy", proxyBody("fitness apps"), cookies)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, 1, f.upstream.calls)

		rec = f.do(http.MethodPost, "/grok-proxy", proxyBody("fitness apps"), cookies)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, f.upstream.calls)

		row, err := f.usage.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, 1, row.SearchesUsed)
	})

	t.Run("exhausted quota is forbidden", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID, cookies := f.loginActiveUser(t, 1)

		rec := f.do(http.MethodPost, "/grok-proxy", proxyBody("one"), cookies)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(http.MethodPost, "/grok-proxy", proxyBody("two"), cookies)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		row, err := f.usage.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, 1, row.SearchesUsed)
	})

	t.Run("upstream error does not consume", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID, cookies := f.loginActiveUser(t, 10)
		f.upstream.status = http.StatusBadGateway
		f.upstream.body = []byte(`{"error":"upstream"}`)

		rec := f.do(http.MethodPost, "/grok-proxy", proxyBody("flaky"), cookies)
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		row, err := f.usage.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, 0, row.SearchesUsed)
	})

	t.Run("spent plan quota falls back to a bonus grant", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID, cookies := f.loginActiveUser(t, 1)

		rec := f.do(http.MethodPost, "/grok-proxy", proxyBody("one"), cookies)
		require.Equal(t, http.StatusOK, rec.Code)

		grant, err := f.bonus.Award(context.Background(), bonus.AwardParams{
			UserID: userID, Type: bonus.TypeFixedSearches, Value: 1, Duration: bonus.DurationOnce,
		})
		require.NoError(t, err)

		rec = f.do(http.MethodPost, "/grok-proxy", proxyBody("two"), cookies)
		require.Equal(t, http.StatusOK, rec.Code)

		// The second search came out of the grant, which is a once grant
		// and deactivates at zero.
		row, err := f.usage.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, 1, row.SearchesUsed)

		grants, err := f.bonus.ListActive(context.Background(), grant.UserID)
		require.NoError(t, err)
		assert.Empty(t, grants)

		rec = f.do(http.MethodPost, "/grok-proxy", proxyBody("three"), cookies)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("expired user with a grant searches on the bonus alone", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID := uuid.New()
		now := time.Now().UTC()
		require.NoError(t, f.subs.Save(context.Background(), &subscription.Subscription{
			UserID: userID,
			PlanID: subscription.PlanTrial,
			Status: subscription.StatusExpired,
		}))

		// The trial ledger is fully spent; the fresh grant must still fund
		// the search.
		require.NoError(t, f.usage.Reset(context.Background(), userID, 25, now.AddDate(0, -1, 0), now))
		params := usage.ConsumeParams{Limit: 25, PeriodStart: now.AddDate(0, -1, 0), PeriodEnd: now}
		for i := 0; i < 25; i++ {
			_, err := f.usage.Consume(context.Background(), userID, params)
			require.NoError(t, err)
		}

		_, err := f.bonus.Award(context.Background(), bonus.AwardParams{
			UserID: userID, Type: bonus.TypeFixedSearches, Value: 2, Duration: bonus.DurationOnce,
		})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		_, err = f.sessions.Authenticate(context.Background(), rec, userID)
		require.NoError(t, err)
		cookies := rec.Result().Cookies()

		resp := f.do(http.MethodPost, "/grok-proxy", proxyBody("bonus search"), cookies)
		require.Equal(t, http.StatusOK, resp.Code)

		// Charged to the grant; the stale ledger row is untouched.
		row, err := f.usage.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, 25, row.SearchesUsed)

		grants, err := f.bonus.ListActive(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, grants, 1)
		assert.Equal(t, 1, grants[0].Value)
	})

	t.Run("expired subscription is forbidden", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID := uuid.New()
		require.NoError(t, f.subs.Save(context.Background(), &subscription.Subscription{
			UserID: userID,
			PlanID: subscription.PlanTrial,
			Status: subscription.StatusExpired,
		}))

		rec := httptest.NewRecorder()
		_, err := f.sessions.Authenticate(context.Background(), rec, userID)
		require.NoError(t, err)

		resp := f.do(http.MethodPost, "/grok-proxy", proxyBody("x"), rec.Result().Cookies())
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}

func TestCheckCache(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, cookies := f.loginActiveUser(t, 10)

	rec := f.do(http.MethodGet, "/check-cache?q=ai+tools", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Cached bool            `json:"cached"`
			Result json.RawMessage `json:"result"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Cached)

	require.NoError(t, f.cache.Set(context.Background(), "ai tools", []byte(`{"ideas":[]}`)))

	rec = f.do(http.MethodGet, "/check-cache?q=ai+tools", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Cached)
	assert.JSONEq(t, `{"ideas":[]}`, string(resp.Data.Result))

	rec = f.do(http.MethodGet, "/check-cache", nil, cookies)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGrokKey(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, cookies := f.loginActiveUser(t, 10)

	rec := f.do(http.MethodGet, "/grok-key", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			APIKey    string `json:"api_key"`
			Remaining int    `json:"remaining"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "xai-test-key", resp.Data.APIKey)
	assert.Equal(t, 10, resp.Data.Remaining)
}
