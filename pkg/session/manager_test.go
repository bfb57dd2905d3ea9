package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appideasfinder/backend/pkg/session"
)

func testConfig() session.Config {
	return session.Config{
		CookieName: "aif_session",
		Secret:     "test-secret",
		TTL:        time.Hour,
		Secure:     false,
	}
}

// requestWithCookies copies Set-Cookie output from a recorder into a request.
func requestWithCookies(t *testing.T, rec *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestAuthenticateAndGet(t *testing.T) {
	mgr := session.NewManager(testConfig(), nil)
	userID := uuid.New()

	rec := httptest.NewRecorder()
	created, err := mgr.Authenticate(context.Background(), rec, userID)
	require.NoError(t, err)
	require.True(t, created.IsAuthenticated())

	got, err := mgr.Get(context.Background(), requestWithCookies(t, rec))
	require.NoError(t, err)
	assert.Equal(t, userID, *got.UserID)
}

func TestGetWithoutCookie(t *testing.T) {
	mgr := session.NewManager(testConfig(), nil)

	_, err := mgr.Get(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, session.ErrNoSessionToken)
}

func TestGetWithForgedCookie(t *testing.T) {
	mgr := session.NewManager(testConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "aif_session", Value: "forged.payload"})

	_, err := mgr.Get(context.Background(), req)
	assert.ErrorIs(t, err, session.ErrNoSessionToken)
}

func TestLogout(t *testing.T) {
	mgr := session.NewManager(testConfig(), nil)

	rec := httptest.NewRecorder()
	_, err := mgr.Authenticate(context.Background(), rec, uuid.New())
	require.NoError(t, err)

	req := requestWithCookies(t, rec)
	logoutRec := httptest.NewRecorder()
	require.NoError(t, mgr.Logout(context.Background(), logoutRec, req))

	_, err = mgr.Get(context.Background(), req)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestRequireAuthMiddleware(t *testing.T) {
	mgr := session.NewManager(testConfig(), nil)

	var gotUserID uuid.UUID
	handler := mgr.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := session.UserIDFromContext(r.Context())
		require.True(t, ok)
		gotUserID = id
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("authenticated", func(t *testing.T) {
		userID := uuid.New()
		authRec := httptest.NewRecorder()
		_, err := mgr.Authenticate(context.Background(), authRec, userID)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithCookies(t, authRec))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, userID, gotUserID)
	})
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := session.NewMemoryStore()

	s := session.New("tok", nil, -time.Minute)
	require.NoError(t, store.Create(context.Background(), s))

	_, err := store.Get(context.Background(), "tok")
	assert.ErrorIs(t, err, session.ErrSessionExpired)
}
