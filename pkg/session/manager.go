package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/google/uuid"
)

// Manager handles session operations.
type Manager struct {
	store     Store
	transport Transport
	config    Config
}

// NewManager creates a session manager. The store defaults to an in-memory
// implementation when nil, which is only suitable for tests.
func NewManager(cfg Config, store Store) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		store:     store,
		transport: NewCookieTransport(cfg.CookieName, cfg.Secret, cfg.Secure),
		config:    cfg,
	}
}

// Get retrieves the session referenced by the request cookie.
func (m *Manager) Get(ctx context.Context, r *http.Request) (*Session, error) {
	tok, err := m.transport.GetToken(r)
	if err != nil {
		return nil, err
	}
	return m.store.Get(ctx, tok)
}

// Authenticate creates a session for the given user and sets the cookie.
func (m *Manager) Authenticate(ctx context.Context, w http.ResponseWriter, userID uuid.UUID) (*Session, error) {
	tok, err := generateToken()
	if err != nil {
		return nil, err
	}

	session := New(tok, &userID, m.config.TTL)
	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}

	if err := m.transport.SetToken(w, session.Token, m.config.TTL); err != nil {
		_ = m.store.Delete(ctx, session.Token)
		return nil, err
	}

	return session, nil
}

// Logout destroys the request's session and clears the cookie.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tok, err := m.transport.GetToken(r)
	if err == nil {
		_ = m.store.Delete(ctx, tok)
	}
	return m.transport.ClearToken(w)
}

// generateToken returns a 256-bit random opaque token.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
