package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/appideasfinder/backend/pkg/token"
)

// Transport moves the session token between the server and the client.
type Transport interface {
	GetToken(r *http.Request) (string, error)
	SetToken(w http.ResponseWriter, sessionToken string, ttl time.Duration) error
	ClearToken(w http.ResponseWriter) error
}

// cookiePayload is the signed value stored in the session cookie.
type cookiePayload struct {
	Token string `json:"t"`
}

// CookieTransport carries the session token in an HMAC-signed HTTP cookie,
// so a forged or truncated cookie fails verification before any store
// lookup happens.
type CookieTransport struct {
	name   string
	secret string
	secure bool
}

// NewCookieTransport creates a cookie transport with the given cookie name
// and signing secret.
func NewCookieTransport(name, secret string, secure bool) *CookieTransport {
	return &CookieTransport{name: name, secret: secret, secure: secure}
}

func (t *CookieTransport) GetToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(t.name)
	if err != nil {
		return "", errors.Join(ErrNoSessionToken, err)
	}

	payload, err := token.Parse[cookiePayload](cookie.Value, t.secret)
	if err != nil {
		return "", errors.Join(ErrNoSessionToken, err)
	}

	return payload.Token, nil
}

func (t *CookieTransport) SetToken(w http.ResponseWriter, sessionToken string, ttl time.Duration) error {
	signed, err := token.Generate(cookiePayload{Token: sessionToken}, t.secret)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     t.name,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (t *CookieTransport) ClearToken(w http.ResponseWriter) error {
	http.SetCookie(w, &http.Cookie{
		Name:     t.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
