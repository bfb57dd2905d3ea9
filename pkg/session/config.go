package session

import "time"

type Config struct {
	CookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"aif_session"` // CookieName is the session cookie name.
	Secret     string        `env:"SESSION_SECRET,required"`                      // Secret signs the session cookie.
	TTL        time.Duration `env:"SESSION_TTL" envDefault:"720h"`                // TTL is the session lifetime.
	Secure     bool          `env:"SESSION_SECURE_COOKIES" envDefault:"true"`     // Secure restricts the cookie to HTTPS.
}
