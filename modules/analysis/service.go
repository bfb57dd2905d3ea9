package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/appideasfinder/backend/pkg/access"
	"github.com/appideasfinder/backend/pkg/bonus"
	"github.com/appideasfinder/backend/pkg/httpx"
	"github.com/appideasfinder/backend/pkg/session"
	"github.com/appideasfinder/backend/pkg/usage"
)

// Gate is the slice of the access gate the module needs.
type Gate interface {
	Check(ctx context.Context, userID uuid.UUID) (access.Decision, error)
}

// Consumer is the usage ledger write the proxy performs after a successful
// upstream call.
type Consumer interface {
	Consume(ctx context.Context, userID uuid.UUID, params usage.ConsumeParams) (*usage.MonthlyUsage, error)
}

// BonusConsumer burns one search from the user's active bonus grants once
// the plan ledger is spent.
type BonusConsumer interface {
	Consume(ctx context.Context, userID uuid.UUID) (*bonus.Grant, error)
}

// Upstream is the analysis API client.
type Upstream interface {
	ChatCompletion(ctx context.Context, body []byte) (*ProxyResult, error)
}

// Service implements the analysis endpoints.
type Service struct {
	gate       Gate
	consumer   Consumer
	bonuses    BonusConsumer
	upstream   Upstream
	cache      Cache
	apiKey     string
	sessionMgr *session.Manager
	log        *slog.Logger
}

// NewService creates the analysis service. Panics on nil dependencies to
// fail fast during initialization.
func NewService(cfg GrokConfig, gate Gate, consumer Consumer, bonuses BonusConsumer, upstream Upstream, cache Cache, sessionMgr *session.Manager, log *slog.Logger) *Service {
	if gate == nil {
		panic("analysis: access gate is required")
	}
	if consumer == nil {
		panic("analysis: usage consumer is required")
	}
	if bonuses == nil {
		panic("analysis: bonus consumer is required")
	}
	if upstream == nil {
		panic("analysis: upstream client is required")
	}
	if cache == nil {
		panic("analysis: cache is required")
	}
	if sessionMgr == nil {
		panic("analysis: session manager is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Service{
		gate:       gate,
		consumer:   consumer,
		bonuses:    bonuses,
		upstream:   upstream,
		cache:      cache,
		apiKey:     cfg.APIKey,
		sessionMgr: sessionMgr,
		log:        log,
	}
}

// Handle returns the module router. All routes require a session and pass
// the access gate.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

// Register attaches the module routes to the given router.
func (s *Service) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(s.sessionMgr.RequireAuth)
		r.Get("/check-cache", s.checkCache)
		r.Get("/grok-key", s.grokKey)
		r.Post("/grok-proxy", s.grokProxy)
	})
}

// requireAccess runs the gate for the session user. Any gate failure denies.
func (s *Service) requireAccess(w http.ResponseWriter, r *http.Request) (uuid.UUID, access.Decision, bool) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, httpx.ErrUnauthorized)
		return uuid.Nil, access.Decision{}, false
	}

	decision, err := s.gate.Check(r.Context(), userID)
	if err != nil {
		s.log.ErrorContext(r.Context(), "access check failed",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
		httpx.Error(w, httpx.ErrForbidden)
		return uuid.Nil, access.Decision{}, false
	}
	if !decision.Allowed {
		httpx.Error(w, errors.Join(httpx.ErrForbidden, errors.New(decision.Reason)))
		return uuid.Nil, access.Decision{}, false
	}

	return userID, decision, true
}

func (s *Service) checkCache(w http.ResponseWriter, r *http.Request) {
	_, _, ok := s.requireAccess(w, r)
	if !ok {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		verr := httpx.NewValidationError()
		verr.Add("q", "query is required")
		httpx.Error(w, verr)
		return
	}

	cached, hit, err := s.cache.Get(r.Context(), query)
	if err != nil {
		s.log.ErrorContext(r.Context(), "cache lookup failed", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	if !hit {
		httpx.JSON(w, http.StatusOK, map[string]any{"cached": false})
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"cached": true,
		"result": json.RawMessage(cached),
	})
}

func (s *Service) grokKey(w http.ResponseWriter, r *http.Request) {
	_, decision, ok := s.requireAccess(w, r)
	if !ok {
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"api_key":   s.apiKey,
		"remaining": decision.Remaining,
	})
}

type proxyRequest struct {
	Query   string          `json:"query"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Service) grokProxy(w http.ResponseWriter, r *http.Request) {
	userID, decision, ok := s.requireAccess(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	var req proxyRequest
	if err := json.Unmarshal(body, &req); err != nil || len(req.Payload) == 0 {
		verr := httpx.NewValidationError()
		verr.Add("payload", "payload is required")
		httpx.Error(w, verr)
		return
	}

	// Cache hits are free, they do not burn a search.
	if req.Query != "" {
		if cached, hit, err := s.cache.Get(r.Context(), req.Query); err == nil && hit {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
	}

	result, err := s.upstream.ChatCompletion(r.Context(), req.Payload)
	if err != nil {
		s.log.ErrorContext(r.Context(), "upstream call failed", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	// Only successful upstream answers count against the quota, and only
	// successful answers are worth caching.
	if result.StatusCode == http.StatusOK {
		if err := s.consumeSearch(r.Context(), userID, decision); err != nil {
			if errors.Is(err, usage.ErrQuotaExhausted) || errors.Is(err, bonus.ErrGrantNotFound) {
				// Lost the race to the last search.
				httpx.Error(w, httpx.ErrForbidden)
				return
			}
			s.log.ErrorContext(r.Context(), "failed to consume search", slog.Any("error", err))
			httpx.Error(w, err)
			return
		}
		if req.Query != "" {
			if err := s.cache.Set(r.Context(), req.Query, result.Body); err != nil {
				s.log.WarnContext(r.Context(), "failed to cache result", slog.Any("error", err))
			}
		}
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(result.StatusCode)
	_, _ = w.Write(result.Body)
}

// consumeSearch charges a completed search. Plan-funded decisions hit the
// ledger first and fall back to a bonus grant when the plan quota is spent;
// bonus-only decisions go straight to the grant.
func (s *Service) consumeSearch(ctx context.Context, userID uuid.UUID, decision access.Decision) error {
	if !decision.BonusOnly {
		_, err := s.consumer.Consume(ctx, userID, decision.ConsumeParams)
		if err == nil || !errors.Is(err, usage.ErrQuotaExhausted) {
			return err
		}
	}
	_, err := s.bonuses.Consume(ctx, userID)
	return err
}
