package account

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/appideasfinder/backend/pkg/bonus"
	"github.com/appideasfinder/backend/pkg/email"
	"github.com/appideasfinder/backend/pkg/httpx"
	"github.com/appideasfinder/backend/pkg/session"
	"github.com/appideasfinder/backend/pkg/token"
)

// Config holds account module settings.
type Config struct {
	// TokenSecret signs unsubscribe tokens embedded in campaign email.
	TokenSecret string `env:"EMAIL_TOKEN_SECRET,required"`
	// AdminAlertEmail receives a notification for every feedback
	// submission.
	AdminAlertEmail string `env:"ADMIN_ALERT_EMAIL,required"`
}

// Rewarder is the slice of the bonus service the feedback path needs.
type Rewarder interface {
	FeedbackReward(ctx context.Context, userID uuid.UUID) (*bonus.Grant, error)
}

// Service implements the account endpoints.
type Service struct {
	cfg        Config
	store      Store
	rewarder   Rewarder
	mailer     email.EmailSender
	sessionMgr *session.Manager
	log        *slog.Logger
}

// NewService creates the account service. Panics on nil dependencies to
// fail fast during initialization.
func NewService(cfg Config, store Store, rewarder Rewarder, mailer email.EmailSender, sessionMgr *session.Manager, log *slog.Logger) *Service {
	if store == nil {
		panic("account: Store is required")
	}
	if rewarder == nil {
		panic("account: Rewarder is required")
	}
	if mailer == nil {
		panic("account: EmailSender is required")
	}
	if sessionMgr == nil {
		panic("account: session manager is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Service{
		cfg:        cfg,
		store:      store,
		rewarder:   rewarder,
		mailer:     mailer,
		sessionMgr: sessionMgr,
		log:        log,
	}
}

// Handle returns the module router. Unsubscribe is public; everything else
// requires an authenticated session.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

// Register attaches the module routes to the given router.
func (s *Service) Register(r chi.Router) {
	r.Post("/unsubscribe", s.unsubscribe)

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMgr.RequireAuth)
		r.Get("/account/deletion-request", s.getDeletionRequest)
		r.Post("/account/deletion-request", s.createDeletionRequest)
		r.Post("/feedback", s.submitFeedback)
	})
}

func (s *Service) getDeletionRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, httpx.ErrUnauthorized)
		return
	}

	req, err := s.store.GetDeletionRequest(r.Context(), userID)
	if err != nil {
		if err == ErrDeletionRequestNotFound {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		s.log.ErrorContext(r.Context(), "failed to load deletion request", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, req)
}

type deletionRequestPayload struct {
	Reason string `json:"reason"`
}

func (s *Service) createDeletionRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, httpx.ErrUnauthorized)
		return
	}

	var payload deletionRequestPayload
	if err := httpx.Decode(r, &payload); err != nil {
		httpx.Error(w, err)
		return
	}

	now := time.Now().UTC()
	req := &DeletionRequest{
		ID:        uuid.New(),
		UserID:    userID,
		Reason:    strings.TrimSpace(payload.Reason),
		Status:    DeletionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateDeletionRequest(r.Context(), req); err != nil {
		if err == ErrDeletionRequestExists {
			httpx.Error(w, httpx.ErrConflict)
			return
		}
		s.log.ErrorContext(r.Context(), "failed to create deletion request", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, req)
}

type feedbackPayload struct {
	Message string `json:"message"`
}

func (s *Service) submitFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, httpx.ErrUnauthorized)
		return
	}

	var payload feedbackPayload
	if err := httpx.Decode(r, &payload); err != nil {
		httpx.Error(w, err)
		return
	}

	message := strings.TrimSpace(payload.Message)
	if message == "" {
		verr := httpx.NewValidationError()
		verr.Add("message", "message is required")
		httpx.Error(w, verr)
		return
	}

	fb := &Feedback{
		ID:        uuid.New(),
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateFeedback(r.Context(), fb); err != nil {
		s.log.ErrorContext(r.Context(), "failed to store feedback", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	grant, err := s.rewarder.FeedbackReward(r.Context(), userID)
	if err != nil {
		// Feedback is saved; a missed reward is recoverable by support.
		s.log.ErrorContext(r.Context(), "failed to award feedback bonus",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
	}

	s.notifyAdmins(r.Context(), fb)

	resp := map[string]any{"feedback": fb}
	if grant != nil {
		resp["bonus_value"] = grant.Value
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

// notifyAdmins emails the support inbox about new feedback. Best effort,
// failures are logged only.
func (s *Service) notifyAdmins(ctx context.Context, fb *Feedback) {
	err := s.mailer.SendEmail(ctx, email.SendEmailParams{
		SendTo:   s.cfg.AdminAlertEmail,
		Subject:  "New feedback submitted",
		BodyHTML: fmt.Sprintf("<p>User %s wrote:</p><blockquote>%s</blockquote>", fb.UserID, html.EscapeString(fb.Message)),
		Tag:      "feedback-alert",
	})
	if err != nil {
		s.log.ErrorContext(ctx, "failed to send feedback alert", slog.Any("error", err))
	}
}

// UnsubscribeToken is the signed payload embedded in campaign email links.
type UnsubscribeToken struct {
	Email string `json:"e"`
}

type unsubscribePayload struct {
	Token string `json:"token"`
}

func (s *Service) unsubscribe(w http.ResponseWriter, r *http.Request) {
	var payload unsubscribePayload
	if err := httpx.Decode(r, &payload); err != nil {
		httpx.Error(w, err)
		return
	}

	claim, err := token.Parse[UnsubscribeToken](payload.Token, s.cfg.TokenSecret)
	if err != nil || claim.Email == "" {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	if err := s.store.CreateUnsubscribe(r.Context(), claim.Email); err != nil {
		s.log.ErrorContext(r.Context(), "failed to record unsubscribe", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}
