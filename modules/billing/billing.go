// Package billing exposes the payment endpoints: checkout, user-initiated
// subscription mutations, the provider webhook, and the trial-sweep cron
// entry point.
package billing

import (
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/appideasfinder/backend/pkg/clientip"
	"github.com/appideasfinder/backend/pkg/httpx"
	"github.com/appideasfinder/backend/pkg/session"
	"github.com/appideasfinder/backend/pkg/subscription"
)

// Config holds billing module settings.
type Config struct {
	// CronSecret protects the sweep endpoint. Empty disables the check,
	// for local development only.
	CronSecret string `env:"CRON_SECRET"`
	// CheckoutSuccessURL is where the provider redirects after payment.
	CheckoutSuccessURL string `env:"CHECKOUT_SUCCESS_URL,required"`
	// CheckoutCancelURL is where the provider redirects on abandonment.
	CheckoutCancelURL string `env:"CHECKOUT_CANCEL_URL"`
}

// Service implements the billing endpoints on top of the subscription
// service.
type Service struct {
	cfg        Config
	subs       subscription.Service
	sessionMgr *session.Manager
	log        *slog.Logger
}

// NewService creates the billing service. Panics on nil dependencies to
// fail fast during initialization.
func NewService(cfg Config, subs subscription.Service, sessionMgr *session.Manager, log *slog.Logger) *Service {
	if subs == nil {
		panic("billing: subscription service is required")
	}
	if sessionMgr == nil {
		panic("billing: session manager is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Service{cfg: cfg, subs: subs, sessionMgr: sessionMgr, log: log}
}

// Handle returns the module router. The webhook and cron endpoints carry
// their own authentication; the rest require a session.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/webhook", s.webhook)
	r.Get("/cron/convert-trials", s.convertTrials)

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMgr.RequireAuth)
		r.Get("/subscription", s.getSubscription)
		r.Get("/plans", s.listPlans)
		r.Post("/checkout", s.checkout)
		r.Post("/cancel-subscription", s.cancelSubscription)
		r.Post("/change-plan", s.changePlan)
	})

	return r
}

func (s *Service) getSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, httpx.ErrUnauthorized)
		return
	}

	// A lapsed trial converts or expires on read so the client never sees
	// a trial past its window. The batch sweep stays the backstop when the
	// conversion attempt fails here.
	if err := s.subs.CheckTrial(r.Context(), userID); err != nil &&
		!errors.Is(err, subscription.ErrSubscriptionNotFound) {
		s.log.WarnContext(r.Context(), "trial check failed",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
	}

	sub, err := s.subs.GetSubscription(r.Context(), userID)
	if err != nil {
		if err == subscription.ErrSubscriptionNotFound {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		s.log.ErrorContext(r.Context(), "failed to load subscription", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, subscriptionResponse(sub))
}

func (s *Service) listPlans(w http.ResponseWriter, r *http.Request) {
	plans := s.subs.Plans()

	out := make([]planResponse, 0, len(plans))
	for _, plan := range plans {
		out = append(out, planResponse{
			ID:               string(plan.ID),
			Name:             plan.Name,
			SearchesPerMonth: plan.SearchesPerMonth,
			PriceAmount:      plan.Price.Amount,
			PriceCurrency:    plan.Price.Currency,
			Interval:         string(plan.Interval),
		})
	}

	httpx.JSON(w, http.StatusOK, out)
}

type checkoutPayload struct {
	PlanID string `json:"plan_id"`
	Email  string `json:"email"`
}

func (s *Service) checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, httpx.ErrUnauthorized)
		return
	}

	var payload checkoutPayload
	if err := httpx.Decode(r, &payload); err != nil {
		httpx.Error(w, err)
		return
	}
	if payload.PlanID == "" {
		verr := httpx.NewValidationError()
		verr.Add("plan_id", "plan_id is required")
		httpx.Error(w, verr)
		return
	}

	link, err := s.subs.CreateCheckoutLink(r.Context(), userID,
		subscription.PlanID(payload.PlanID), subscription.CheckoutOptions{
			Email:      payload.Email,
			SuccessURL: s.cfg.CheckoutSuccessURL,
			CancelURL:  s.cfg.CheckoutCancelURL,
		})
	if err != nil {
		switch err {
		case subscription.ErrPlanNotFound:
			httpx.Error(w, httpx.ErrNotFound)
		case subscription.ErrSubscriptionAlreadyExists:
			httpx.Error(w, httpx.ErrConflict)
		default:
			s.log.ErrorContext(r.Context(), "checkout failed", slog.Any("error", err))
			httpx.Error(w, err)
		}
		return
	}

	httpx.JSON(w, http.StatusCreated, map[string]string{"checkout_url": link.URL})
}

func (s *Service) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, httpx.ErrUnauthorized)
		return
	}

	if err := s.subs.Cancel(r.Context(), userID); err != nil {
		switch err {
		case subscription.ErrSubscriptionNotFound:
			httpx.Error(w, httpx.ErrNotFound)
		case subscription.ErrSubscriptionNotActive:
			httpx.Error(w, httpx.ErrConflict)
		default:
			s.log.ErrorContext(r.Context(), "cancel failed", slog.Any("error", err))
			httpx.Error(w, err)
		}
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type changePlanPayload struct {
	PlanID string `json:"plan_id"`
}

func (s *Service) changePlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, httpx.ErrUnauthorized)
		return
	}

	var payload changePlanPayload
	if err := httpx.Decode(r, &payload); err != nil {
		httpx.Error(w, err)
		return
	}
	if payload.PlanID == "" {
		verr := httpx.NewValidationError()
		verr.Add("plan_id", "plan_id is required")
		httpx.Error(w, verr)
		return
	}

	sub, err := s.subs.ChangePlan(r.Context(), userID, subscription.PlanID(payload.PlanID))
	if err != nil {
		switch err {
		case subscription.ErrPlanNotFound, subscription.ErrSubscriptionNotFound:
			httpx.Error(w, httpx.ErrNotFound)
		case subscription.ErrSubscriptionNotActive, subscription.ErrMissingPriceID:
			httpx.Error(w, httpx.ErrConflict)
		default:
			s.log.ErrorContext(r.Context(), "plan change failed", slog.Any("error", err))
			httpx.Error(w, err)
		}
		return
	}

	httpx.JSON(w, http.StatusOK, subscriptionResponse(sub))
}

func (s *Service) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	signature := r.Header.Get("Paddle-Signature")
	if err := s.subs.HandleWebhook(r.Context(), payload, signature); err != nil {
		if errors.Is(err, subscription.ErrWebhookVerificationFailed) {
			s.log.WarnContext(r.Context(), "webhook signature rejected",
				slog.String("client_ip", clientip.GetIP(r)))
			httpx.Error(w, httpx.ErrUnauthorized)
			return
		}
		s.log.ErrorContext(r.Context(), "webhook processing failed", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Service) convertTrials(w http.ResponseWriter, r *http.Request) {
	if s.cfg.CronSecret != "" {
		auth := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(auth), []byte(s.cfg.CronSecret)) != 1 {
			httpx.Error(w, httpx.ErrUnauthorized)
			return
		}
	}

	result, err := s.subs.ConvertDueTrials(r.Context(), time.Now().UTC())
	if err != nil {
		s.log.ErrorContext(r.Context(), "trial sweep failed", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, result)
}

type planResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	SearchesPerMonth int    `json:"searches_per_month"`
	PriceAmount      int64  `json:"price_amount"`
	PriceCurrency    string `json:"price_currency"`
	Interval         string `json:"interval"`
}

type subscriptionView struct {
	PlanID      string     `json:"plan_id"`
	Status      string     `json:"status"`
	TrialEndsAt *time.Time `json:"trial_ends_at,omitempty"`
	PeriodStart time.Time  `json:"period_start"`
	PeriodEnd   time.Time  `json:"period_end"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

func subscriptionResponse(sub *subscription.Subscription) subscriptionView {
	return subscriptionView{
		PlanID:      string(sub.PlanID),
		Status:      string(sub.Status),
		TrialEndsAt: sub.TrialEndsAt,
		PeriodStart: sub.PeriodStart,
		PeriodEnd:   sub.PeriodEnd,
		CancelledAt: sub.CancelledAt,
	}
}
