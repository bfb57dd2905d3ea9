package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/appideasfinder/backend/modules/account"
	"github.com/appideasfinder/backend/pkg/bonus"
	"github.com/appideasfinder/backend/pkg/clientip"
	"github.com/appideasfinder/backend/pkg/email"
	"github.com/appideasfinder/backend/pkg/httpx"
	"github.com/appideasfinder/backend/pkg/rbac"
	"github.com/appideasfinder/backend/pkg/session"
	"github.com/appideasfinder/backend/pkg/token"
)

// Config holds admin module settings.
type Config struct {
	// TokenSecret signs per-recipient tracking tokens and unsubscribe
	// tokens. Must match the account module secret so unsubscribe links
	// from campaign email resolve there.
	TokenSecret string `env:"EMAIL_TOKEN_SECRET,required"`
	// PublicBaseURL is the externally reachable origin used to build
	// tracking and unsubscribe URLs, e.g. https://appideasfinder.com.
	PublicBaseURL string `env:"PUBLIC_BASE_URL,required"`
}

// Granter is the slice of the bonus service the admin grant endpoint needs.
type Granter interface {
	Award(ctx context.Context, params bonus.AwardParams) (*bonus.Grant, error)
}

// OptOutChecker reports whether an address has unsubscribed from campaign
// email. Satisfied by the account store.
type OptOutChecker interface {
	IsUnsubscribed(ctx context.Context, email string) (bool, error)
}

// Service implements the admin dashboard endpoints.
type Service struct {
	cfg        Config
	store      Store
	campaigns  CampaignStore
	granter    Granter
	optOuts    OptOutChecker
	mailer     email.EmailSender
	sessionMgr *session.Manager
	authorizer *rbac.Authorizer
	log        *slog.Logger
	now        func() time.Time
}

// NewService creates the admin service. Panics on nil dependencies to fail
// fast during initialization.
func NewService(cfg Config, store Store, campaigns CampaignStore, granter Granter, optOuts OptOutChecker, mailer email.EmailSender, sessionMgr *session.Manager, log *slog.Logger) *Service {
	if store == nil {
		panic("admin: Store is required")
	}
	if campaigns == nil {
		panic("admin: CampaignStore is required")
	}
	if granter == nil {
		panic("admin: Granter is required")
	}
	if optOuts == nil {
		panic("admin: OptOutChecker is required")
	}
	if mailer == nil {
		panic("admin: EmailSender is required")
	}
	if sessionMgr == nil {
		panic("admin: session manager is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Service{
		cfg:        cfg,
		store:      store,
		campaigns:  campaigns,
		granter:    granter,
		optOuts:    optOuts,
		mailer:     mailer,
		sessionMgr: sessionMgr,
		authorizer: rbac.NewAuthorizer(),
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Handle returns the module router. Tracking endpoints are public because
// email clients hit them without a session; everything else requires an
// authenticated staff member.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

// Register attaches the module routes to the given router.
func (s *Service) Register(r chi.Router) {
	r.Get("/admin/email/track-open", s.trackOpen)
	r.Get("/admin/email/track-click", s.trackClick)

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMgr.RequireAuth, s.resolveRole)

		r.With(s.requirePermission(rbac.PermStatsRead)).Get("/admin/stats", s.getStats)
		r.With(s.requirePermission(rbac.PermUsersRead)).Get("/admin/users", s.listUsers)
		r.With(s.requirePermission(rbac.PermWaitlistRead)).Get("/admin/waitlist", s.listWaitlist)
		r.With(s.requirePermission(rbac.PermBonusesGrant)).Post("/admin/bonuses", s.grantBonus)

		r.Route("/admin/coupons", func(r chi.Router) {
			r.Use(s.requirePermission(rbac.PermCouponsWrite))
			r.Get("/", s.listCoupons)
			r.Post("/", s.createCoupon)
			r.Delete("/{id}", s.deleteCoupon)
		})

		r.With(s.requirePermission(rbac.PermDeletionRequestsRead)).
			Get("/admin/deletion-requests", s.listDeletionRequests)
		r.With(s.requirePermission(rbac.PermDeletionRequestsWrite)).
			Patch("/admin/deletion-requests/{id}", s.updateDeletionRequest)

		r.Route("/admin/email", func(r chi.Router) {
			r.Use(s.requirePermission(rbac.PermEmailManage))
			r.Get("/templates", s.listTemplates)
			r.Post("/templates", s.createTemplate)
			r.Patch("/templates/{id}", s.updateTemplate)
			r.Delete("/templates/{id}", s.deleteTemplate)
			r.Get("/campaigns", s.listCampaigns)
			r.Post("/campaigns", s.createCampaign)
			r.Get("/campaigns/{id}", s.getCampaign)
			r.Patch("/campaigns/{id}", s.updateCampaign)
			r.Delete("/campaigns/{id}", s.deleteCampaign)
			r.Post("/campaigns/{id}/send", s.sendCampaign)
			r.Post("/campaigns/{id}/recipients", s.addRecipients)
			r.Delete("/campaigns/{id}/recipients/{rid}", s.deleteRecipient)
			r.Get("/settings", s.getSettings)
			r.Patch("/settings", s.updateSettings)
		})
	})
}

func (s *Service) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to load stats", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (s *Service) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	users, err := s.store.ListUsers(r.Context(), limit, offset)
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to list users", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (s *Service) listWaitlist(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListWaitlist(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to list waitlist", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

type grantBonusPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	Type     string    `json:"type"`
	Value    int       `json:"value"`
	Duration string    `json:"duration"`
	Reason   string    `json:"reason"`
}

func (s *Service) grantBonus(w http.ResponseWriter, r *http.Request) {
	adminID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, httpx.ErrUnauthorized)
		return
	}

	var payload grantBonusPayload
	if err := httpx.Decode(r, &payload); err != nil {
		httpx.Error(w, err)
		return
	}

	grant, err := s.granter.Award(r.Context(), bonus.AwardParams{
		UserID:    payload.UserID,
		Type:      bonus.Type(payload.Type),
		Value:     payload.Value,
		Duration:  bonus.Duration(payload.Duration),
		Reason:    strings.TrimSpace(payload.Reason),
		GrantedBy: &adminID,
	})
	if err != nil {
		switch {
		case errors.Is(err, bonus.ErrMissingUserID),
			errors.Is(err, bonus.ErrInvalidType),
			errors.Is(err, bonus.ErrInvalidDuration),
			errors.Is(err, bonus.ErrInvalidValue):
			verr := httpx.NewValidationError()
			verr.Add("grant", err.Error())
			httpx.Error(w, verr)
		default:
			s.log.ErrorContext(r.Context(), "failed to award bonus", slog.Any("error", err))
			httpx.Error(w, err)
		}
		return
	}

	httpx.JSON(w, http.StatusCreated, grant)
}

func (s *Service) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := s.store.ListCoupons(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to list coupons", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, coupons)
}

type createCouponPayload struct {
	Code            string     `json:"code"`
	DiscountPercent int        `json:"discount_percent"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

func (s *Service) createCoupon(w http.ResponseWriter, r *http.Request) {
	var payload createCouponPayload
	if err := httpx.Decode(r, &payload); err != nil {
		httpx.Error(w, err)
		return
	}

	verr := httpx.NewValidationError()
	code := strings.ToUpper(strings.TrimSpace(payload.Code))
	if code == "" {
		verr.Add("code", "code is required")
	}
	if payload.DiscountPercent < 1 || payload.DiscountPercent > 100 {
		verr.Add("discount_percent", "discount must be between 1 and 100")
	}
	if verr.Has() {
		httpx.Error(w, verr)
		return
	}

	coupon := &Coupon{
		ID:              uuid.New(),
		Code:            code,
		DiscountPercent: payload.DiscountPercent,
		Active:          true,
		ExpiresAt:       payload.ExpiresAt,
		CreatedAt:       s.now(),
	}
	if err := s.store.CreateCoupon(r.Context(), coupon); err != nil {
		if errors.Is(err, ErrCouponCodeTaken) {
			httpx.Error(w, httpx.ErrConflict)
			return
		}
		s.log.ErrorContext(r.Context(), "failed to create coupon", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, coupon)
}

func (s *Service) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	if err := s.store.DeleteCoupon(r.Context(), id); err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		s.log.ErrorContext(r.Context(), "failed to delete coupon", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Service) listDeletionRequests(w http.ResponseWriter, r *http.Request) {
	status := account.DeletionRequestStatus(r.URL.Query().Get("status"))
	if status != "" && !account.ValidDeletionStatus(status) {
		verr := httpx.NewValidationError()
		verr.Add("status", "unknown status")
		httpx.Error(w, verr)
		return
	}

	requests, err := s.store.ListDeletionRequests(r.Context(), status)
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to list deletion requests", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, requests)
}

type updateDeletionPayload struct {
	Status account.DeletionRequestStatus `json:"status"`
}

func (s *Service) updateDeletionRequest(w http.ResponseWriter, r *http.Request) {
	adminID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, httpx.ErrUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	var payload updateDeletionPayload
	if err := httpx.Decode(r, &payload); err != nil {
		httpx.Error(w, err)
		return
	}
	if !account.ValidDeletionStatus(payload.Status) {
		verr := httpx.NewValidationError()
		verr.Add("status", "unknown status")
		httpx.Error(w, verr)
		return
	}

	req, err := s.store.UpdateDeletionRequestStatus(r.Context(), id, payload.Status, adminID)
	if err != nil {
		if errors.Is(err, ErrDeletionRequestNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		s.log.ErrorContext(r.Context(), "failed to update deletion request", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, req)
}

func (s *Service) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.campaigns.ListTemplates(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to list templates", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, templates)
}

type createTemplatePayload struct {
	Name     string `json:"name"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
}

func (s *Service) createTemplate(w http.ResponseWriter, r *http.Request) {
	var payload createTemplatePayload
	if err := httpx.Decode(r, &payload); err != nil {
		httpx.Error(w, err)
		return
	}

	verr := httpx.NewValidationError()
	if strings.TrimSpace(payload.Name) == "" {
		verr.Add("name", "name is required")
	}
	if strings.TrimSpace(payload.Subject) == "" {
		verr.Add("subject", "subject is required")
	}
	if strings.TrimSpace(payload.BodyHTML) == "" {
		verr.Add("body_html", "body is required")
	}
	if verr.Has() {
		httpx.Error(w, verr)
		return
	}

	now := s.now()
	tpl := &Template{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(payload.Name),
		Subject:   payload.Subject,
		BodyHTML:  payload.BodyHTML,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.campaigns.CreateTemplate(r.Context(), tpl); err != nil {
		s.log.ErrorContext(r.Context(), "failed to create template", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, tpl)
}

type updateTemplatePayload struct {
	Name     *string `json:"name"`
	Subject  *string `json:"subject"`
	BodyHTML *string `json:"body_html"`
}

func (s *Service) updateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	var payload updateTemplatePayload
	if err := httpx.Decode(r, &payload); err != nil {
		httpx.Error(w, err)
		return
	}

	tpl, err := s.campaigns.GetTemplate(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		httpx.Error(w, err)
		return
	}

	verr := httpx.NewValidationError()
	if payload.Name != nil {
		if strings.TrimSpace(*payload.Name) == "" {
			verr.Add("name", "name cannot be empty")
		} else {
			tpl.Name = strings.TrimSpace(*payload.Name)
		}
	}
	if payload.Subject != nil {
		if strings.TrimSpace(*payload.Subject) == "" {
			verr.Add("subject", "subject cannot be empty")
		} else {
			tpl.Subject = *payload.Subject
		}
	}
	if payload.BodyHTML != nil {
		if strings.TrimSpace(*payload.BodyHTML) == "" {
			verr.Add("body_html", "body cannot be empty")
		} else {
			tpl.BodyHTML = *payload.BodyHTML
		}
	}
	if verr.Has() {
		httpx.Error(w, verr)
		return
	}

	tpl.UpdatedAt = s.now()
	if err := s.campaigns.UpdateTemplate(r.Context(), tpl); err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		s.log.ErrorContext(r.Context(), "failed to update template", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, tpl)
}

func (s *Service) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	if err := s.campaigns.DeleteTemplate(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrTemplateNotFound):
			httpx.Error(w, httpx.ErrNotFound)
		case errors.Is(err, ErrTemplateInUse):
			httpx.Error(w, httpx.ErrConflict)
		default:
			s.log.ErrorContext(r.Context(), "failed to delete template", slog.Any("error", err))
			httpx.Error(w, err)
		}
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Service) listCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.campaigns.ListCampaigns(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to list campaigns", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, campaigns)
}

type createCampaignPayload struct {
	Name       string    `json:"name"`
	TemplateID uuid.UUID `json:"template_id"`
	Recipients []string  `json:"recipients"`
}

func (s *Service) createCampaign(w http.ResponseWriter, r *http.Request) {
	var payload createCampaignPayload
	if err := httpx.Decode(r, &payload); err != nil {
		httpx.Error(w, err)
		return
	}

	verr := httpx.NewValidationError()
	if strings.TrimSpace(payload.Name) == "" {
		verr.Add("name", "name is required")
	}
	if len(payload.Recipients) == 0 {
		verr.Add("recipients", "at least one recipient is required")
	}
	if verr.Has() {
		httpx.Error(w, verr)
		return
	}

	if _, err := s.campaigns.GetTemplate(r.Context(), payload.TemplateID); err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			verr := httpx.NewValidationError()
			verr.Add("template_id", "unknown template")
			httpx.Error(w, verr)
			return
		}
		httpx.Error(w, err)
		return
	}

	now := s.now()
	campaign := &Campaign{
		ID:         uuid.New(),
		TemplateID: payload.TemplateID,
		Name:       strings.TrimSpace(payload.Name),
		Status:     CampaignDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	seen := make(map[string]bool, len(payload.Recipients))
	var recipients []*Recipient
	for _, addr := range payload.Recipients {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		recipients = append(recipients, &Recipient{
			ID:         uuid.New(),
			CampaignID: campaign.ID,
			Email:      addr,
		})
	}

	if err := s.campaigns.CreateCampaign(r.Context(), campaign, recipients); err != nil {
		s.log.ErrorContext(r.Context(), "failed to create campaign", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, campaign)
}

type campaignDetail struct {
	Campaign   *Campaign    `json:"campaign"`
	Recipients []*Recipient `json:"recipients"`
}

func (s *Service) getCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	campaign, err := s.campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCampaignNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		httpx.Error(w, err)
		return
	}

	recipients, err := s.campaigns.ListRecipients(r.Context(), id)
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to list recipients", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, campaignDetail{Campaign: campaign, Recipients: recipients})
}

type updateCampaignPayload struct {
	Name       *string    `json:"name"`
	TemplateID *uuid.UUID `json:"template_id"`
}

func (s *Service) updateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	var payload updateCampaignPayload
	if err := httpx.Decode(r, &payload); err != nil {
		httpx.Error(w, err)
		return
	}

	campaign, err := s.campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCampaignNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		httpx.Error(w, err)
		return
	}

	if payload.Name != nil {
		if strings.TrimSpace(*payload.Name) == "" {
			verr := httpx.NewValidationError()
			verr.Add("name", "name cannot be empty")
			httpx.Error(w, verr)
			return
		}
		campaign.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.TemplateID != nil {
		if _, err := s.campaigns.GetTemplate(r.Context(), *payload.TemplateID); err != nil {
			if errors.Is(err, ErrTemplateNotFound) {
				verr := httpx.NewValidationError()
				verr.Add("template_id", "unknown template")
				httpx.Error(w, verr)
				return
			}
			httpx.Error(w, err)
			return
		}
		campaign.TemplateID = *payload.TemplateID
	}

	campaign.UpdatedAt = s.now()
	if err := s.campaigns.UpdateCampaign(r.Context(), campaign); err != nil {
		switch {
		case errors.Is(err, ErrCampaignNotFound):
			httpx.Error(w, httpx.ErrNotFound)
		case errors.Is(err, ErrCampaignNotDraft):
			httpx.Error(w, httpx.ErrConflict)
		default:
			s.log.ErrorContext(r.Context(), "failed to update campaign", slog.Any("error", err))
			httpx.Error(w, err)
		}
		return
	}

	httpx.JSON(w, http.StatusOK, campaign)
}

func (s *Service) deleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	if err := s.campaigns.DeleteCampaign(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrCampaignNotFound):
			httpx.Error(w, httpx.ErrNotFound)
		case errors.Is(err, ErrCampaignNotDraft):
			httpx.Error(w, httpx.ErrConflict)
		default:
			s.log.ErrorContext(r.Context(), "failed to delete campaign", slog.Any("error", err))
			httpx.Error(w, err)
		}
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type addRecipientsPayload struct {
	Emails []string `json:"emails"`
}

func (s *Service) addRecipients(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	var payload addRecipientsPayload
	if err := httpx.Decode(r, &payload); err != nil {
		httpx.Error(w, err)
		return
	}

	seen := make(map[string]bool, len(payload.Emails))
	var recipients []*Recipient
	for _, addr := range payload.Emails {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		recipients = append(recipients, &Recipient{
			ID:         uuid.New(),
			CampaignID: id,
			Email:      addr,
		})
	}
	if len(recipients) == 0 {
		verr := httpx.NewValidationError()
		verr.Add("emails", "at least one address is required")
		httpx.Error(w, verr)
		return
	}

	if err := s.campaigns.AddRecipients(r.Context(), id, recipients); err != nil {
		switch {
		case errors.Is(err, ErrCampaignNotFound):
			httpx.Error(w, httpx.ErrNotFound)
		case errors.Is(err, ErrCampaignNotDraft):
			httpx.Error(w, httpx.ErrConflict)
		default:
			s.log.ErrorContext(r.Context(), "failed to add recipients", slog.Any("error", err))
			httpx.Error(w, err)
		}
		return
	}

	all, err := s.campaigns.ListRecipients(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, all)
}

func (s *Service) deleteRecipient(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}
	rid, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	if err := s.campaigns.DeleteRecipient(r.Context(), id, rid); err != nil {
		switch {
		case errors.Is(err, ErrCampaignNotFound), errors.Is(err, ErrRecipientNotFound):
			httpx.Error(w, httpx.ErrNotFound)
		case errors.Is(err, ErrCampaignNotDraft):
			httpx.Error(w, httpx.ErrConflict)
		default:
			s.log.ErrorContext(r.Context(), "failed to delete recipient", slog.Any("error", err))
			httpx.Error(w, err)
		}
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Service) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.campaigns.GetSettings(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to load email settings", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

type updateSettingsPayload struct {
	FromName  *string `json:"from_name"`
	FromEmail *string `json:"from_email"`
	ReplyTo   *string `json:"reply_to"`
}

func (s *Service) updateSettings(w http.ResponseWriter, r *http.Request) {
	var payload updateSettingsPayload
	if err := httpx.Decode(r, &payload); err != nil {
		httpx.Error(w, err)
		return
	}

	settings, err := s.campaigns.GetSettings(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}

	verr := httpx.NewValidationError()
	if payload.FromName != nil {
		settings.FromName = strings.TrimSpace(*payload.FromName)
	}
	if payload.FromEmail != nil {
		addr := strings.ToLower(strings.TrimSpace(*payload.FromEmail))
		if addr != "" && !email.ValidAddress(addr) {
			verr.Add("from_email", "must be a valid email address")
		}
		settings.FromEmail = addr
	}
	if payload.ReplyTo != nil {
		addr := strings.ToLower(strings.TrimSpace(*payload.ReplyTo))
		if addr != "" && !email.ValidAddress(addr) {
			verr.Add("reply_to", "must be a valid email address")
		}
		settings.ReplyTo = addr
	}
	if verr.Has() {
		httpx.Error(w, verr)
		return
	}

	settings.UpdatedAt = s.now()
	if err := s.campaigns.UpdateSettings(r.Context(), settings); err != nil {
		s.log.ErrorContext(r.Context(), "failed to update email settings", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, settings)
}

// TrackToken is the signed payload embedded in tracking URLs.
type TrackToken struct {
	RecipientID uuid.UUID `json:"r"`
}

type sendResult struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (s *Service) sendCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	campaign, err := s.campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCampaignNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		httpx.Error(w, err)
		return
	}

	tpl, err := s.campaigns.GetTemplate(r.Context(), campaign.TemplateID)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	recipients, err := s.campaigns.ListRecipients(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	// The draft-to-sent transition is the send guard; claiming it before
	// delivery prevents a concurrent double send.
	if err := s.campaigns.MarkCampaignSent(r.Context(), id, s.now()); err != nil {
		if errors.Is(err, ErrCampaignNotDraft) {
			httpx.Error(w, httpx.ErrConflict)
			return
		}
		httpx.Error(w, err)
		return
	}

	result := s.deliver(r.Context(), tpl, recipients)
	httpx.JSON(w, http.StatusOK, result)
}

func (s *Service) deliver(ctx context.Context, tpl *Template, recipients []*Recipient) sendResult {
	var result sendResult

	// Settings override the sender identity for campaign email; losing
	// them falls back to the mailer's transactional defaults.
	settings, err := s.campaigns.GetSettings(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to load email settings", slog.Any("error", err))
		settings = &Settings{}
	}
	for _, rcpt := range recipients {
		optedOut, err := s.optOuts.IsUnsubscribed(ctx, rcpt.Email)
		if err != nil {
			s.log.ErrorContext(ctx, "failed to check opt-out", slog.String("email", rcpt.Email), slog.Any("error", err))
			result.Failed++
			continue
		}
		if optedOut {
			result.Skipped++
			continue
		}

		body, err := s.renderBody(tpl.BodyHTML, rcpt)
		if err != nil {
			s.log.ErrorContext(ctx, "failed to render campaign email", slog.Any("error", err))
			result.Failed++
			continue
		}

		err = s.mailer.SendEmail(ctx, email.SendEmailParams{
			SendTo:    rcpt.Email,
			Subject:   tpl.Subject,
			BodyHTML:  body,
			Tag:       "campaign",
			FromName:  settings.FromName,
			FromEmail: settings.FromEmail,
			ReplyTo:   settings.ReplyTo,
		})
		if err != nil {
			s.log.ErrorContext(ctx, "failed to send campaign email",
				slog.String("email", rcpt.Email),
				slog.Any("error", err))
			result.Failed++
			continue
		}

		if err := s.campaigns.MarkRecipientSent(ctx, rcpt.ID, s.now()); err != nil {
			s.log.ErrorContext(ctx, "failed to mark recipient sent", slog.Any("error", err))
		}
		result.Sent++
	}
	return result
}

// renderBody substitutes the tracking and unsubscribe placeholders with
// per-recipient URLs.
func (s *Service) renderBody(body string, rcpt *Recipient) (string, error) {
	trackTok, err := token.Generate(TrackToken{RecipientID: rcpt.ID}, s.cfg.TokenSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign tracking token: %w", err)
	}
	unsubTok, err := token.Generate(account.UnsubscribeToken{Email: rcpt.Email}, s.cfg.TokenSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign unsubscribe token: %w", err)
	}

	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	pixel := fmt.Sprintf(`<img src="%s/admin/email/track-open?t=%s" width="1" height="1" alt="">`,
		base, url.QueryEscape(trackTok))

	replacer := strings.NewReplacer(
		"{{tracking_pixel}}", pixel,
		"{{tracking_token}}", url.QueryEscape(trackTok),
		"{{unsubscribe_url}}", base+"/unsubscribe?token="+url.QueryEscape(unsubTok),
	)
	return replacer.Replace(body), nil
}

// onePixelGIF is a transparent 1x1 GIF served by the open-tracking endpoint.
var onePixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

func (s *Service) trackOpen(w http.ResponseWriter, r *http.Request) {
	if claim, err := token.Parse[TrackToken](r.URL.Query().Get("t"), s.cfg.TokenSecret); err == nil {
		if err := s.campaigns.MarkRecipientOpened(r.Context(), claim.RecipientID, s.now()); err != nil {
			s.log.DebugContext(r.Context(), "open tracking ignored",
				slog.String("client_ip", clientip.GetIP(r)),
				slog.Any("error", err))
		}
	}

	// Always serve the pixel; a broken image in the email body leaks
	// nothing useful and looks like a bug to the reader.
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(onePixelGIF) //nolint:errcheck
}

func (s *Service) trackClick(w http.ResponseWriter, r *http.Request) {
	if claim, err := token.Parse[TrackToken](r.URL.Query().Get("t"), s.cfg.TokenSecret); err == nil {
		if err := s.campaigns.MarkRecipientClicked(r.Context(), claim.RecipientID, s.now()); err != nil {
			s.log.DebugContext(r.Context(), "click tracking ignored",
				slog.String("client_ip", clientip.GetIP(r)),
				slog.Any("error", err))
		}
	}

	dest := r.URL.Query().Get("u")
	if !s.sameOrigin(dest) {
		dest = s.cfg.PublicBaseURL
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

// sameOrigin reports whether raw is an absolute URL on the public origin.
// The endpoint is unauthenticated, so anything else would make it an open
// redirect for phishing links wrapped in our domain.
func (s *Service) sameOrigin(raw string) bool {
	dest, err := url.Parse(raw)
	if err != nil || (dest.Scheme != "http" && dest.Scheme != "https") {
		return false
	}
	base, err := url.Parse(s.cfg.PublicBaseURL)
	if err != nil {
		return false
	}
	return dest.Scheme == base.Scheme && dest.Host == base.Host
}
