package bonus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service implements grant lifecycle rules on top of a Store.
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// ServiceOption configures optional service settings.
type ServiceOption func(*Service)

// WithLogger sets the logger used for rollover diagnostics.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a bonus service. Panics on a nil store to fail fast
// during initialization.
func NewService(store Store, opts ...ServiceOption) *Service {
	if store == nil {
		panic("bonus: Store is required")
	}

	s := &Service{
		store: store,
		log:   slog.New(slog.DiscardHandler),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AwardParams describes an admin-initiated grant.
type AwardParams struct {
	UserID    uuid.UUID
	Type      Type
	Value     int
	Duration  Duration
	Reason    string
	GrantedBy *uuid.UUID
}

// Validate checks required fields and enumerations.
func (p AwardParams) Validate() error {
	if p.UserID == uuid.Nil {
		return ErrMissingUserID
	}
	if !validType(p.Type) {
		return fmt.Errorf("%w: %q", ErrInvalidType, p.Type)
	}
	if !validDuration(p.Duration) {
		return fmt.Errorf("%w: %q", ErrInvalidDuration, p.Duration)
	}
	if p.Value <= 0 {
		return ErrInvalidValue
	}
	return nil
}

// Award creates a new grant for a user. For monthly duration the value doubles
// as the number of periods the grant survives.
func (s *Service) Award(ctx context.Context, params AwardParams) (*Grant, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	grant := &Grant{
		ID:        uuid.New(),
		UserID:    params.UserID,
		Type:      params.Type,
		Value:     params.Value,
		Duration:  params.Duration,
		Reason:    params.Reason,
		Active:    true,
		GrantedBy: params.GrantedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if params.Duration == DurationMonthly {
		months := params.Value
		grant.MonthsRemaining = &months
	}

	if err := s.store.Create(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to create bonus grant: %w", err)
	}

	return grant, nil
}

// FeedbackReward grants one bonus search for submitting feedback. Repeat
// submissions increment the user's existing feedback grant instead of
// creating a second row.
func (s *Service) FeedbackReward(ctx context.Context, userID uuid.UUID) (*Grant, error) {
	if userID == uuid.Nil {
		return nil, ErrMissingUserID
	}

	existing, err := s.store.GetActiveByUserAndReason(ctx, userID, FeedbackReason)
	switch {
	case err == nil:
		existing.Value++
		existing.UpdatedAt = s.now()
		if err := s.store.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to increment feedback grant: %w", err)
		}
		return existing, nil

	case errors.Is(err, ErrGrantNotFound):
		now := s.now()
		grant := &Grant{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      TypeFixedSearches,
			Value:     1,
			Duration:  DurationPermanent,
			Reason:    FeedbackReason,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.Create(ctx, grant); err != nil {
			return nil, fmt.Errorf("failed to create feedback grant: %w", err)
		}
		return grant, nil

	default:
		return nil, err
	}
}

// ActiveSearchExtra sums the user's active fixed_searches grant values, the
// number the usage ceiling is raised by.
func (s *Service) ActiveSearchExtra(ctx context.Context, userID uuid.UUID) (int, error) {
	grants, err := s.store.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, grant := range grants {
		if grant.Type == TypeFixedSearches {
			total += grant.Value
		}
	}
	return total, nil
}

// Consume burns one search from the user's active fixed_searches grants,
// oldest first. A once grant is deactivated when its value reaches zero;
// other durations keep the empty grant on record, where it carries no
// further access.
func (s *Service) Consume(ctx context.Context, userID uuid.UUID) (*Grant, error) {
	if userID == uuid.Nil {
		return nil, ErrMissingUserID
	}
	return s.store.ConsumeSearch(ctx, userID)
}

// ListActive returns all active grants for a user.
func (s *Service) ListActive(ctx context.Context, userID uuid.UUID) ([]*Grant, error) {
	return s.store.ListActiveByUser(ctx, userID)
}

// Revoke deactivates a grant.
func (s *Service) Revoke(ctx context.Context, grant *Grant) error {
	grant.Active = false
	grant.UpdatedAt = s.now()
	return s.store.Update(ctx, grant)
}

// RolloverResult summarizes a monthly rollover run.
type RolloverResult struct {
	Processed   int
	Deactivated int
	Errors      int
}

// RolloverCycle decrements every active monthly grant's remaining months and
// deactivates those that hit zero. Run once per billing cycle. Failures are
// isolated per grant so one bad row does not stall the rest.
func (s *Service) RolloverCycle(ctx context.Context) (*RolloverResult, error) {
	grants, err := s.store.ListActiveMonthly(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list monthly grants: %w", err)
	}

	result := &RolloverResult{Processed: len(grants)}
	now := s.now()

	for _, grant := range grants {
		if grant.MonthsRemaining == nil {
			// Monthly grants always carry a counter; a nil one is a data
			// bug, deactivate rather than let it live forever.
			grant.Active = false
		} else {
			*grant.MonthsRemaining--
			if *grant.MonthsRemaining <= 0 {
				*grant.MonthsRemaining = 0
				grant.Active = false
			}
		}
		grant.UpdatedAt = now

		if err := s.store.Update(ctx, grant); err != nil {
			result.Errors++
			s.log.ErrorContext(ctx, "bonus rollover failed",
				slog.String("grant_id", grant.ID.String()),
				slog.Any("error", err))
			continue
		}
		if !grant.Active {
			result.Deactivated++
		}
	}

	return result, nil
}
