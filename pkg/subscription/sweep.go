package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// SweepResult summarizes a batch trial sweep. Errors holds the per-record
// failures; a non-empty list still means the other records were processed.
type SweepResult struct {
	Total     int           `json:"total"`
	Converted int           `json:"converted"`
	Expired   int           `json:"expired"`
	Errors    []RecordError `json:"errors,omitempty"`
}

// RecordError ties a sweep failure to the subscription it happened on.
type RecordError struct {
	UserID uuid.UUID `json:"user_id"`
	Err    string    `json:"error"`
}

func (s *service) ConvertDueTrials(ctx context.Context, now time.Time) (*SweepResult, error) {
	due, err := s.store.ListDueTrials(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due trials: %w", err)
	}

	result := &SweepResult{Total: len(due)}

	// Each row is processed independently so one bad record cannot stall
	// the rest of the batch.
	for _, sub := range due {
		converted, err := s.convertTrial(ctx, sub, now)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, RecordError{
				UserID: sub.UserID,
				Err:    err.Error(),
			})
			s.log.ErrorContext(ctx, "trial conversion failed",
				slog.String("user_id", sub.UserID.String()),
				slog.Any("error", err))
		case converted:
			result.Converted++
		default:
			result.Expired++
		}
	}

	s.log.InfoContext(ctx, "trial sweep finished",
		slog.Int("total", result.Total),
		slog.Int("converted", result.Converted),
		slog.Int("expired", result.Expired),
		slog.Int("errors", len(result.Errors)))

	return result, nil
}

func (s *service) CheckTrial(ctx context.Context, userID uuid.UUID) error {
	sub, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	now := s.now()
	if !sub.IsTrialing() || !sub.IsTrialExpiredAt(now) {
		return nil
	}

	_, err = s.convertTrial(ctx, sub, now)
	return err
}

// convertTrial moves a single expired trial to the paid target plan, or
// expires it when no payment method is on file or the provider refuses the
// charge. Reports whether the trial converted.
func (s *service) convertTrial(ctx context.Context, sub *Subscription, now time.Time) (bool, error) {
	plan, ok := s.catalog[ConversionTargetPlan]
	if !ok {
		return false, ErrPlanNotFound
	}

	// No stored payment method means nothing to charge. The usage ledger
	// stays untouched so support can still see what the user consumed.
	if sub.ProviderCustomerID == "" {
		return false, s.expireTrial(ctx, sub, now)
	}

	providerSub, err := s.provider.CreateSubscription(ctx, sub.ProviderCustomerID, plan.ProviderPriceID)
	if err != nil {
		if expireErr := s.expireTrial(ctx, sub, now); expireErr != nil {
			return false, fmt.Errorf("conversion failed (%v) and expiry failed: %w", err, expireErr)
		}
		return false, fmt.Errorf("%w: %w", ErrProviderError, err)
	}

	periodStart, periodEnd := providerSub.PeriodStart, providerSub.PeriodEnd
	if periodStart.IsZero() {
		periodStart, periodEnd = now, now.AddDate(0, 1, 0)
	}

	sub.PlanID = ConversionTargetPlan
	sub.Status = StatusActive
	sub.TrialEndsAt = nil
	sub.ProviderSubID = providerSub.ID
	sub.PeriodStart = periodStart
	sub.PeriodEnd = periodEnd
	sub.UpdatedAt = now

	if err := s.store.Save(ctx, sub); err != nil {
		return false, fmt.Errorf("failed to save converted subscription: %w", err)
	}

	if err := s.usage.Reset(ctx, sub.UserID, plan.SearchesPerMonth, periodStart, periodEnd); err != nil {
		return false, fmt.Errorf("failed to reset usage ledger: %w", err)
	}

	return true, nil
}

func (s *service) expireTrial(ctx context.Context, sub *Subscription, now time.Time) error {
	sub.Status = StatusExpired
	sub.UpdatedAt = now
	if err := s.store.Save(ctx, sub); err != nil {
		return fmt.Errorf("failed to expire trial: %w", err)
	}
	return nil
}
