package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// TrialSweepSchedule runs the sweep daily shortly after midnight UTC, when
// most trial windows roll over.
const TrialSweepSchedule = "15 0 * * *"

// BonusRolloverSchedule decays monthly bonus grants on the first of each
// month.
const BonusRolloverSchedule = "30 0 1 * *"

// StartScheduler registers the recurring billing jobs and starts the cron
// runner. The returned cron is already running; callers stop it on
// shutdown.
func (s *Service) StartScheduler(ctx context.Context, rolloverFn func(context.Context) error) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(TrialSweepSchedule, func() {
		result, err := s.subs.ConvertDueTrials(ctx, time.Now().UTC())
		if err != nil {
			s.log.ErrorContext(ctx, "scheduled trial sweep failed", slog.Any("error", err))
			return
		}
		s.log.InfoContext(ctx, "scheduled trial sweep done",
			slog.Int("total", result.Total),
			slog.Int("converted", result.Converted),
			slog.Int("expired", result.Expired),
			slog.Int("errors", len(result.Errors)))
	})
	if err != nil {
		return nil, err
	}

	if rolloverFn != nil {
		_, err = c.AddFunc(BonusRolloverSchedule, func() {
			if err := rolloverFn(ctx); err != nil {
				s.log.ErrorContext(ctx, "scheduled bonus rollover failed", slog.Any("error", err))
			}
		})
		if err != nil {
			return nil, err
		}
	}

	c.Start()
	return c, nil
}
