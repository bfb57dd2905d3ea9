package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appideasfinder/backend/pkg/pg"
)

// PGStore is the PostgreSQL-backed subscription store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a subscription store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const subscriptionColumns = `user_id, plan_id, status, trial_ends_at, period_start, period_end,
	provider_customer_id, provider_sub_id, created_at, updated_at, cancelled_at`

func (s *PGStore) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`

	sub, err := scanSubscription(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

func (s *PGStore) Save(ctx context.Context, sub *Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			trial_ends_at = EXCLUDED.trial_ends_at,
			period_start = EXCLUDED.period_start,
			period_end = EXCLUDED.period_end,
			provider_customer_id = EXCLUDED.provider_customer_id,
			provider_sub_id = EXCLUDED.provider_sub_id,
			updated_at = EXCLUDED.updated_at,
			cancelled_at = EXCLUDED.cancelled_at`

	_, err := s.pool.Exec(ctx, query,
		sub.UserID, sub.PlanID, sub.Status, sub.TrialEndsAt,
		sub.PeriodStart, sub.PeriodEnd,
		sub.ProviderCustomerID, sub.ProviderSubID,
		sub.CreatedAt, sub.UpdatedAt, sub.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}

	return nil
}

func (s *PGStore) ListDueTrials(ctx context.Context, now time.Time) ([]*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = $1 AND trial_ends_at < $2
		ORDER BY trial_ends_at`

	rows, err := s.pool.Query(ctx, query, StatusTrial, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due trials: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(
		&sub.UserID, &sub.PlanID, &sub.Status, &sub.TrialEndsAt,
		&sub.PeriodStart, &sub.PeriodEnd,
		&sub.ProviderCustomerID, &sub.ProviderSubID,
		&sub.CreatedAt, &sub.UpdatedAt, &sub.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
