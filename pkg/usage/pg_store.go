package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appideasfinder/backend/pkg/pg"
)

// PGStore is the PostgreSQL-backed usage ledger.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a usage store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Get(ctx context.Context, userID uuid.UUID) (*MonthlyUsage, error) {
	query := `SELECT user_id, searches_used, searches_limit, period_start, period_end, updated_at
		FROM monthly_usage WHERE user_id = $1`

	var u MonthlyUsage
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&u.UserID, &u.SearchesUsed, &u.SearchesLimit,
		&u.PeriodStart, &u.PeriodEnd, &u.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrUsageNotFound
		}
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	return &u, nil
}

// Consume increments the counter with the quota guard inside the UPDATE
// itself. The WHERE clause is the ceiling check: when the guard fails the
// statement matches zero rows and no write happens, which closes the window
// between reading the counter and writing it back.
func (s *PGStore) Consume(ctx context.Context, userID uuid.UUID, params ConsumeParams) (*MonthlyUsage, error) {
	query := `
		INSERT INTO monthly_usage (user_id, searches_used, searches_limit, period_start, period_end, updated_at)
		VALUES ($1, 1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE SET
			searches_used = monthly_usage.searches_used + 1,
			updated_at = now()
		WHERE monthly_usage.searches_limit < 0
			OR monthly_usage.searches_used < monthly_usage.searches_limit
		RETURNING user_id, searches_used, searches_limit, period_start, period_end, updated_at`

	var u MonthlyUsage
	err := s.pool.QueryRow(ctx, query,
		userID, params.Limit, params.PeriodStart, params.PeriodEnd,
	).Scan(
		&u.UserID, &u.SearchesUsed, &u.SearchesLimit,
		&u.PeriodStart, &u.PeriodEnd, &u.UpdatedAt,
	)
	if err != nil {
		// Zero rows back from the upsert means the guard rejected the
		// increment.
		if pg.IsNotFoundError(err) {
			return nil, ErrQuotaExhausted
		}
		return nil, fmt.Errorf("failed to consume usage: %w", err)
	}

	return &u, nil
}

func (s *PGStore) Reset(ctx context.Context, userID uuid.UUID, limit int, periodStart, periodEnd time.Time) error {
	if !periodEnd.After(periodStart) {
		return ErrInvalidPeriod
	}

	query := `
		INSERT INTO monthly_usage (user_id, searches_used, searches_limit, period_start, period_end, updated_at)
		VALUES ($1, 0, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE SET
			searches_used = 0,
			searches_limit = EXCLUDED.searches_limit,
			period_start = EXCLUDED.period_start,
			period_end = EXCLUDED.period_end,
			updated_at = now()`

	if _, err := s.pool.Exec(ctx, query, userID, limit, periodStart, periodEnd); err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}

	return nil
}
