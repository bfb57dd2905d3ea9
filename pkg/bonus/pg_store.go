package bonus

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appideasfinder/backend/pkg/pg"
)

// PGStore is the PostgreSQL-backed bonus grant store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a bonus store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const grantColumns = `id, user_id, bonus_type, bonus_value, duration, months_remaining,
	reason, active, granted_by, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, grant *Grant) error {
	query := `
		INSERT INTO bonus_grants (` + grantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		grant.ID, grant.UserID, grant.Type, grant.Value, grant.Duration,
		grant.MonthsRemaining, grant.Reason, grant.Active, grant.GrantedBy,
		grant.CreatedAt, grant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bonus grant: %w", err)
	}
	return nil
}

func (s *PGStore) Update(ctx context.Context, grant *Grant) error {
	query := `
		UPDATE bonus_grants SET
			bonus_value = $2,
			months_remaining = $3,
			active = $4,
			updated_at = $5
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		grant.ID, grant.Value, grant.MonthsRemaining, grant.Active, grant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update bonus grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGrantNotFound
	}
	return nil
}

func (s *PGStore) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*Grant, error) {
	query := `SELECT ` + grantColumns + `
		FROM bonus_grants
		WHERE user_id = $1 AND active
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bonus grants: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

func (s *PGStore) GetActiveByUserAndReason(ctx context.Context, userID uuid.UUID, reason string) (*Grant, error) {
	query := `SELECT ` + grantColumns + `
		FROM bonus_grants
		WHERE user_id = $1 AND reason = $2 AND active
		ORDER BY created_at
		LIMIT 1`

	grant, err := scanGrant(s.pool.QueryRow(ctx, query, userID, reason))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("failed to get bonus grant: %w", err)
	}
	return grant, nil
}

// ConsumeSearch picks and decrements the grant in one statement so two
// concurrent consumers cannot both take the last search.
func (s *PGStore) ConsumeSearch(ctx context.Context, userID uuid.UUID) (*Grant, error) {
	query := `
		WITH candidate AS (
			SELECT id FROM bonus_grants
			WHERE user_id = $1 AND active AND bonus_type = $2 AND bonus_value > 0
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE
		)
		UPDATE bonus_grants g SET
			bonus_value = g.bonus_value - 1,
			active = CASE WHEN g.bonus_value - 1 = 0 AND g.duration = $3 THEN false ELSE g.active END,
			updated_at = now()
		FROM candidate
		WHERE g.id = candidate.id
		RETURNING ` + prefixedGrantColumns("g.")

	grant, err := scanGrant(s.pool.QueryRow(ctx, query, userID, TypeFixedSearches, DurationOnce))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("failed to consume bonus grant: %w", err)
	}
	return grant, nil
}

func prefixedGrantColumns(prefix string) string {
	cols := strings.Split(grantColumns, ",")
	for i, col := range cols {
		cols[i] = prefix + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

func (s *PGStore) ListActiveMonthly(ctx context.Context) ([]*Grant, error) {
	query := `SELECT ` + grantColumns + `
		FROM bonus_grants
		WHERE duration = $1 AND active
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, DurationMonthly)
	if err != nil {
		return nil, fmt.Errorf("failed to list monthly bonus grants: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (*Grant, error) {
	var g Grant
	err := row.Scan(
		&g.ID, &g.UserID, &g.Type, &g.Value, &g.Duration, &g.MonthsRemaining,
		&g.Reason, &g.Active, &g.GrantedBy, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func scanGrants(rows pgx.Rows) ([]*Grant, error) {
	var grants []*Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bonus grant: %w", err)
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}
