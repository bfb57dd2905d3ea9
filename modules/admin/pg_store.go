package admin

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appideasfinder/backend/modules/account"
	"github.com/appideasfinder/backend/pkg/pg"
	"github.com/appideasfinder/backend/pkg/rbac"
)

// PGStore is the PostgreSQL-backed admin store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates an admin store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) GetUserRole(ctx context.Context, userID uuid.UUID) (*rbac.Role, error) {
	var role *string
	err := s.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user role: %w", err)
	}
	if role == nil {
		return nil, nil
	}

	parsed, err := rbac.ParseRole(*role)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (s *PGStore) ListUsers(ctx context.Context, limit, offset int) ([]*User, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT id, email, role, created_at FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		var role *string
		if err := rows.Scan(&u.ID, &u.Email, &role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if role != nil {
			if parsed, err := rbac.ParseRole(*role); err == nil {
				u.Role = &parsed
			}
		}
		users = append(users, &u)
	}

	return users, rows.Err()
}

func (s *PGStore) ListCoupons(ctx context.Context) ([]*Coupon, error) {
	query := `SELECT id, code, discount_percent, active, expires_at, created_at
		FROM coupons ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []*Coupon
	for rows.Next() {
		var c Coupon
		if err := rows.Scan(&c.ID, &c.Code, &c.DiscountPercent, &c.Active, &c.ExpiresAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, &c)
	}

	return coupons, rows.Err()
}

func (s *PGStore) CreateCoupon(ctx context.Context, coupon *Coupon) error {
	query := `INSERT INTO coupons (id, code, discount_percent, active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		coupon.ID, coupon.Code, coupon.DiscountPercent, coupon.Active, coupon.ExpiresAt, coupon.CreatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrCouponCodeTaken
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}

func (s *PGStore) DeleteCoupon(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCouponNotFound
	}
	return nil
}

func (s *PGStore) ListWaitlist(ctx context.Context) ([]*WaitlistEntry, error) {
	query := `SELECT id, email, invited_at, created_at FROM waitlist ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist: %w", err)
	}
	defer rows.Close()

	var entries []*WaitlistEntry
	for rows.Next() {
		var e WaitlistEntry
		if err := rows.Scan(&e.ID, &e.Email, &e.InvitedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan waitlist entry: %w", err)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

func (s *PGStore) ListDeletionRequests(ctx context.Context, status account.DeletionRequestStatus) ([]*account.DeletionRequest, error) {
	query := `SELECT id, user_id, reason, status, processed_by, created_at, updated_at
		FROM deletion_requests`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deletion requests: %w", err)
	}
	defer rows.Close()

	var reqs []*account.DeletionRequest
	for rows.Next() {
		var r account.DeletionRequest
		if err := rows.Scan(&r.ID, &r.UserID, &r.Reason, &r.Status, &r.ProcessedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deletion request: %w", err)
		}
		reqs = append(reqs, &r)
	}

	return reqs, rows.Err()
}

func (s *PGStore) UpdateDeletionRequestStatus(ctx context.Context, id uuid.UUID, status account.DeletionRequestStatus, processedBy uuid.UUID) (*account.DeletionRequest, error) {
	query := `UPDATE deletion_requests
		SET status = $2, processed_by = $3, updated_at = now()
		WHERE id = $1
		RETURNING id, user_id, reason, status, processed_by, created_at, updated_at`

	var r account.DeletionRequest
	err := s.pool.QueryRow(ctx, query, id, status, processedBy).Scan(
		&r.ID, &r.UserID, &r.Reason, &r.Status, &r.ProcessedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrDeletionRequestNotFound
		}
		return nil, fmt.Errorf("failed to update deletion request: %w", err)
	}

	return &r, nil
}

func (s *PGStore) GetStats(ctx context.Context) (*Stats, error) {
	query := `SELECT
		(SELECT count(*) FROM users),
		(SELECT count(*) FROM subscriptions WHERE status = 'active'),
		(SELECT count(*) FROM subscriptions WHERE status = 'trial'),
		(SELECT coalesce(sum(searches_used), 0) FROM monthly_usage),
		(SELECT count(*) FROM deletion_requests WHERE status = 'pending'),
		(SELECT count(*) FROM waitlist),
		(SELECT count(*) FROM bonus_grants WHERE active),
		(SELECT count(*) FROM feedback)`

	var stats Stats
	err := s.pool.QueryRow(ctx, query).Scan(
		&stats.TotalUsers, &stats.ActiveSubscriptions, &stats.TrialSubscriptions,
		&stats.SearchesThisMonth, &stats.PendingDeletions, &stats.WaitlistCount,
		&stats.ActiveBonusGrants, &stats.FeedbackSubmissions,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	return &stats, nil
}
