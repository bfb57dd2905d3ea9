package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appideasfinder/backend/pkg/pg"
)

// PGStore is the PostgreSQL-backed account store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates an account store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) GetDeletionRequest(ctx context.Context, userID uuid.UUID) (*DeletionRequest, error) {
	query := `SELECT id, user_id, reason, status, processed_by, created_at, updated_at
		FROM deletion_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var req DeletionRequest
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&req.ID, &req.UserID, &req.Reason, &req.Status,
		&req.ProcessedBy, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrDeletionRequestNotFound
		}
		return nil, fmt.Errorf("failed to get deletion request: %w", err)
	}

	return &req, nil
}

func (s *PGStore) CreateDeletionRequest(ctx context.Context, req *DeletionRequest) error {
	// The partial unique index on (user_id) WHERE status = 'pending'
	// enforces one open request per user.
	query := `
		INSERT INTO deletion_requests (id, user_id, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		req.ID, req.UserID, req.Reason, req.Status, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrDeletionRequestExists
		}
		return fmt.Errorf("failed to create deletion request: %w", err)
	}

	return nil
}

func (s *PGStore) CreateFeedback(ctx context.Context, fb *Feedback) error {
	query := `INSERT INTO feedback (id, user_id, message, created_at) VALUES ($1, $2, $3, $4)`

	if _, err := s.pool.Exec(ctx, query, fb.ID, fb.UserID, fb.Message, fb.CreatedAt); err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

func (s *PGStore) CreateUnsubscribe(ctx context.Context, email string) error {
	query := `INSERT INTO unsubscribes (email, created_at) VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, strings.ToLower(email), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record unsubscribe: %w", err)
	}
	return nil
}

func (s *PGStore) IsUnsubscribed(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM unsubscribes WHERE email = $1)`

	var out bool
	if err := s.pool.QueryRow(ctx, query, strings.ToLower(email)).Scan(&out); err != nil {
		return false, fmt.Errorf("failed to check unsubscribe: %w", err)
	}
	return out, nil
}
