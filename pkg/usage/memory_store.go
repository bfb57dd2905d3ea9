package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory usage ledger for tests and local development.
// The mutex gives the same all-or-nothing consume semantics as the SQL
// implementation's conditional update.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]MonthlyUsage
}

// NewMemoryStore creates an empty in-memory usage store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[uuid.UUID]MonthlyUsage)}
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*MonthlyUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[userID]
	if !ok {
		return nil, ErrUsageNotFound
	}
	return &row, nil
}

func (s *MemoryStore) Consume(_ context.Context, userID uuid.UUID, params ConsumeParams) (*MonthlyUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[userID]
	if !ok {
		row = MonthlyUsage{
			UserID:        userID,
			SearchesLimit: params.Limit,
			PeriodStart:   params.PeriodStart,
			PeriodEnd:     params.PeriodEnd,
		}
	}

	if row.SearchesLimit >= 0 && row.SearchesUsed >= row.SearchesLimit {
		return nil, ErrQuotaExhausted
	}

	row.SearchesUsed++
	row.UpdatedAt = time.Now().UTC()
	s.rows[userID] = row

	return &row, nil
}

func (s *MemoryStore) Reset(_ context.Context, userID uuid.UUID, limit int, periodStart, periodEnd time.Time) error {
	if !periodEnd.After(periodStart) {
		return ErrInvalidPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[userID] = MonthlyUsage{
		UserID:        userID,
		SearchesLimit: limit,
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		UpdatedAt:     time.Now().UTC(),
	}
	return nil
}
