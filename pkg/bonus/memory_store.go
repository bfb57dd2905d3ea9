package bonus

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory bonus grant store for tests and local
// development.
type MemoryStore struct {
	mu     sync.RWMutex
	grants map[uuid.UUID]Grant
}

// NewMemoryStore creates an empty in-memory bonus store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{grants: make(map[uuid.UUID]Grant)}
}

func (s *MemoryStore) Create(_ context.Context, grant *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.grants[grant.ID] = *grant
	return nil
}

func (s *MemoryStore) Update(_ context.Context, grant *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.grants[grant.ID]; !ok {
		return ErrGrantNotFound
	}
	s.grants[grant.ID] = cloneGrant(*grant)
	return nil
}

func (s *MemoryStore) ListActiveByUser(_ context.Context, userID uuid.UUID) ([]*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Grant
	for _, grant := range s.grants {
		if grant.UserID == userID && grant.Active {
			copied := cloneGrant(grant)
			out = append(out, &copied)
		}
	}
	sortGrants(out)
	return out, nil
}

func (s *MemoryStore) GetActiveByUserAndReason(_ context.Context, userID uuid.UUID, reason string) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, grant := range s.grants {
		if grant.UserID == userID && grant.Reason == reason && grant.Active {
			copied := cloneGrant(grant)
			return &copied, nil
		}
	}
	return nil, ErrGrantNotFound
}

func (s *MemoryStore) ConsumeSearch(_ context.Context, userID uuid.UUID) (*Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*Grant
	for id := range s.grants {
		grant := s.grants[id]
		if grant.UserID == userID && grant.Active && grant.Type == TypeFixedSearches && grant.Value > 0 {
			copied := cloneGrant(grant)
			candidates = append(candidates, &copied)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrGrantNotFound
	}
	sortGrants(candidates)

	grant := candidates[0]
	grant.Value--
	if grant.Value == 0 && grant.Duration == DurationOnce {
		grant.Active = false
	}
	grant.UpdatedAt = time.Now().UTC()
	s.grants[grant.ID] = cloneGrant(*grant)
	return grant, nil
}

func (s *MemoryStore) ListActiveMonthly(_ context.Context) ([]*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Grant
	for _, grant := range s.grants {
		if grant.Duration == DurationMonthly && grant.Active {
			copied := cloneGrant(grant)
			out = append(out, &copied)
		}
	}
	sortGrants(out)
	return out, nil
}

// cloneGrant deep-copies the MonthsRemaining pointer so callers cannot
// mutate stored rows through it.
func cloneGrant(g Grant) Grant {
	if g.MonthsRemaining != nil {
		months := *g.MonthsRemaining
		g.MonthsRemaining = &months
	}
	return g
}

func sortGrants(grants []*Grant) {
	sort.Slice(grants, func(i, j int) bool {
		return grants[i].CreatedAt.Before(grants[j].CreatedAt)
	})
}
