package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory subscription store for tests and local
// development.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]Subscription
}

// NewMemoryStore creates an empty in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uuid.UUID]Subscription)}
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *MemoryStore) Save(_ context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[sub.UserID] = *sub
	return nil
}

func (s *MemoryStore) ListDueTrials(_ context.Context, now time.Time) ([]*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*Subscription
	for _, sub := range s.subs {
		if sub.Status == StatusTrial && sub.TrialEndsAt != nil && sub.TrialEndsAt.Before(now) {
			copied := sub
			due = append(due, &copied)
		}
	}
	return due, nil
}
