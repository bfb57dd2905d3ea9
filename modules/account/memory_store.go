package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory account store for tests and local development.
type MemoryStore struct {
	mu           sync.RWMutex
	deletions    []DeletionRequest
	feedback     []Feedback
	unsubscribed map[string]time.Time
}

// NewMemoryStore creates an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{unsubscribed: make(map[string]time.Time)}
}

func (s *MemoryStore) GetDeletionRequest(_ context.Context, userID uuid.UUID) (*DeletionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *DeletionRequest
	for i := range s.deletions {
		req := s.deletions[i]
		if req.UserID != userID {
			continue
		}
		if latest == nil || req.CreatedAt.After(latest.CreatedAt) {
			copied := req
			latest = &copied
		}
	}
	if latest == nil {
		return nil, ErrDeletionRequestNotFound
	}
	return latest, nil
}

func (s *MemoryStore) CreateDeletionRequest(_ context.Context, req *DeletionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.deletions {
		if existing.UserID == req.UserID && existing.Status == DeletionPending {
			return ErrDeletionRequestExists
		}
	}
	s.deletions = append(s.deletions, *req)
	return nil
}

func (s *MemoryStore) CreateFeedback(_ context.Context, fb *Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.feedback = append(s.feedback, *fb)
	return nil
}

func (s *MemoryStore) CreateUnsubscribe(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := s.unsubscribed[key]; !ok {
		s.unsubscribed[key] = time.Now().UTC()
	}
	return nil
}

func (s *MemoryStore) IsUnsubscribed(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.unsubscribed[strings.ToLower(email)]
	return ok, nil
}
