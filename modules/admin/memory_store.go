package admin

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/appideasfinder/backend/modules/account"
	"github.com/appideasfinder/backend/pkg/rbac"
)

// MemoryStore is an in-memory admin store for tests.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[uuid.UUID]User
	coupons   map[uuid.UUID]Coupon
	waitlist  []WaitlistEntry
	deletions map[uuid.UUID]account.DeletionRequest
	stats     Stats
}

// NewMemoryStore creates an empty in-memory admin store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[uuid.UUID]User),
		coupons:   make(map[uuid.UUID]Coupon),
		deletions: make(map[uuid.UUID]account.DeletionRequest),
	}
}

// AddUser seeds a user row.
func (s *MemoryStore) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddWaitlistEntry seeds a waitlist row.
func (s *MemoryStore) AddWaitlistEntry(e WaitlistEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitlist = append(s.waitlist, e)
}

// AddDeletionRequest seeds a deletion request row.
func (s *MemoryStore) AddDeletionRequest(r account.DeletionRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletions[r.ID] = r
}

// SetStats seeds the dashboard counters.
func (s *MemoryStore) SetStats(stats Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

func (s *MemoryStore) GetUserRole(_ context.Context, userID uuid.UUID) (*rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u.Role, nil
}

func (s *MemoryStore) ListUsers(_ context.Context, limit, offset int) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		copied := u
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) ListCoupons(_ context.Context) ([]*Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		copied := c
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateCoupon(_ context.Context, coupon *Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.coupons {
		if existing.Code == coupon.Code {
			return ErrCouponCodeTaken
		}
	}
	s.coupons[coupon.ID] = *coupon
	return nil
}

func (s *MemoryStore) DeleteCoupon(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.coupons[id]; !ok {
		return ErrCouponNotFound
	}
	delete(s.coupons, id)
	return nil
}

func (s *MemoryStore) ListWaitlist(_ context.Context) ([]*WaitlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*WaitlistEntry, 0, len(s.waitlist))
	for i := range s.waitlist {
		copied := s.waitlist[i]
		out = append(out, &copied)
	}
	return out, nil
}

func (s *MemoryStore) ListDeletionRequests(_ context.Context, status account.DeletionRequestStatus) ([]*account.DeletionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*account.DeletionRequest
	for _, r := range s.deletions {
		if status != "" && r.Status != status {
			continue
		}
		copied := r
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateDeletionRequestStatus(_ context.Context, id uuid.UUID, status account.DeletionRequestStatus, processedBy uuid.UUID) (*account.DeletionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.deletions[id]
	if !ok {
		return nil, ErrDeletionRequestNotFound
	}
	r.Status = status
	r.ProcessedBy = &processedBy
	r.UpdatedAt = time.Now().UTC()
	s.deletions[id] = r
	return &r, nil
}

func (s *MemoryStore) GetStats(_ context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := s.stats
	return &stats, nil
}
