package admin

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCampaignStore is an in-memory campaign store for tests.
type MemoryCampaignStore struct {
	mu         sync.RWMutex
	templates  map[uuid.UUID]Template
	campaigns  map[uuid.UUID]Campaign
	recipients map[uuid.UUID]Recipient
	settings   Settings
}

// NewMemoryCampaignStore creates an empty in-memory campaign store.
func NewMemoryCampaignStore() *MemoryCampaignStore {
	return &MemoryCampaignStore{
		templates:  make(map[uuid.UUID]Template),
		campaigns:  make(map[uuid.UUID]Campaign),
		recipients: make(map[uuid.UUID]Recipient),
	}
}

func (s *MemoryCampaignStore) ListTemplates(_ context.Context) ([]*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		copied := tpl
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryCampaignStore) GetTemplate(_ context.Context, id uuid.UUID) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, ok := s.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return &tpl, nil
}

func (s *MemoryCampaignStore) CreateTemplate(_ context.Context, tpl *Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tpl.ID] = *tpl
	return nil
}

func (s *MemoryCampaignStore) UpdateTemplate(_ context.Context, tpl *Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[tpl.ID]; !ok {
		return ErrTemplateNotFound
	}
	s.templates[tpl.ID] = *tpl
	return nil
}

func (s *MemoryCampaignStore) DeleteTemplate(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[id]; !ok {
		return ErrTemplateNotFound
	}
	for _, c := range s.campaigns {
		if c.TemplateID == id {
			return ErrTemplateInUse
		}
	}
	delete(s.templates, id)
	return nil
}

func (s *MemoryCampaignStore) ListCampaigns(_ context.Context) ([]*Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		copied := c
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryCampaignStore) GetCampaign(_ context.Context, id uuid.UUID) (*Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, ErrCampaignNotFound
	}
	return &c, nil
}

func (s *MemoryCampaignStore) CreateCampaign(_ context.Context, campaign *Campaign, recipients []*Recipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.campaigns[campaign.ID] = *campaign
	for _, rcpt := range recipients {
		s.recipients[rcpt.ID] = *rcpt
	}
	return nil
}

func (s *MemoryCampaignStore) UpdateCampaign(_ context.Context, campaign *Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.campaigns[campaign.ID]
	if !ok {
		return ErrCampaignNotFound
	}
	if existing.Status != CampaignDraft {
		return ErrCampaignNotDraft
	}
	existing.TemplateID = campaign.TemplateID
	existing.Name = campaign.Name
	existing.UpdatedAt = campaign.UpdatedAt
	s.campaigns[campaign.ID] = existing
	return nil
}

func (s *MemoryCampaignStore) DeleteCampaign(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return ErrCampaignNotFound
	}
	if c.Status != CampaignDraft {
		return ErrCampaignNotDraft
	}
	delete(s.campaigns, id)
	for rid, rcpt := range s.recipients {
		if rcpt.CampaignID == id {
			delete(s.recipients, rid)
		}
	}
	return nil
}

func (s *MemoryCampaignStore) MarkCampaignSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return ErrCampaignNotFound
	}
	if c.Status != CampaignDraft {
		return ErrCampaignNotDraft
	}
	c.Status = CampaignSent
	c.SentAt = &sentAt
	c.UpdatedAt = sentAt
	s.campaigns[id] = c
	return nil
}

func (s *MemoryCampaignStore) ListRecipients(_ context.Context, campaignID uuid.UUID) ([]*Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Recipient
	for _, rcpt := range s.recipients {
		if rcpt.CampaignID != campaignID {
			continue
		}
		copied := rcpt
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *MemoryCampaignStore) AddRecipients(_ context.Context, campaignID uuid.UUID, recipients []*Recipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaignID]
	if !ok {
		return ErrCampaignNotFound
	}
	if c.Status != CampaignDraft {
		return ErrCampaignNotDraft
	}

	existing := make(map[string]bool)
	for _, rcpt := range s.recipients {
		if rcpt.CampaignID == campaignID {
			existing[rcpt.Email] = true
		}
	}
	for _, rcpt := range recipients {
		if existing[rcpt.Email] {
			continue
		}
		s.recipients[rcpt.ID] = *rcpt
	}
	return nil
}

func (s *MemoryCampaignStore) DeleteRecipient(_ context.Context, campaignID, recipientID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaignID]
	if !ok {
		return ErrCampaignNotFound
	}
	if c.Status != CampaignDraft {
		return ErrCampaignNotDraft
	}
	rcpt, ok := s.recipients[recipientID]
	if !ok || rcpt.CampaignID != campaignID {
		return ErrRecipientNotFound
	}
	delete(s.recipients, recipientID)
	return nil
}

func (s *MemoryCampaignStore) MarkRecipientSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	return s.updateRecipient(id, func(rcpt *Recipient) {
		rcpt.SentAt = &sentAt
	})
}

func (s *MemoryCampaignStore) MarkRecipientOpened(_ context.Context, id uuid.UUID, openedAt time.Time) error {
	return s.updateRecipient(id, func(rcpt *Recipient) {
		if rcpt.OpenedAt == nil {
			rcpt.OpenedAt = &openedAt
		}
	})
}

func (s *MemoryCampaignStore) MarkRecipientClicked(_ context.Context, id uuid.UUID, clickedAt time.Time) error {
	return s.updateRecipient(id, func(rcpt *Recipient) {
		if rcpt.ClickedAt == nil {
			rcpt.ClickedAt = &clickedAt
		}
	})
}

func (s *MemoryCampaignStore) GetSettings(_ context.Context) (*Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := s.settings
	return &settings, nil
}

func (s *MemoryCampaignStore) UpdateSettings(_ context.Context, settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = *settings
	return nil
}

func (s *MemoryCampaignStore) updateRecipient(id uuid.UUID, apply func(*Recipient)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rcpt, ok := s.recipients[id]
	if !ok {
		return ErrRecipientNotFound
	}
	apply(&rcpt)
	s.recipients[id] = rcpt
	return nil
}
