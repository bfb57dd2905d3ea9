package admin

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus is the lifecycle state of an email campaign.
type CampaignStatus string

const (
	CampaignDraft CampaignStatus = "draft"
	CampaignSent  CampaignStatus = "sent"
)

// Template is a reusable email body. Subject and body support the
// {{tracking_pixel}} and {{unsubscribe_url}} placeholders.
type Template struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	BodyHTML  string    `json:"body_html"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Campaign binds a template to a recipient list. A campaign is sent at most
// once; per-recipient delivery and engagement live on Recipient rows.
type Campaign struct {
	ID         uuid.UUID      `json:"id"`
	TemplateID uuid.UUID      `json:"template_id"`
	Name       string         `json:"name"`
	Status     CampaignStatus `json:"status"`
	SentAt     *time.Time     `json:"sent_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Settings is the campaign sender identity. Empty fields fall back to the
// transactional sender configured on the mailer. A single row exists per
// installation.
type Settings struct {
	FromName  string    `json:"from_name"`
	FromEmail string    `json:"from_email"`
	ReplyTo   string    `json:"reply_to"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Recipient is one address on a campaign with delivery and engagement
// tracking. The tracking token embedded in outgoing email resolves back to
// the recipient ID.
type Recipient struct {
	ID         uuid.UUID  `json:"id"`
	CampaignID uuid.UUID  `json:"campaign_id"`
	Email      string     `json:"email"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	OpenedAt   *time.Time `json:"opened_at,omitempty"`
	ClickedAt  *time.Time `json:"clicked_at,omitempty"`
}
