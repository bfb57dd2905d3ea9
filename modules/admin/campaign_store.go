package admin

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CampaignStore persists email templates, campaigns, and recipients.
type CampaignStore interface {
	ListTemplates(ctx context.Context) ([]*Template, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error)
	CreateTemplate(ctx context.Context, tpl *Template) error
	UpdateTemplate(ctx context.Context, tpl *Template) error
	// DeleteTemplate removes an unused template. Returns ErrTemplateInUse
	// when a campaign still references it.
	DeleteTemplate(ctx context.Context, id uuid.UUID) error

	ListCampaigns(ctx context.Context) ([]*Campaign, error)
	GetCampaign(ctx context.Context, id uuid.UUID) (*Campaign, error)
	CreateCampaign(ctx context.Context, campaign *Campaign, recipients []*Recipient) error
	// UpdateCampaign rewrites the name and template of a draft campaign.
	// Returns ErrCampaignNotDraft once the campaign was sent.
	UpdateCampaign(ctx context.Context, campaign *Campaign) error
	// DeleteCampaign removes a draft campaign and its recipient list.
	DeleteCampaign(ctx context.Context, id uuid.UUID) error
	// MarkCampaignSent transitions a draft campaign to sent. Returns
	// ErrCampaignNotDraft when the campaign was already sent.
	MarkCampaignSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error

	ListRecipients(ctx context.Context, campaignID uuid.UUID) ([]*Recipient, error)
	// AddRecipients appends addresses to a draft campaign, skipping ones
	// already on the list.
	AddRecipients(ctx context.Context, campaignID uuid.UUID, recipients []*Recipient) error
	// DeleteRecipient removes one address from a draft campaign.
	DeleteRecipient(ctx context.Context, campaignID, recipientID uuid.UUID) error
	MarkRecipientSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	// MarkRecipientOpened records the first open only; later opens keep the
	// original timestamp.
	MarkRecipientOpened(ctx context.Context, id uuid.UUID, openedAt time.Time) error
	MarkRecipientClicked(ctx context.Context, id uuid.UUID, clickedAt time.Time) error

	GetSettings(ctx context.Context) (*Settings, error)
	UpdateSettings(ctx context.Context, settings *Settings) error
}
