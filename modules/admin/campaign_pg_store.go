package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appideasfinder/backend/pkg/pg"
)

// PGCampaignStore is the PostgreSQL-backed campaign store.
type PGCampaignStore struct {
	pool *pgxpool.Pool
}

// NewPGCampaignStore creates a campaign store backed by the given pool.
func NewPGCampaignStore(pool *pgxpool.Pool) *PGCampaignStore {
	return &PGCampaignStore{pool: pool}
}

const templateColumns = `id, name, subject, body_html, created_at, updated_at`

func (s *PGCampaignStore) ListTemplates(ctx context.Context) ([]*Template, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+templateColumns+` FROM email_templates ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		var tpl Template
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Subject, &tpl.BodyHTML, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, &tpl)
	}
	return templates, rows.Err()
}

func (s *PGCampaignStore) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	var tpl Template
	err := s.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM email_templates WHERE id = $1`, id).
		Scan(&tpl.ID, &tpl.Name, &tpl.Subject, &tpl.BodyHTML, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &tpl, nil
}

func (s *PGCampaignStore) CreateTemplate(ctx context.Context, tpl *Template) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO email_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tpl.ID, tpl.Name, tpl.Subject, tpl.BodyHTML, tpl.CreatedAt, tpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

func (s *PGCampaignStore) UpdateTemplate(ctx context.Context, tpl *Template) error {
	tag, err := s.pool.Exec(ctx, `UPDATE email_templates
		SET name = $1, subject = $2, body_html = $3, updated_at = $4
		WHERE id = $5`,
		tpl.Name, tpl.Subject, tpl.BodyHTML, tpl.UpdatedAt, tpl.ID)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (s *PGCampaignStore) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM email_templates WHERE id = $1`, id)
	if err != nil {
		if pg.IsForeignKeyViolationError(err) {
			return ErrTemplateInUse
		}
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

const campaignColumns = `id, template_id, name, status, sent_at, created_at, updated_at`

func (s *PGCampaignStore) ListCampaigns(ctx context.Context) ([]*Campaign, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+campaignColumns+` FROM email_campaigns ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*Campaign
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, rows.Err()
}

func (s *PGCampaignStore) GetCampaign(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM email_campaigns WHERE id = $1`, id)
	campaign, err := scanCampaign(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return campaign, nil
}

// CreateCampaign inserts the campaign and its recipient list in one
// transaction so a half-created campaign is never visible.
func (s *PGCampaignStore) CreateCampaign(ctx context.Context, campaign *Campaign, recipients []*Recipient) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `INSERT INTO email_campaigns (`+campaignColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		campaign.ID, campaign.TemplateID, campaign.Name, campaign.Status,
		campaign.SentAt, campaign.CreatedAt, campaign.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	for _, rcpt := range recipients {
		_, err = tx.Exec(ctx, `INSERT INTO email_recipients (id, campaign_id, email)
			VALUES ($1, $2, $3)`,
			rcpt.ID, rcpt.CampaignID, rcpt.Email)
		if err != nil {
			return fmt.Errorf("failed to create recipient: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// UpdateCampaign rewrites draft metadata. The status predicate keeps the
// update atomic against a concurrent send.
func (s *PGCampaignStore) UpdateCampaign(ctx context.Context, campaign *Campaign) error {
	tag, err := s.pool.Exec(ctx, `UPDATE email_campaigns
		SET template_id = $1, name = $2, updated_at = $3
		WHERE id = $4 AND status = $5`,
		campaign.TemplateID, campaign.Name, campaign.UpdatedAt, campaign.ID, CampaignDraft)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetCampaign(ctx, campaign.ID); err != nil {
			return err
		}
		return ErrCampaignNotDraft
	}
	return nil
}

// DeleteCampaign removes a draft campaign; recipients go with it via the
// ON DELETE CASCADE on email_recipients.
func (s *PGCampaignStore) DeleteCampaign(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM email_campaigns WHERE id = $1 AND status = $2`,
		id, CampaignDraft)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetCampaign(ctx, id); err != nil {
			return err
		}
		return ErrCampaignNotDraft
	}
	return nil
}

func (s *PGCampaignStore) MarkCampaignSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE email_campaigns
		SET status = $1, sent_at = $2, updated_at = $2
		WHERE id = $3 AND status = $4`,
		CampaignSent, sentAt, id, CampaignDraft)
	if err != nil {
		return fmt.Errorf("failed to mark campaign sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetCampaign(ctx, id); err != nil {
			return err
		}
		return ErrCampaignNotDraft
	}
	return nil
}

const recipientColumns = `id, campaign_id, email, sent_at, opened_at, clicked_at`

func (s *PGCampaignStore) ListRecipients(ctx context.Context, campaignID uuid.UUID) ([]*Recipient, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+recipientColumns+` FROM email_recipients
		WHERE campaign_id = $1 ORDER BY email`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var recipients []*Recipient
	for rows.Next() {
		var rcpt Recipient
		if err := rows.Scan(&rcpt.ID, &rcpt.CampaignID, &rcpt.Email, &rcpt.SentAt, &rcpt.OpenedAt, &rcpt.ClickedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, &rcpt)
	}
	return recipients, rows.Err()
}

// AddRecipients appends addresses to a draft campaign inside one
// transaction. The campaign row is locked so the send path cannot race a
// list edit; addresses already on the list are skipped.
func (s *PGCampaignStore) AddRecipients(ctx context.Context, campaignID uuid.UUID, recipients []*Recipient) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var status CampaignStatus
	err = tx.QueryRow(ctx, `SELECT status FROM email_campaigns WHERE id = $1 FOR UPDATE`, campaignID).
		Scan(&status)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return ErrCampaignNotFound
		}
		return fmt.Errorf("failed to lock campaign: %w", err)
	}
	if status != CampaignDraft {
		return ErrCampaignNotDraft
	}

	for _, rcpt := range recipients {
		_, err = tx.Exec(ctx, `INSERT INTO email_recipients (id, campaign_id, email)
			VALUES ($1, $2, $3)
			ON CONFLICT (campaign_id, email) DO NOTHING`,
			rcpt.ID, rcpt.CampaignID, rcpt.Email)
		if err != nil {
			return fmt.Errorf("failed to add recipient: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PGCampaignStore) DeleteRecipient(ctx context.Context, campaignID, recipientID uuid.UUID) error {
	campaign, err := s.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != CampaignDraft {
		return ErrCampaignNotDraft
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM email_recipients WHERE id = $1 AND campaign_id = $2`,
		recipientID, campaignID)
	if err != nil {
		return fmt.Errorf("failed to delete recipient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecipientNotFound
	}
	return nil
}

func (s *PGCampaignStore) MarkRecipientSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return s.markRecipient(ctx, `UPDATE email_recipients SET sent_at = $1 WHERE id = $2`, id, sentAt)
}

func (s *PGCampaignStore) MarkRecipientOpened(ctx context.Context, id uuid.UUID, openedAt time.Time) error {
	return s.markRecipient(ctx, `UPDATE email_recipients SET opened_at = $1 WHERE id = $2 AND opened_at IS NULL`, id, openedAt)
}

func (s *PGCampaignStore) MarkRecipientClicked(ctx context.Context, id uuid.UUID, clickedAt time.Time) error {
	return s.markRecipient(ctx, `UPDATE email_recipients SET clicked_at = $1 WHERE id = $2 AND clicked_at IS NULL`, id, clickedAt)
}

func (s *PGCampaignStore) markRecipient(ctx context.Context, query string, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to update recipient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row does not exist or the timestamp is already set;
		// verify which to keep first-touch semantics error-free.
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM email_recipients WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check recipient: %w", err)
		}
		if !exists {
			return ErrRecipientNotFound
		}
	}
	return nil
}

// GetSettings reads the single sender-identity row seeded by the schema
// migration.
func (s *PGCampaignStore) GetSettings(ctx context.Context) (*Settings, error) {
	var settings Settings
	err := s.pool.QueryRow(ctx, `SELECT from_name, from_email, reply_to, updated_at FROM email_settings`).
		Scan(&settings.FromName, &settings.FromEmail, &settings.ReplyTo, &settings.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get email settings: %w", err)
	}
	return &settings, nil
}

func (s *PGCampaignStore) UpdateSettings(ctx context.Context, settings *Settings) error {
	_, err := s.pool.Exec(ctx, `UPDATE email_settings
		SET from_name = $1, from_email = $2, reply_to = $3, updated_at = $4`,
		settings.FromName, settings.FromEmail, settings.ReplyTo, settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update email settings: %w", err)
	}
	return nil
}

func scanCampaign(row pgx.Row) (*Campaign, error) {
	var campaign Campaign
	err := row.Scan(&campaign.ID, &campaign.TemplateID, &campaign.Name, &campaign.Status,
		&campaign.SentAt, &campaign.CreatedAt, &campaign.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan campaign: %w", err)
	}
	return &campaign, nil
}
