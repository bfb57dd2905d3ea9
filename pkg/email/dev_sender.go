package email

import (
	"context"
	"log/slog"
)

// devSender logs emails instead of delivering them. Used in development and
// tests where no Postmark tokens are configured.
type devSender struct {
	log *slog.Logger
}

// NewDevSender returns an EmailSender that writes messages to the logger.
func NewDevSender(log *slog.Logger) EmailSender {
	if log == nil {
		log = slog.Default()
	}
	return &devSender{log: log}
}

func (s *devSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "dev email sender",
		"send_to", params.SendTo,
		"subject", params.Subject,
		"tag", params.Tag,
		"body_length", len(params.BodyHTML),
	)
	return nil
}
