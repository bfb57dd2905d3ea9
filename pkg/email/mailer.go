package email

import (
	"context"
	"errors"
	"regexp"
)

// EmailSender represents an interface for sending emails.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`       // Email address of the recipient
	Subject  string `json:"subject"`       // Subject of the email
	BodyHTML string `json:"body_html"`     // HTML body of the email
	Tag      string `json:"tag,omitempty"` // Optional delivery-stream tag

	// Optional sender identity overrides; empty fields fall back to the
	// configured sender and support addresses.
	FromName  string `json:"from_name,omitempty"`
	FromEmail string `json:"from_email,omitempty"`
	ReplyTo   string `json:"reply_to,omitempty"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidAddress reports whether addr looks like a deliverable address.
func ValidAddress(addr string) bool {
	return emailRegex.MatchString(addr)
}

// Validate checks required fields before a send attempt.
func (p SendEmailParams) Validate() error {
	if p.SendTo == "" || !emailRegex.MatchString(p.SendTo) {
		return errors.Join(ErrInvalidParams, errors.New("send_to must be a valid email address"))
	}
	if p.Subject == "" {
		return errors.Join(ErrInvalidParams, errors.New("subject is required"))
	}
	if p.BodyHTML == "" {
		return errors.Join(ErrInvalidParams, errors.New("body_html is required"))
	}
	if p.FromEmail != "" && !emailRegex.MatchString(p.FromEmail) {
		return errors.Join(ErrInvalidParams, errors.New("from_email must be a valid email address"))
	}
	if p.ReplyTo != "" && !emailRegex.MatchString(p.ReplyTo) {
		return errors.Join(ErrInvalidParams, errors.New("reply_to must be a valid email address"))
	}
	return nil
}
