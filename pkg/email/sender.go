// Package email sends transactional mail behind a provider-agnostic
// interface, with a Postmark implementation for production and a
// file-writing sender for local development.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
)

var (
	ErrFailedToSend  = errors.New("email.failed_to_send")
	ErrInvalidConfig = errors.New("email.invalid_config")
	ErrInvalidParams = errors.New("email.invalid_params")
)

// Sender delivers one email.
type Sender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams are the provider-independent fields of one message.
type SendEmailParams struct {
	SendTo   string
	Subject  string
	BodyHTML string
	Tag      string
}

// Validate checks the params before they reach a provider.
func (p SendEmailParams) Validate() error {
	if _, err := mail.ParseAddress(p.SendTo); err != nil {
		return fmt.Errorf("%w: recipient %q", ErrInvalidParams, p.SendTo)
	}
	if p.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	}
	if p.BodyHTML == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}

// Config holds the provider credentials and sender identity. The
// Postmark tokens are optional so development setups can run on the
// DevSender.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
	DevOutputDir         string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}
