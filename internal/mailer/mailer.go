// Package mailer sends transactional email.
package mailer

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// Mailer delivers account email.
type Mailer interface {
	SendConfirmation(ctx context.Context, to, link string) error
}

// EmailSender is the subset of the Resend emails service used here.
type EmailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendMailer sends through the Resend API.
type ResendMailer struct {
	emails EmailSender
	from   string
}

// NewResendMailer builds a mailer from an API key.
func NewResendMailer(apiKey, from string) *ResendMailer {
	client := resend.NewClient(apiKey)
	return &ResendMailer{emails: client.Emails, from: from}
}

// NewResendMailerWithSender builds a mailer around an existing sender.
func NewResendMailerWithSender(emails EmailSender, from string) *ResendMailer {
	return &ResendMailer{emails: emails, from: from}
}

// SendConfirmation mails the sign-up confirmation link.
func (m *ResendMailer) SendConfirmation(ctx context.Context, to, link string) error {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: "Confirm your showroom console account",
		Html:    confirmationHTML(link),
		Text:    "Confirm your email address: " + link,
	}
	if _, err := m.emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}
	return nil
}

func confirmationHTML(link string) string {
	safe := html.EscapeString(link)
	return fmt.Sprintf(`<p>Welcome to the showroom console.</p><p><a href="%s">Confirm your email address</a></p><p>The link is valid for 24 hours. An administrator approves new accounts after confirmation.</p>`, safe)
}

// LogMailer logs messages instead of sending them. Used when no API key is set.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer returns a mailer that writes to logger.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendConfirmation logs the link.
func (m *LogMailer) SendConfirmation(ctx context.Context, to, link string) error {
	m.logger.InfoContext(ctx, "confirmation email", "to", to, "link", link)
	return nil
}
