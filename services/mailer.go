package services

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type MailMessage struct {
	To        string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
}

type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// SendGridMailer delivers mail through the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridMailer(apiKey, fromAddress, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg MailMessage) error {
	to := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(m.from, msg.Subject, to, msg.PlainText, msg.HTML)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: unexpected status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func verificationMail(to, name, link string) MailMessage {
	return MailMessage{
		To:      to,
		ToName:  name,
		Subject: "Verify your CampusRide account",
		PlainText: fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening the link below. "+
			"It expires in 24 hours.\n\n%s\n", name, link),
		HTML: fmt.Sprintf(`<p>Hi %s,</p><p>Confirm your email address to start using CampusRide. `+
			`The link expires in 24 hours.</p><p><a href="%s">Verify email</a></p>`, name, link),
	}
}
