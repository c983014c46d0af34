package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
	"github.com/sirupsen/logrus"

	"github.com/siinc/xero-connect/internal/config"
	"github.com/siinc/xero-connect/internal/models"
)

// ErrMailNotConfigured means no Postmark server token is set
var ErrMailNotConfigured = errors.New("email relay not configured")

// EmailSender is the slice of the Postmark client the mail service uses
type EmailSender interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// MailService relays form submissions and transactional email through
// Postmark. The welcome email is fire-and-forget; the relay endpoints exist
// only to send, so their failures are errors.
type MailService interface {
	// SendContactEmail relays a contact form submission to the sales inbox
	SendContactEmail(ctx context.Context, req models.ContactRequest) error
	// SendEventRegistrationEmail relays an event registration to the sales inbox
	SendEventRegistrationEmail(ctx context.Context, req models.EventRegistrationRequest) error
	// SendWelcomeEmail sends the post-signup welcome. Failures are logged and
	// swallowed; email must never fail an account creation.
	SendWelcomeEmail(ctx context.Context, firstName, email string)
}

type mailService struct {
	sender EmailSender // nil when Postmark is not configured
	from   string
	to     string
	log    *logrus.Logger
}

// NewMailService creates the Postmark-backed mail service. Without a server
// token the service stays constructible but reports ErrMailNotConfigured on
// the relay paths and skips welcome emails.
func NewMailService(cfg *config.Config, log *logrus.Logger) MailService {
	var sender EmailSender
	if cfg.MailConfigured() {
		sender = postmark.NewClient(cfg.PostmarkServerToken, "")
	} else {
		log.Warn("Postmark not configured, email sending disabled")
	}

	return &mailService{
		sender: sender,
		from:   cfg.ContactEmailFrom,
		to:     cfg.ContactEmailTo,
		log:    log,
	}
}

func (m *mailService) SendContactEmail(ctx context.Context, req models.ContactRequest) error {
	if m.sender == nil {
		return ErrMailNotConfigured
	}

	textBody := fmt.Sprintf(
		"New contact form submission\n\nName: %s\nEmail: %s\nCompany: %s\nEmployees: %s\n\nMessage:\n%s\n",
		req.FullName, req.Email, req.Company, req.Employees, req.Message,
	)

	_, err := m.sender.SendEmail(ctx, postmark.Email{
		From:          m.from,
		To:            m.to,
		ReplyTo:       req.Email,
		Subject:       "New contact form submission from " + req.FullName,
		TextBody:      textBody,
		MessageStream: "outbound",
	})
	if err != nil {
		m.log.WithFields(logrus.Fields{"error": err.Error()}).Error("Failed to relay contact email")
		return err
	}

	m.log.WithFields(logrus.Fields{"email": req.Email}).Info("Contact form relayed")
	return nil
}

func (m *mailService) SendEventRegistrationEmail(ctx context.Context, req models.EventRegistrationRequest) error {
	if m.sender == nil {
		return ErrMailNotConfigured
	}

	textBody := fmt.Sprintf(
		"New event registration\n\nEvent: %s\nName: %s\nEmail: %s\nCompany: %s\n",
		req.Event, req.FullName, req.Email, req.Company,
	)

	_, err := m.sender.SendEmail(ctx, postmark.Email{
		From:          m.from,
		To:            m.to,
		ReplyTo:       req.Email,
		Subject:       "New registration for " + req.Event,
		TextBody:      textBody,
		MessageStream: "outbound",
	})
	if err != nil {
		m.log.WithFields(logrus.Fields{"error": err.Error()}).Error("Failed to relay event registration email")
		return err
	}

	m.log.WithFields(logrus.Fields{"email": req.Email, "event": req.Event}).Info("Event registration relayed")
	return nil
}

func (m *mailService) SendWelcomeEmail(ctx context.Context, firstName, email string) {
	if m.sender == nil {
		m.log.Warn("Postmark not configured, skipping welcome email")
		return
	}

	htmlBody := fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h1>Welcome to Siinc!</h1>
  <p>Hi %s,</p>
  <p>Thank you for signing up for Siinc! Your account has been successfully created.</p>
  <p>You can now log in and start protecting your Autodesk Construction Cloud data.</p>
  <p><a href="https://app.siinc.io">Log In to Your Account</a></p>
  <p>If you have any questions, reach out to support@siinc.io.</p>
</div>`, firstName)

	textBody := fmt.Sprintf(`Welcome to Siinc!

Hi %s,

Thank you for signing up for Siinc! Your account has been successfully created.

You can now log in at https://app.siinc.io and start protecting your Autodesk Construction Cloud data.

If you have any questions, reach out to support@siinc.io.

Best regards,
The Siinc Team
`, firstName)

	_, err := m.sender.SendEmail(ctx, postmark.Email{
		From:          m.from,
		To:            email,
		Subject:       "Welcome to Siinc - Your Account is Ready!",
		HTMLBody:      htmlBody,
		TextBody:      textBody,
		MessageStream: "outbound",
	})
	if err != nil {
		// Not critical to account creation
		m.log.WithFields(logrus.Fields{
			"email": email,
			"error": err.Error(),
		}).Warn("Failed to send welcome email")
		return
	}

	m.log.WithFields(logrus.Fields{"email": email}).Info("Welcome email sent")
}
