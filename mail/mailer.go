// Package mail sends the address-verification emails. The SMTP transport
// and template store are injected explicitly so tests can substitute both.
package mail

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danursasmita/bengkel-ops/util"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

// ErrNotConfigured is returned when the SMTP transport settings are absent
// or incomplete. The login flow surfaces it as a server error during
// challenge issuance: silently skipping the send would leave the user with
// a code they can never receive.
var ErrNotConfigured = errors.New("mail transport not configured")

// VerificationTemplateName is the logical name looked up in the template
// store before falling back to the inline message.
const VerificationTemplateName = "ip-verification"

// Mailer delivers a verification code to an account's registered email.
type Mailer interface {
	SendVerificationCode(to, code, ipAddress string, loc util.Location) error
}

// Dialer is the subset of gomail.Dialer used by SMTPMailer, extracted so
// tests can fake the transport.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig carries the transport settings for the SMTP mailer.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Complete reports whether the settings are sufficient to send mail.
func (c SMTPConfig) Complete() bool {
	return c.Host != "" && c.Port != 0 && c.From != ""
}

// SMTPMailer sends verification emails over SMTP, rendering the message
// from the template store when a template named VerificationTemplateName
// exists and from a fixed inline fallback otherwise.
type SMTPMailer struct {
	cfg    SMTPConfig
	dialer Dialer
	db     *gorm.DB
}

// NewSMTPMailer builds a mailer from the given settings. Returns
// ErrNotConfigured when the settings are incomplete.
func NewSMTPMailer(cfg SMTPConfig, db *gorm.DB) (*SMTPMailer, error) {
	if !cfg.Complete() {
		return nil, ErrNotConfigured
	}
	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		db:     db,
	}, nil
}

// SetDialer replaces the transport. Tests use this to capture outbound
// messages without a real SMTP server.
func (m *SMTPMailer) SetDialer(d Dialer) {
	m.dialer = d
}

func (m *SMTPMailer) SendVerificationCode(to, code, ipAddress string, loc util.Location) error {
	subject, body := m.renderVerification(code, ipAddress, loc)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

// renderVerification produces the subject and HTML body for the code email.
// Stored templates use the placeholders {{code}}, {{ip}} and {{location}}.
func (m *SMTPMailer) renderVerification(code, ipAddress string, loc util.Location) (string, string) {
	location := formatLocation(loc)

	if subject, body, ok := util.GetEmailTemplate(m.db, VerificationTemplateName); ok {
		r := strings.NewReplacer(
			"{{code}}", code,
			"{{ip}}", ipAddress,
			"{{location}}", location,
		)
		return r.Replace(subject), r.Replace(body)
	}

	subject := "Verify your login from a new address"
	body := fmt.Sprintf(`
		<h3>New sign-in address detected</h3>
		<p>A sign-in to your account was attempted from <strong>%s</strong> (%s).</p>
		<p>Enter the following code to confirm it was you: <strong>%s</strong></p>
		<p>The code expires in 10 minutes. If this was not you, you can ignore this email.</p>
	`, ipAddress, location, code)
	return subject, body
}

func formatLocation(loc util.Location) string {
	parts := make([]string, 0, 3)
	if loc.City != "" {
		parts = append(parts, loc.City)
	}
	if loc.Region != "" {
		parts = append(parts, loc.Region)
	}
	if loc.Country != "" {
		parts = append(parts, loc.Country)
	}
	if len(parts) == 0 {
		return "unknown location"
	}
	return strings.Join(parts, ", ")
}
