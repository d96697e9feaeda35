package mail

import (
	"testing"

	"github.com/danursasmita/bengkel-ops/util"
	"github.com/stretchr/testify/assert"
	"gopkg.in/gomail.v2"
)

// captureDialer records outbound messages instead of dialing SMTP.
type captureDialer struct {
	messages []*gomail.Message
	err      error
}

func (d *captureDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.messages = append(d.messages, m...)
	return nil
}

func validConfig() SMTPConfig {
	return SMTPConfig{Host: "smtp.test.local", Port: 587, User: "mailer", Pass: "secret", From: "noreply@test.local"}
}

func TestNewSMTPMailer_IncompleteConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  SMTPConfig
	}{
		{"empty", SMTPConfig{}},
		{"missing host", SMTPConfig{Port: 587, From: "noreply@test.local"}},
		{"missing port", SMTPConfig{Host: "smtp.test.local", From: "noreply@test.local"}},
		{"missing from", SMTPConfig{Host: "smtp.test.local", Port: 587}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSMTPMailer(tt.cfg, nil)
			assert.ErrorIs(t, err, ErrNotConfigured)
		})
	}
}

func TestSendVerificationCode_InlineFallback(t *testing.T) {
	util.InitTemplateCache(10)
	m, err := NewSMTPMailer(validConfig(), nil)
	assert.NoError(t, err)

	d := &captureDialer{}
	m.SetDialer(d)

	loc := util.Location{Country: "Indonesia", City: "Jakarta"}
	err = m.SendVerificationCode("user@test.com", "483920", "1.2.3.4", loc)
	assert.NoError(t, err)
	assert.Len(t, d.messages, 1)

	msg := d.messages[0]
	assert.Equal(t, []string{"user@test.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"noreply@test.local"}, msg.GetHeader("From"))
}

func TestRenderVerification_UsesStoredTemplate(t *testing.T) {
	util.InitTemplateCache(10)
	util.TemplateCacheSet(VerificationTemplateName,
		"Code {{code}}",
		"Login from {{ip}} ({{location}}): use {{code}}")

	m, err := NewSMTPMailer(validConfig(), nil)
	assert.NoError(t, err)

	subject, body := m.renderVerification("483920", "1.2.3.4", util.Location{City: "Jakarta", Country: "Indonesia"})
	assert.Equal(t, "Code 483920", subject)
	assert.Equal(t, "Login from 1.2.3.4 (Jakarta, Indonesia): use 483920", body)
}

func TestRenderVerification_InlineCarriesAllFields(t *testing.T) {
	util.InitTemplateCache(10)
	m, err := NewSMTPMailer(validConfig(), nil)
	assert.NoError(t, err)

	subject, body := m.renderVerification("483920", "1.2.3.4", util.Location{})
	assert.NotEmpty(t, subject)
	assert.Contains(t, body, "483920")
	assert.Contains(t, body, "1.2.3.4")
	assert.Contains(t, body, "unknown location")
}

func TestSendVerificationCode_TransportError(t *testing.T) {
	util.InitTemplateCache(10)
	m, err := NewSMTPMailer(validConfig(), nil)
	assert.NoError(t, err)

	m.SetDialer(&captureDialer{err: assert.AnError})
	err = m.SendVerificationCode("user@test.com", "483920", "1.2.3.4", util.Location{})
	assert.Error(t, err)
}

func TestFormatLocation(t *testing.T) {
	assert.Equal(t, "unknown location", formatLocation(util.Location{}))
	assert.Equal(t, "Jakarta, Indonesia", formatLocation(util.Location{City: "Jakarta", Country: "Indonesia"}))
	assert.Equal(t, "Jakarta, Jawa, Indonesia", formatLocation(util.Location{City: "Jakarta", Region: "Jawa", Country: "Indonesia"}))
	assert.Equal(t, "Indonesia", formatLocation(util.Location{Country: "Indonesia"}))
}
