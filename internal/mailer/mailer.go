// Package mailer delivers verification emails over SMTP.
package mailer

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/recordshelf/apiserver/config"
)

// Mailer sends plain-text email through a configured SMTP relay.
type Mailer struct {
	cfg config.SMTPConfig
}

func New(cfg config.SMTPConfig) (*Mailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	return &Mailer{cfg: cfg}, nil
}

// Send delivers a single message. Auth is used only when credentials are set,
// so local relays without auth keep working.
func (m *Mailer) Send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	return smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg))
}

// VerificationBody renders the plain-text verification email.
func VerificationBody(username, link string) string {
	return fmt.Sprintf(`Hi %s,

Welcome to Recordshelf! Please confirm your email address by opening the
link below:

%s

If you did not create this account, you can ignore this message.
`, username, link)
}
