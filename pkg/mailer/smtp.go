package mailer

import (
	"fmt"
	"net/smtp"
)

// Config holds SMTP settings for sending reminder emails.
type Config struct {
	Host        string
	Port        int
	User        string
	Pass        string
	FromAddress string
	FromName    string
}

// Mailer sends plain-text email over SMTP with PLAIN auth.
type Mailer struct {
	cfg Config
}

// New returns a Mailer. A zero Host means sends are no-ops (local dev).
func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg}
}

// Send delivers a single plain-text email to one recipient.
func (m *Mailer) Send(to, subject, body string) error {
	if m.cfg.Host == "" {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}
	from := m.cfg.FromAddress
	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.cfg.FromName, from, to, subject, body)
	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
