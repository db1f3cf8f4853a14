package mail

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"newscrawler/internal/config"
	"newscrawler/internal/ports"
)

// SMTPMailer delivers summary mails over SMTP.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	to     []string
}

var _ ports.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer registers the transport and recipient list.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		to:     cfg.To,
	}
}

// Send posts a single HTML message to all configured recipients.
func (m *SMTPMailer) Send(subject, htmlBody string) error {
	if len(m.to) == 0 {
		return fmt.Errorf("mailer misconfigured: no recipients")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
