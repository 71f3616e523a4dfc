package smtp

import (
	"github.com/mystery-message-api/internal/config"
	"gopkg.in/gomail.v2"
)

// Mailer sends multipart (plain text + HTML) emails.
type Mailer interface {
	SendEmail(to, subject, textBody, htmlBody string) error
}

// sender is satisfied by *gomail.Dialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type mailer struct {
	from   string
	dialer sender
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		from:   cfg.SMTPFrom,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
	}
}

func (m *mailer) SendEmail(to, subject, textBody, htmlBody string) error {
	return m.dialer.DialAndSend(m.compose(to, subject, textBody, htmlBody))
}

func (m *mailer) compose(to, subject, textBody, htmlBody string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", textBody)
	if htmlBody != "" {
		msg.AddAlternative("text/html", htmlBody)
	}
	return msg
}
