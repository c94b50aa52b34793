package notify

import (
	"context"

	"gopkg.in/gomail.v2"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type smtpMailer struct {
	dialer *gomail.Dialer
	host   string
	from   string
}

func NewMailer(host string, port int, username, password, from string) Mailer {
	return &smtpMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		host:   host,
		from:   from,
	}
}

func (m *smtpMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if m.host == "" {
		return ErrMailerNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	return m.dialer.DialAndSend(msg)
}
