// Package mailer sends outbound email through the configured SMTP
// transport and ties each send to the email log and tracking pipeline.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mail "gopkg.in/gomail.v2"

	"github.com/librevious/deliverability-checker/internal/config"
)

// Message is one outbound email. Headers are raw header lines, the
// same shape they are stored in the log. Attachments are local file
// paths.
type Message struct {
	To          []string
	Subject     string
	Body        string
	Headers     []string
	Attachments []string
}

// Mailer delivers a message and returns the transport's message ID.
type Mailer interface {
	Send(ctx context.Context, msg *Message) (string, error)
}

// SMTPMailer delivers via SMTP using gomail.
type SMTPMailer struct {
	dialer *gomailDialer
	from   string
}

// gomailDialer narrows *mail.Dialer for test doubles.
type gomailDialer struct {
	dial func(m ...*mail.Message) error
}

// NewSMTPMailer builds a mailer from the transport config.
func NewSMTPMailer(cfg config.MailerConfig) *SMTPMailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.SkipTLSVerify {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true, ServerName: cfg.Host}
	}
	return &SMTPMailer{
		dialer: &gomailDialer{dial: d.DialAndSend},
		from:   cfg.From,
	}
}

// Send delivers the message. The returned message ID is generated
// locally and stamped into the Message-ID header so bounces can be
// correlated later.
func (m *SMTPMailer) Send(ctx context.Context, msg *Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(msg.To) == 0 {
		return "", fmt.Errorf("send: no recipients")
	}

	messageID := uuid.New().String()

	gm := mail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To...)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetHeader("Message-ID", "<"+messageID+"@"+domainOf(m.from)+">")

	contentType := "text/plain"
	for _, h := range msg.Headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if strings.EqualFold(name, "content-type") {
			if strings.Contains(strings.ToLower(value), "text/html") {
				contentType = "text/html"
			}
			continue
		}
		gm.SetHeader(name, value)
	}
	gm.SetBody(contentType, msg.Body)

	for _, path := range msg.Attachments {
		gm.Attach(path)
	}

	if err := m.dialer.dial(gm); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return messageID, nil
}

func domainOf(address string) string {
	if _, domain, ok := strings.Cut(address, "@"); ok && domain != "" {
		return domain
	}
	return "localhost"
}
