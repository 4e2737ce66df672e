package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mail "gopkg.in/gomail.v2"

	"github.com/librevious/deliverability-checker/internal/config"
)

func TestSMTPMailerSend(t *testing.T) {
	var captured *mail.Message
	m := NewSMTPMailer(config.MailerConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"})
	m.dialer.dial = func(msgs ...*mail.Message) error {
		require.Len(t, msgs, 1)
		captured = msgs[0]
		return nil
	}

	id, err := m.Send(context.Background(), &Message{
		To:      []string{"user@example.com"},
		Subject: "Hello",
		Body:    "<p>hi</p>",
		Headers: []string{"Content-Type: text/html; charset=UTF-8", "Reply-To: support@example.com"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NotNil(t, captured)
	assert.Equal(t, []string{"noreply@example.com"}, captured.GetHeader("From"))
	assert.Equal(t, []string{"user@example.com"}, captured.GetHeader("To"))
	assert.Equal(t, []string{"support@example.com"}, captured.GetHeader("Reply-To"))
	assert.Contains(t, captured.GetHeader("Message-ID")[0], "@example.com>")
}

func TestSMTPMailerNoRecipients(t *testing.T) {
	m := NewSMTPMailer(config.MailerConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"})
	m.dialer.dial = func(msgs ...*mail.Message) error { return nil }

	_, err := m.Send(context.Background(), &Message{Subject: "empty"})
	assert.Error(t, err)
}

func TestSMTPMailerContextCancelled(t *testing.T) {
	m := NewSMTPMailer(config.MailerConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"})
	called := false
	m.dialer.dial = func(msgs ...*mail.Message) error { called = true; return nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Send(ctx, &Message{To: []string{"user@example.com"}})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "example.com", domainOf("noreply@example.com"))
	assert.Equal(t, "localhost", domainOf("not-an-address"))
	assert.Equal(t, "localhost", domainOf("trailing@"))
}
