package smtp

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-marketplace-auth/internal/config"
	"github.com/go-marketplace-auth/internal/domain"
)

type captured struct {
	addr string
	from string
	to   []string
	msg  string
	auth smtp.Auth
}

func newTestMailer(cfg *config.Config, sendErr error) (*Mailer, *captured) {
	c := &captured{}
	m := NewMailer(cfg)
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		c.addr, c.auth, c.from, c.to, c.msg = addr, a, from, to, string(msg)
		return sendErr
	}
	return m, c
}

func otpMessage() domain.MailMessage {
	return domain.MailMessage{
		To:       "a@x.com",
		Subject:  "Verify your email",
		Template: domain.TemplateOTPCode,
		Payload:  domain.OTPCodePayload{Description: "Use this code", Code: "123456"},
	}
}

func TestSend_ComposesHTMLMessage(t *testing.T) {
	m, c := newTestMailer(&config.Config{SMTPHost: "mail", SMTPPort: "1025", SMTPFrom: "noreply@shop.test"}, nil)
	require.NoError(t, m.Send(context.Background(), otpMessage()))

	assert.Equal(t, "mail:1025", c.addr)
	assert.Nil(t, c.auth)
	assert.Equal(t, []string{"a@x.com"}, c.to)
	assert.Contains(t, c.msg, "Subject: Verify your email\r\n")
	assert.Contains(t, c.msg, "Content-Type: text/html")
	assert.Contains(t, c.msg, "123456")
}

func TestSend_UsesAuthWhenConfigured(t *testing.T) {
	m, c := newTestMailer(&config.Config{SMTPHost: "mail", SMTPPort: "587", SMTPUsername: "u", SMTPPassword: "p"}, nil)
	require.NoError(t, m.Send(context.Background(), otpMessage()))
	assert.NotNil(t, c.auth)
}

func TestSend_RelayFailure(t *testing.T) {
	m, _ := newTestMailer(&config.Config{SMTPHost: "mail", SMTPPort: "25"}, errors.New("connection refused"))
	err := m.Send(context.Background(), otpMessage())
	assert.ErrorContains(t, err, "connection refused")
}

func TestSend_CancelledContext(t *testing.T) {
	m, c := newTestMailer(&config.Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, otpMessage()), context.Canceled)
	assert.Empty(t, c.addr)
}
