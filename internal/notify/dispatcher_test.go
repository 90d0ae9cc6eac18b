package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kapacity/api/internal/config"
	"kapacity/api/internal/models"
)

type captureSender struct {
	to   []string
	msgs []Message
	err  error
}

func (c *captureSender) Send(_ context.Context, to string, msg Message) error {
	c.to = append(c.to, to)
	c.msgs = append(c.msgs, msg)
	return c.err
}

func TestResolve(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(zerolog.Nop(), models.ChannelEmail, nil)
	both := Recipient{Email: "a@b.com", Phone: "+2348031234567"}

	tests := []struct {
		name      string
		requested models.Channel
		r         Recipient
		channel   models.Channel
		to        string
		err       error
	}{
		{"email", models.ChannelEmail, both, models.ChannelEmail, "a@b.com", nil},
		{"sms", models.ChannelSMS, both, models.ChannelSMS, "+2348031234567", nil},
		{"whatsapp", models.ChannelWhatsApp, both, models.ChannelWhatsApp, "+2348031234567", nil},
		{"unknown falls back to email", "pigeon", both, models.ChannelEmail, "a@b.com", nil},
		{"empty falls back to email", "", both, models.ChannelEmail, "a@b.com", nil},
		{"sms without phone uses email", models.ChannelSMS, Recipient{Email: "a@b.com"}, models.ChannelEmail, "a@b.com", nil},
		{"email without address uses sms", models.ChannelEmail, Recipient{Phone: "+2348031234567"}, models.ChannelSMS, "+2348031234567", nil},
		{"nothing", models.ChannelEmail, Recipient{}, "", "", ErrNoDestination},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channel, to, err := d.Resolve(tt.requested, tt.r)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.channel, channel)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestSendDelegates(t *testing.T) {
	t.Parallel()

	sms := &captureSender{}
	d := NewDispatcher(zerolog.Nop(), models.ChannelEmail, map[models.Channel]Sender{models.ChannelSMS: sms})

	channel, err := d.Send(context.Background(), models.ChannelSMS, Recipient{Phone: "+2348031234567"}, Message{Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, models.ChannelSMS, channel)
	assert.Equal(t, []string{"+2348031234567"}, sms.to)
	assert.Equal(t, "hi", sms.msgs[0].Body)
}

func TestDeliverErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	d := NewDispatcher(zerolog.Nop(), models.ChannelEmail, map[models.Channel]Sender{
		models.ChannelEmail: &captureSender{err: boom},
	})

	err := d.Deliver(context.Background(), models.ChannelEmail, "a@b.com", Message{})
	assert.ErrorIs(t, err, boom)

	err = d.Deliver(context.Background(), models.ChannelWhatsApp, "+2348031234567", Message{})
	assert.ErrorIs(t, err, ErrNoSender)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	dev := NewFromConfig(config.NotifyConfig{DefaultChannel: "sms"}, false, zerolog.Nop())
	assert.Len(t, dev.senders, 3)
	assert.IsType(t, &LogSender{}, dev.senders[models.ChannelEmail])
	assert.Equal(t, models.ChannelSMS, dev.fallback)

	prod := NewFromConfig(config.NotifyConfig{
		SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: 587},
	}, true, zerolog.Nop())
	assert.Len(t, prod.senders, 1)
	assert.IsType(t, &SMTPSender{}, prod.senders[models.ChannelEmail])
	assert.Equal(t, models.ChannelEmail, prod.fallback)
}

func TestCodeMessage(t *testing.T) {
	t.Parallel()

	verify := CodeMessage(models.OTPPurposeVerifyAccount, "123456", 15*time.Minute)
	assert.Contains(t, verify.Body, "123456")
	assert.Contains(t, verify.Body, "15 minutes")
	assert.Contains(t, verify.Subject, "Verify")

	reset := CodeMessage(models.OTPPurposeResetPassword, "654321", 10*time.Second)
	assert.Contains(t, reset.Body, "654321")
	assert.Contains(t, reset.Body, "1 minutes")
	assert.Contains(t, reset.Subject, "Reset")
}

func TestBuildMail(t *testing.T) {
	t.Parallel()

	raw := string(buildMail("no-reply@kapacity.local", "a@b.com", Message{Subject: "S", Body: "B"}))
	assert.Contains(t, raw, "From: no-reply@kapacity.local\r\n")
	assert.Contains(t, raw, "To: a@b.com\r\n")
	assert.Contains(t, raw, "Subject: S\r\n")
	assert.True(t, len(raw) > 0 && raw[len(raw)-1] == 'B')
}
