// Package notify delivers one-time codes over email, SMS and WhatsApp.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"kapacity/api/internal/models"
)

var (
	ErrNoDestination = errors.New("recipient has no address for any channel")
	ErrNoSender      = errors.New("no sender configured for channel")
)

type Recipient struct {
	Email string
	Phone string
}

type Message struct {
	Subject string
	Body    string
}

// Sender delivers a message to a single address on one channel.
type Sender interface {
	Send(ctx context.Context, to string, msg Message) error
}

// Dispatcher picks the channel and destination for a recipient and hands
// the message to that channel's Sender.
type Dispatcher struct {
	senders  map[models.Channel]Sender
	fallback models.Channel
	log      zerolog.Logger
}

func NewDispatcher(log zerolog.Logger, fallback models.Channel, senders map[models.Channel]Sender) *Dispatcher {
	if !fallback.Valid() {
		fallback = models.ChannelEmail
	}
	return &Dispatcher{
		senders:  senders,
		fallback: fallback,
		log:      log,
	}
}

// Resolve returns the channel actually used and its destination. Unknown
// channels fall back to the default; a channel the recipient has no address
// for falls back to whichever address exists, email first.
func (d *Dispatcher) Resolve(requested models.Channel, r Recipient) (models.Channel, string, error) {
	channel := requested
	if !channel.Valid() {
		channel = d.fallback
	}

	if to := destination(channel, r); to != "" {
		return channel, to, nil
	}
	switch {
	case r.Email != "":
		return models.ChannelEmail, r.Email, nil
	case r.Phone != "":
		return models.ChannelSMS, r.Phone, nil
	}
	return "", "", ErrNoDestination
}

// Deliver sends msg on an already resolved channel.
func (d *Dispatcher) Deliver(ctx context.Context, channel models.Channel, to string, msg Message) error {
	sender, ok := d.senders[channel]
	if !ok || sender == nil {
		return fmt.Errorf("%w: %s", ErrNoSender, channel)
	}
	if err := sender.Send(ctx, to, msg); err != nil {
		d.log.Warn().Err(err).Str("channel", string(channel)).Msg("notification delivery failed")
		return fmt.Errorf("send %s: %w", channel, err)
	}
	d.log.Debug().Str("channel", string(channel)).Msg("notification delivered")
	return nil
}

// Send resolves and delivers in one step.
func (d *Dispatcher) Send(ctx context.Context, requested models.Channel, r Recipient, msg Message) (models.Channel, error) {
	channel, to, err := d.Resolve(requested, r)
	if err != nil {
		return "", err
	}
	return channel, d.Deliver(ctx, channel, to, msg)
}

func destination(channel models.Channel, r Recipient) string {
	if channel == models.ChannelEmail {
		return r.Email
	}
	return r.Phone
}
