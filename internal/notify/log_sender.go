package notify

import (
	"context"

	"github.com/rs/zerolog"

	"kapacity/api/internal/models"
)

// LogSender writes messages to the log instead of delivering them. It stands
// in for unconfigured channels in development.
type LogSender struct {
	channel models.Channel
	log     zerolog.Logger
}

func NewLogSender(channel models.Channel, log zerolog.Logger) *LogSender {
	return &LogSender{channel: channel, log: log}
}

func (s *LogSender) Send(_ context.Context, to string, msg Message) error {
	s.log.Info().
		Str("channel", string(s.channel)).
		Str("to", to).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("notification (not delivered)")
	return nil
}
