package notify

import (
	"github.com/rs/zerolog"

	"kapacity/api/internal/config"
	"kapacity/api/internal/models"
)

// NewFromConfig wires a sender for each configured channel. Outside
// production, unconfigured channels get a LogSender.
func NewFromConfig(cfg config.NotifyConfig, production bool, log zerolog.Logger) *Dispatcher {
	senders := make(map[models.Channel]Sender, 3)

	if cfg.SMTP.Host != "" {
		senders[models.ChannelEmail] = NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	if cfg.SMS.URL != "" {
		senders[models.ChannelSMS] = NewSMSSender(GatewayConfig(cfg.SMS), nil)
	}
	if cfg.WhatsApp.URL != "" {
		senders[models.ChannelWhatsApp] = NewWhatsAppSender(GatewayConfig(cfg.WhatsApp), nil)
	}

	if !production {
		for _, ch := range []models.Channel{models.ChannelEmail, models.ChannelSMS, models.ChannelWhatsApp} {
			if _, ok := senders[ch]; !ok {
				senders[ch] = NewLogSender(ch, log)
			}
		}
	}

	fallback, _ := models.ParseChannel(cfg.DefaultChannel)
	return NewDispatcher(log, fallback, senders)
}
