package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type GatewayConfig struct {
	URL    string
	APIKey string
	Sender string
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// SMSSender posts a form-encoded message to an SMS gateway.
type SMSSender struct {
	cfg    GatewayConfig
	client *http.Client
}

func NewSMSSender(cfg GatewayConfig, client *http.Client) *SMSSender {
	if client == nil {
		client = defaultClient()
	}
	return &SMSSender{cfg: cfg, client: client}
}

func (s *SMSSender) Send(ctx context.Context, to string, msg Message) error {
	form := url.Values{}
	form.Set("senderid", s.cfg.Sender)
	form.Set("mobile", to)
	form.Set("msg", msg.Body)
	form.Set("msgType", "text")
	form.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if s.cfg.APIKey != "" {
		req.Header.Set("apikey", s.cfg.APIKey)
	}
	return do(s.client, req)
}

// WhatsAppSender posts a JSON text message to a WhatsApp gateway.
type WhatsAppSender struct {
	cfg    GatewayConfig
	client *http.Client
}

func NewWhatsAppSender(cfg GatewayConfig, client *http.Client) *WhatsAppSender {
	if client == nil {
		client = defaultClient()
	}
	return &WhatsAppSender{cfg: cfg, client: client}
}

type whatsAppPayload struct {
	MessageType string `json:"messageType"`
	Token       string `json:"token"`
	From        string `json:"from"`
	To          string `json:"to"`
	Text        string `json:"text"`
}

func (s *WhatsAppSender) Send(ctx context.Context, to string, msg Message) error {
	body, err := json.Marshal(whatsAppPayload{
		MessageType: "text",
		Token:       s.cfg.APIKey,
		From:        s.cfg.Sender,
		To:          to,
		Text:        msg.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(s.client, req)
}

func do(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
