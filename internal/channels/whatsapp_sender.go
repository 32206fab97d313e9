package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"notifyhub_backend/internal/models"
)

// WhatsAppConfig - настройки WhatsApp-шлюза (HTTP API).
type WhatsAppConfig struct {
	BaseURL string
	Token   string
	Sender  string
}

// WhatsAppSender отправляет сообщения через WhatsApp Business API шлюз.
type WhatsAppSender struct {
	config WhatsAppConfig
	client *http.Client
}

func NewWhatsAppSender(config WhatsAppConfig) *WhatsAppSender {
	return &WhatsAppSender{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WhatsAppSender) Kind() models.Channel {
	return models.ChannelWhatsApp
}

func (s *WhatsAppSender) Send(ctx context.Context, d *Delivery) error {
	if s.config.BaseURL == "" {
		return fmt.Errorf("whatsapp gateway is not configured")
	}

	text := fmt.Sprintf("*%s*\n%s", d.Title, d.Body)
	if d.ActionURL != "" {
		text += "\n" + d.ActionURL
	}

	payload := map[string]interface{}{
		"from": s.config.Sender,
		"to":   d.Destination,
		"type": "text",
		"text": map[string]string{
			"body": text,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.Token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp http error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return nil
}
