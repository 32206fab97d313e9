package channels

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"notifyhub_backend/internal/models"
)

// SMSConfig - настройки SMS-шлюза (HTTP API).
type SMSConfig struct {
	BaseURL  string
	APIKey   string
	SenderID string
}

// SMSSender отправляет текстовые сообщения через HTTP-шлюз провайдера.
type SMSSender struct {
	config SMSConfig
	client *http.Client
}

func NewSMSSender(config SMSConfig) *SMSSender {
	return &SMSSender{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SMSSender) Kind() models.Channel {
	return models.ChannelSMS
}

func (s *SMSSender) Send(ctx context.Context, d *Delivery) error {
	if s.config.BaseURL == "" {
		return fmt.Errorf("sms gateway is not configured")
	}

	// SMS несет заголовок и текст одной строкой; ссылка действия
	// добавляется в конец, если есть.
	text := d.Title + ": " + d.Body
	if d.ActionURL != "" {
		text += " " + d.ActionURL
	}

	form := url.Values{}
	form.Set("senderid", s.config.SenderID)
	form.Set("msgType", "text")
	form.Set("msg", text)
	form.Set("mobile", d.Destination)
	form.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if s.config.APIKey != "" {
		req.Header.Set("apikey", s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms http error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms api error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}
