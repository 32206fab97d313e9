package channels

import (
	"context"
	"fmt"

	"notifyhub_backend/internal/models"

	"gopkg.in/gomail.v2"
)

// EmailConfig содержит конфигурацию SMTP сервера
type EmailConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// EmailSender отправляет уведомления по SMTP через gomail.
type EmailSender struct {
	config EmailConfig
	dialer *gomail.Dialer
}

func NewEmailSender(config EmailConfig) (*EmailSender, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if config.Port <= 0 || config.Port > 65535 {
		return nil, fmt.Errorf("invalid SMTP port: %d", config.Port)
	}

	return &EmailSender{
		config: config,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
	}, nil
}

func (s *EmailSender) Kind() models.Channel {
	return models.ChannelEmail
}

func (s *EmailSender) Send(ctx context.Context, d *Delivery) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.config.FromEmail, s.config.FromName)
	m.SetHeader("To", d.Destination)
	m.SetHeader("Subject", d.Title)

	body := d.Body
	if d.ActionURL != "" {
		label := d.ActionLabel
		if label == "" {
			label = "Open"
		}
		body = fmt.Sprintf("%s\n\n%s: %s", body, label, d.ActionURL)
	}
	m.SetBody("text/plain", body)

	// gomail не принимает context, поэтому отправку оборачиваем так,
	// чтобы таймаут диспетчера не блокировал остальные каналы.
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send aborted: %w", ctx.Err())
	}
}
