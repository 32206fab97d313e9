package channels

import (
	"context"
	"fmt"
	"os"

	"notifyhub_backend/internal/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// PushSender отправляет push-уведомления через Firebase Cloud Messaging.
// Destination - FCM device token из настроек пользователя.
type PushSender struct {
	client *messaging.Client
}

func NewPushSender(ctx context.Context, credentialsPath string) (*PushSender, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("firebase credentials path not provided")
	}

	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("firebase credentials file not found at %s", credentialsPath)
	}

	opt := option.WithCredentialsFile(credentialsPath)

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase messaging client: %w", err)
	}

	return &PushSender{client: client}, nil
}

func (s *PushSender) Kind() models.Channel {
	return models.ChannelPush
}

func (s *PushSender) Send(ctx context.Context, d *Delivery) error {
	msg := &messaging.Message{
		Token: d.Destination,
		Notification: &messaging.Notification{
			Title: d.Title,
			Body:  d.Body,
		},
	}

	if d.ActionURL != "" {
		msg.Data = map[string]string{
			"action_url":   d.ActionURL,
			"action_label": d.ActionLabel,
		}
	}

	if _, err := s.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("fcm send failed: %w", err)
	}
	return nil
}
