package app

import (
	"context"

	"notifyhub_backend/internal/channels"
	"notifyhub_backend/internal/logger"
	"notifyhub_backend/internal/models"
)

// MockSender используется для локальной разработки: вместо реальной
// отправки логирует доставку и сообщает об успехе.
type MockSender struct {
	kind models.Channel
}

func NewMockSender(kind models.Channel) *MockSender {
	return &MockSender{kind: kind}
}

func (m *MockSender) Kind() models.Channel {
	return m.kind
}

func (m *MockSender) Send(ctx context.Context, d *channels.Delivery) error {
	logger.CtxInfo(ctx, "[MOCK] notification delivered",
		"channel", string(m.kind),
		"to", d.Destination,
		"title", d.Title,
	)
	return nil
}
