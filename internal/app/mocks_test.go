package app

import (
	"context"
	"testing"

	"notifyhub_backend/internal/channels"
	"notifyhub_backend/internal/config"
	"notifyhub_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSender_Send(t *testing.T) {
	t.Parallel()

	mock := NewMockSender(models.ChannelEmail)
	assert.Equal(t, models.ChannelEmail, mock.Kind())

	err := mock.Send(context.Background(), &channels.Delivery{
		Destination: "user@example.com",
		Title:       "Низкий остаток",
		Body:        "Товар заканчивается",
	})
	assert.NoError(t, err, "Mock всегда сообщает об успешной доставке")
}

// В development ненастроенные каналы получают mock-транспорты
func TestBuildSenderRegistry_DevUsesMocks(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Server.Env = "development"

	registry := buildSenderRegistry(context.Background(), cfg)

	for _, ch := range []models.Channel{
		models.ChannelEmail,
		models.ChannelPush,
		models.ChannelSMS,
		models.ChannelWhatsApp,
	} {
		sender, ok := registry.Lookup(ch)
		require.True(t, ok, "В development канал %s должен иметь транспорт", ch)
		_, isMock := sender.(*MockSender)
		assert.True(t, isMock, "Ненастроенный канал %s должен получить mock", ch)
	}
}

// В production ненастроенный канал остается без транспорта (будет skipped)
func TestBuildSenderRegistry_ProdSkipsUnconfigured(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Server.Env = "production"

	registry := buildSenderRegistry(context.Background(), cfg)

	for _, ch := range []models.Channel{
		models.ChannelEmail,
		models.ChannelPush,
		models.ChannelSMS,
		models.ChannelWhatsApp,
	} {
		_, ok := registry.Lookup(ch)
		assert.False(t, ok, "В production mock-транспортов быть не должно")
	}
}
