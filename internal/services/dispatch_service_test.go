package services

import (
	"context"
	"testing"
	"time"

	"notifyhub_backend/internal/channels"
	"notifyhub_backend/internal/models"
	"notifyhub_backend/internal/services/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type dispatchFixture struct {
	service          DispatchService
	notificationRepo *fakeNotificationRepo
	preferenceRepo   *fakePreferenceRepo
	clock            *fakeClock
}

func newDispatchFixture(t *testing.T, senders ...channels.Sender) *dispatchFixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	notificationRepo := newFakeNotificationRepo()
	notificationRepo.nowFn = clock.Now
	preferenceRepo := newFakePreferenceRepo()

	service := NewDispatchService(
		notificationRepo,
		NewPreferenceService(preferenceRepo),
		channels.NewRegistry(senders...),
		clock,
		2*time.Second,
	)

	return &dispatchFixture{
		service:          service,
		notificationRepo: notificationRepo,
		preferenceRepo:   preferenceRepo,
		clock:            clock,
	}
}

func baseRequest() *dto.DispatchRequest {
	return &dto.DispatchRequest{
		UserID:       "user-1",
		Title:        "Низкий остаток",
		Message:      "Товар SKU-100 заканчивается на складе",
		SourceSystem: "inventory",
	}
}

func TestDispatch_GoldenPath(t *testing.T) {
	t.Parallel()

	email := &fakeSender{kind: models.ChannelEmail}
	f := newDispatchFixture(t, email)
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:       "user-1",
		EmailEnabled: true,
		EmailAddress: "user@example.com",
	})

	req := baseRequest()
	req.Channels = []string{"in_app", "email"}

	resp, err := f.service.Dispatch(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.False(t, resp.Grouped)
	assert.False(t, resp.Deferred)
	assert.Equal(t, "sent", resp.DeliveryStatus["in_app"])
	assert.Equal(t, "sent", resp.DeliveryStatus["email"])
	assert.Equal(t, 1, email.callCount())
	assert.Equal(t, []string{"user@example.com"}, email.destinations)

	stored := f.notificationRepo.get(resp.NotificationID)
	require.NotNil(t, stored, "Запись уведомления должна существовать")
	assert.NotNil(t, stored.DeliveredAt, "delivered_at должен быть проставлен")
	assert.Equal(t, models.NotificationTypeInfo, stored.Type, "Тип по умолчанию - info")
	assert.Equal(t, models.PriorityDefault, stored.Priority)
}

// Отказ одного канала не влияет ни на другие каналы, ни на успех dispatch
func TestDispatch_ChannelIsolation(t *testing.T) {
	t.Parallel()

	email := &fakeSender{kind: models.ChannelEmail}
	sms := &fakeSender{kind: models.ChannelSMS, err: assert.AnError}
	f := newDispatchFixture(t, email, sms)
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:       "user-1",
		EmailEnabled: true,
		SMSEnabled:   true,
		EmailAddress: "user@example.com",
		PhoneNumber:  "+77001234567",
	})

	req := baseRequest()
	req.Channels = []string{"email", "sms"}

	resp, err := f.service.Dispatch(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, resp.Success, "Отказ канала не делает dispatch ошибочным")
	assert.Equal(t, "sent", resp.DeliveryStatus["email"])
	assert.Equal(t, "failed", resp.DeliveryStatus["sms"])
	assert.Equal(t, "sent", resp.DeliveryStatus["in_app"])
}

func TestDispatch_SenderPanicIsContained(t *testing.T) {
	t.Parallel()

	push := &fakeSender{kind: models.ChannelPush, panic: true}
	f := newDispatchFixture(t, push)
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:      "user-1",
		PushEnabled: true,
		DeviceToken: "device-token-1",
	})

	req := baseRequest()
	req.Channels = []string{"push"}

	resp, err := f.service.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "failed", resp.DeliveryStatus["push"], "Паника транспорта превращается в failed")
	assert.Equal(t, "sent", resp.DeliveryStatus["in_app"])
}

func TestDispatch_SlowSenderTimesOut(t *testing.T) {
	t.Parallel()

	slow := &fakeSender{kind: models.ChannelEmail, delay: 10 * time.Second}
	f := newDispatchFixture(t, slow)
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:       "user-1",
		EmailEnabled: true,
		EmailAddress: "user@example.com",
	})

	req := baseRequest()
	req.Channels = []string{"email"}

	resp, err := f.service.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "failed", resp.DeliveryStatus["email"], "Зависший транспорт обрезается по таймауту")
}

// Нет адреса доставки - канал пропускается, транспорт не трогается
func TestDispatch_MissingDestinationSkips(t *testing.T) {
	t.Parallel()

	email := &fakeSender{kind: models.ChannelEmail}
	f := newDispatchFixture(t, email)
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:       "user-1",
		EmailEnabled: true,
		// EmailAddress пуст
	})

	req := baseRequest()
	req.Channels = []string{"email"}

	resp, err := f.service.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "skipped", resp.DeliveryStatus["email"])
	assert.Equal(t, 0, email.callCount(), "Транспорт не должен вызываться без адреса")
}

// Карта статусов переживает запись в JSONB и обратное чтение без потерь,
// включая статус skipped
func TestDispatch_DeliveryStatusRoundTrip(t *testing.T) {
	t.Parallel()

	email := &fakeSender{kind: models.ChannelEmail}
	f := newDispatchFixture(t, email)
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:       "user-1",
		EmailEnabled: true,
		// EmailAddress пуст - email получит статус skipped
	})

	req := baseRequest()
	req.Channels = []string{"in_app", "email"}

	resp, err := f.service.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "skipped", resp.DeliveryStatus["email"])

	inbox := NewNotificationService(f.notificationRepo)
	got, err := inbox.GetNotification(context.Background(), "user-1", resp.NotificationID)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"in_app": "sent",
		"email":  "skipped",
	}, got.DeliveryStatus, "Карта статусов должна читаться ровно такой, какой была записана")
	assert.ElementsMatch(t, []string{"in_app", "email"}, got.Channels)
	require.NotNil(t, got.DeliveredAt)
}

func TestDispatch_UnregisteredChannelSkips(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t) // пустой реестр транспортов
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:          "user-1",
		WhatsAppEnabled: true,
		WhatsAppNumber:  "+77001234567",
	})

	req := baseRequest()
	req.Channels = []string{"whatsapp"}

	resp, err := f.service.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "skipped", resp.DeliveryStatus["whatsapp"])
}

func TestDispatch_DisabledChannelFilteredOut(t *testing.T) {
	t.Parallel()

	sms := &fakeSender{kind: models.ChannelSMS}
	f := newDispatchFixture(t, sms)
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:      "user-1",
		SMSEnabled:  false,
		PhoneNumber: "+77001234567",
	})

	req := baseRequest()
	req.Channels = []string{"sms"}

	resp, err := f.service.Dispatch(context.Background(), req)
	require.NoError(t, err)

	_, present := resp.DeliveryStatus["sms"]
	assert.False(t, present, "Выключенный канал не попадает в итоговый набор")
	assert.Equal(t, "sent", resp.DeliveryStatus["in_app"], "in_app доставляется всегда")
	assert.Equal(t, 0, sms.callCount())
}

func TestDispatch_CategoryPolicyRestrictsChannels(t *testing.T) {
	t.Parallel()

	email := &fakeSender{kind: models.ChannelEmail}
	sms := &fakeSender{kind: models.ChannelSMS}
	f := newDispatchFixture(t, email, sms)
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:           "user-1",
		EmailEnabled:     true,
		SMSEnabled:       true,
		EmailAddress:     "user@example.com",
		PhoneNumber:      "+77001234567",
		CategoryChannels: datatypes.JSON(`{"stock": ["in_app", "email"]}`),
	})

	req := baseRequest()
	req.Category = "stock"
	req.Channels = []string{"email", "sms"}

	resp, err := f.service.Dispatch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "sent", resp.DeliveryStatus["email"])
	_, present := resp.DeliveryStatus["sms"]
	assert.False(t, present, "Политика категории исключает sms")
	assert.Equal(t, 0, sms.callCount())
}

func TestResolveChannels_OrderIndependent(t *testing.T) {
	t.Parallel()

	prefs := &models.UserPreferences{
		UserID:       "user-1",
		EmailEnabled: true,
		PushEnabled:  true,
	}

	a := ResolveChannels([]models.Channel{models.ChannelEmail, models.ChannelPush}, prefs, "")
	b := ResolveChannels([]models.Channel{models.ChannelPush, models.ChannelEmail}, prefs, "")

	assert.Equal(t, a, b, "Порядок запрошенных каналов не должен влиять на результат")
	assert.Equal(t, []models.Channel{models.ChannelInApp, models.ChannelEmail, models.ChannelPush}, a)
}

// --- Группировка ---

func TestDispatch_GroupingMergesWithinWindow(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t)
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:                "user-1",
		GroupingEnabled:       true,
		GroupingWindowMinutes: 5,
	})

	req := baseRequest()
	req.Category = "stock"

	first, err := f.service.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Grouped)

	// Вторая доставка через 2 минуты попадает в окно
	f.clock.now = f.clock.now.Add(2 * time.Minute)

	second, err := f.service.Dispatch(context.Background(), baseRequestWithCategory("stock"))
	require.NoError(t, err)

	assert.True(t, second.Grouped, "Повтор внутри окна должен слиться в группу")
	assert.Equal(t, first.NotificationID, second.NotificationID)

	stored := f.notificationRepo.get(first.NotificationID)
	assert.Equal(t, 2, stored.GroupCount)
	assert.True(t, stored.IsGrouped)
}

func TestDispatch_GroupingWindowElapsed(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t)
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:                "user-1",
		GroupingEnabled:       true,
		GroupingWindowMinutes: 5,
	})

	first, err := f.service.Dispatch(context.Background(), baseRequestWithCategory("stock"))
	require.NoError(t, err)

	// Окно истекло - следующая доставка независима
	f.clock.now = f.clock.now.Add(10 * time.Minute)

	second, err := f.service.Dispatch(context.Background(), baseRequestWithCategory("stock"))
	require.NoError(t, err)

	assert.False(t, second.Grouped, "После истечения окна создается новая запись")
	assert.NotEqual(t, first.NotificationID, second.NotificationID)
}

func TestDispatch_GroupingSkippedWithoutCategory(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t)
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:                "user-1",
		GroupingEnabled:       true,
		GroupingWindowMinutes: 5,
	})

	first, err := f.service.Dispatch(context.Background(), baseRequest())
	require.NoError(t, err)
	second, err := f.service.Dispatch(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.False(t, second.Grouped, "Без категории группировки нет")
	assert.NotEqual(t, first.NotificationID, second.NotificationID)
}

func TestDispatch_GroupingStoreErrorFallsBack(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t)
	f.notificationRepo.groupedErr = assert.AnError
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:                "user-1",
		GroupingEnabled:       true,
		GroupingWindowMinutes: 5,
	})

	resp, err := f.service.Dispatch(context.Background(), baseRequestWithCategory("stock"))
	require.NoError(t, err, "Сбой группировки не должен терять уведомление")
	assert.True(t, resp.Success)
	assert.False(t, resp.Grouped)
	require.NotNil(t, f.notificationRepo.get(resp.NotificationID))
}

// --- Тихие часы и отложенная доставка ---

func TestDispatch_QuietHoursDefers(t *testing.T) {
	t.Parallel()

	email := &fakeSender{kind: models.ChannelEmail}
	f := newDispatchFixture(t, email)
	f.clock.now = time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:            "user-1",
		EmailEnabled:      true,
		EmailAddress:      "user@example.com",
		QuietHoursEnabled: true,
		QuietHoursStart:   "22:00",
		QuietHoursEnd:     "08:00",
	})

	req := baseRequest()
	req.Channels = []string{"email"}

	resp, err := f.service.Dispatch(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, resp.Deferred, "Внутри тихих часов доставка откладывается")
	require.NotNil(t, resp.ScheduledFor)
	assert.Equal(t, time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC), *resp.ScheduledFor)
	assert.Equal(t, 0, email.callCount(), "Каналы не трогаются до конца тихих часов")

	stored := f.notificationRepo.get(resp.NotificationID)
	require.NotNil(t, stored)
	assert.Nil(t, stored.DeliveredAt)
}

func TestDispatch_UrgentBypassesQuietHours(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t)
	f.clock.now = time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:            "user-1",
		QuietHoursEnabled: true,
		QuietHoursStart:   "22:00",
		QuietHoursEnd:     "08:00",
	})

	req := baseRequest()
	req.Priority = models.PriorityUrgent

	resp, err := f.service.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, resp.Deferred, "Urgent доставляется сквозь тихие часы")
	assert.Equal(t, "sent", resp.DeliveryStatus["in_app"])
}

func TestDispatch_ExplicitScheduleDefers(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t)
	future := f.clock.now.Add(4 * time.Hour)

	req := baseRequest()
	req.ScheduledFor = &future

	resp, err := f.service.Dispatch(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, resp.Deferred)
	require.NotNil(t, resp.ScheduledFor)
	assert.Equal(t, future, *resp.ScheduledFor)
}

func TestDeliverDeferred_Delivers(t *testing.T) {
	t.Parallel()

	email := &fakeSender{kind: models.ChannelEmail}
	f := newDispatchFixture(t, email)
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:       "user-1",
		EmailEnabled: true,
		EmailAddress: "user@example.com",
	})

	notification := &models.Notification{
		UserID:       "user-1",
		Title:        "Отложенное",
		Message:      "Доставить утром",
		SourceSystem: "inventory",
		Channels:     datatypes.JSON(`["in_app", "email"]`),
		Priority:     models.PriorityDefault,
		GroupCount:   1,
		ScheduledFor: f.clock.now,
	}
	require.NoError(t, f.notificationRepo.Create(notification))

	err := f.service.DeliverDeferred(context.Background(), notification)
	require.NoError(t, err)

	assert.Equal(t, 1, email.callCount())
	stored := f.notificationRepo.get(notification.ID)
	assert.NotNil(t, stored.DeliveredAt)
}

func TestDeliverDeferred_StillQuietReschedules(t *testing.T) {
	t.Parallel()

	email := &fakeSender{kind: models.ChannelEmail}
	f := newDispatchFixture(t, email)
	f.clock.now = time.Date(2026, 3, 11, 7, 0, 0, 0, time.UTC)
	f.preferenceRepo.put(&models.UserPreferences{
		UserID:            "user-1",
		EmailEnabled:      true,
		EmailAddress:      "user@example.com",
		QuietHoursEnabled: true,
		QuietHoursStart:   "22:00",
		QuietHoursEnd:     "08:00",
	})

	notification := &models.Notification{
		UserID:       "user-1",
		Title:        "Отложенное",
		Message:      "Тихие часы еще идут",
		SourceSystem: "inventory",
		Channels:     datatypes.JSON(`["in_app", "email"]`),
		Priority:     models.PriorityDefault,
		GroupCount:   1,
		ScheduledFor: f.clock.now,
	}
	require.NoError(t, f.notificationRepo.Create(notification))

	err := f.service.DeliverDeferred(context.Background(), notification)
	require.NoError(t, err)

	assert.Equal(t, 0, email.callCount(), "Доставки быть не должно, окно еще активно")
	assert.Equal(t, notification.ID, f.notificationRepo.rescheduledID)
	assert.Equal(t, time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC), f.notificationRepo.rescheduledTo)
}

func baseRequestWithCategory(category string) *dto.DispatchRequest {
	req := baseRequest()
	req.Category = category
	return req
}
