package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"notifyhub_backend/internal/channels"
	"notifyhub_backend/internal/logger"
	"notifyhub_backend/internal/models"
	"notifyhub_backend/internal/repositories"
	"notifyhub_backend/internal/services/dto"
	"notifyhub_backend/pkg/apperrors"

	"gorm.io/datatypes"
)

// DispatchService - движок доставки уведомлений: решает, доставлять ли
// сейчас, по каким каналам, и фиксирует результат каждой попытки отдельно.
type DispatchService interface {
	Dispatch(ctx context.Context, req *dto.DispatchRequest) (*dto.DispatchResponse, error)

	// DeliverDeferred повторно обрабатывает отложенную запись
	// (вызывается воркером, когда пришло ее время).
	DeliverDeferred(ctx context.Context, notification *models.Notification) error
}

type dispatchService struct {
	notificationRepo  repositories.NotificationRepository
	preferenceService PreferenceService
	registry          *channels.Registry
	clock             Clock
	sendTimeout       time.Duration
}

func NewDispatchService(
	notificationRepo repositories.NotificationRepository,
	preferenceService PreferenceService,
	registry *channels.Registry,
	clock Clock,
	sendTimeout time.Duration,
) DispatchService {
	if clock == nil {
		clock = SystemClock{}
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &dispatchService{
		notificationRepo:  notificationRepo,
		preferenceService: preferenceService,
		registry:          registry,
		clock:             clock,
		sendTimeout:       sendTimeout,
	}
}

func (s *dispatchService) Dispatch(ctx context.Context, req *dto.DispatchRequest) (*dto.DispatchResponse, error) {
	applyRequestDefaults(req)

	prefs := s.preferenceService.Resolve(ctx, req.UserID)
	now := s.clock.Now()

	notification, err := buildNotification(req, now)
	if err != nil {
		return nil, apperrors.NewBadRequestError("Invalid request payload: " + err.Error())
	}

	// Явное время в будущем откладывает доставку без оценки тихих часов
	if req.ScheduledFor != nil && req.ScheduledFor.After(now) {
		notification.ScheduledFor = *req.ScheduledFor
		return s.deferDispatch(ctx, notification)
	}

	if quiet, next := EvaluateQuietHours(prefs, req.Priority, now); quiet {
		logger.CtxInfo(ctx, "dispatch deferred by quiet hours",
			"user_id", req.UserID, "next_available", next)
		notification.ScheduledFor = next
		return s.deferDispatch(ctx, notification)
	}

	created := false
	if prefs.GroupingEnabled && req.Category != "" {
		groupKey := models.BuildGroupKey(req.SourceSystem, req.Category, req.UserID)
		notification.GroupKey = &groupKey
		window := time.Duration(prefs.GroupingWindowMinutes) * time.Minute

		result, err := s.notificationRepo.CreateGrouped(notification, now.Add(-window))
		if err != nil {
			// Ошибка группировки трактуется как "слияния нет":
			// уведомление не должно потеряться из-за сбоя группировки
			logger.CtxWarn(ctx, "grouped create failed, falling back to plain insert",
				"group_key", groupKey, "error", err.Error())
		} else if result.Merged {
			logger.CtxInfo(ctx, "notification merged into active group",
				"notification_id", result.NotificationID,
				"group_key", groupKey,
				"group_count", result.GroupCount)
			return &dto.DispatchResponse{
				Success:        true,
				NotificationID: result.NotificationID,
				Grouped:        true,
				DeliveryStatus: map[string]string{},
			}, nil
		} else {
			created = true
		}
	}

	if !created {
		if err := s.notificationRepo.Create(notification); err != nil {
			return nil, apperrors.ErrDispatchPersistence(err)
		}
	}

	resolved := ResolveChannels(requestedChannels(req.Channels), prefs, req.Category)
	status := s.fanOut(ctx, notification, prefs, resolved)

	deliveredAt := s.clock.Now()
	if err := s.notificationRepo.RecordDelivery(notification.ID, resolved, status, deliveredAt); err != nil {
		// Запись уведомления уже существует, поэтому dispatch считается
		// успешным; потерю карты статусов только логируем
		logger.CtxError(ctx, "failed to record delivery status",
			"notification_id", notification.ID, "error", err.Error())
	}

	return &dto.DispatchResponse{
		Success:        true,
		NotificationID: notification.ID,
		Grouped:        false,
		DeliveryStatus: statusMapToStrings(status),
	}, nil
}

func (s *dispatchService) DeliverDeferred(ctx context.Context, notification *models.Notification) error {
	prefs := s.preferenceService.Resolve(ctx, notification.UserID)
	now := s.clock.Now()

	// Тихие часы могли измениться с момента откладывания
	if quiet, next := EvaluateQuietHours(prefs, notification.Priority, now); quiet {
		logger.CtxInfo(ctx, "deferred notification re-deferred by quiet hours",
			"notification_id", notification.ID, "next_available", next)
		return s.notificationRepo.Reschedule(notification.ID, next)
	}

	requested, err := decodeChannels(notification.Channels)
	if err != nil {
		requested = []models.Channel{models.ChannelInApp}
	}

	resolved := ResolveChannels(requested, prefs, notification.Category)
	status := s.fanOut(ctx, notification, prefs, resolved)

	return s.notificationRepo.RecordDelivery(notification.ID, resolved, status, s.clock.Now())
}

// ResolveChannels вычисляет итоговый набор каналов:
// запрошенные ∩ политика категории ∩ глобально включенные.
// in_app включается всегда и никогда не фильтруется. Результат
// детерминирован и не зависит от порядка запрошенных каналов.
func ResolveChannels(requested []models.Channel, prefs *models.UserPreferences, category string) []models.Channel {
	reqSet := make(map[models.Channel]bool, len(requested)+1)
	for _, c := range requested {
		reqSet[c] = true
	}
	// Каноническая in_app запись существует для каждого уведомления
	reqSet[models.ChannelInApp] = true

	// Политика категории: отсутствие категории или политики = все разрешено
	var allowed map[models.Channel]bool
	if category != "" {
		if policy := prefs.CategoryChannelMap(); policy != nil {
			if list, ok := policy[category]; ok {
				allowed = make(map[models.Channel]bool, len(list))
				for _, c := range list {
					allowed[c] = true
				}
			}
		}
	}

	var resolved []models.Channel
	for _, c := range models.AllChannels {
		if !reqSet[c] {
			continue
		}
		if c == models.ChannelInApp {
			resolved = append(resolved, c)
			continue
		}
		if allowed != nil && !allowed[c] {
			continue
		}
		if !prefs.ChannelEnabled(c) {
			continue
		}
		resolved = append(resolved, c)
	}
	return resolved
}

// deliveryOutcome - транзиентный результат одной отправки; наружу не
// сохраняется, сворачивается в карту статусов уведомления.
type deliveryOutcome struct {
	channel models.Channel
	state   models.DeliveryState
	err     error
}

// fanOut отправляет уведомление во все разрешенные каналы параллельно.
// Каждая отправка изолирована: отказ, таймаут или паника одного канала
// не мешает остальным и не трогает in_app запись.
func (s *dispatchService) fanOut(ctx context.Context, notification *models.Notification, prefs *models.UserPreferences, resolved []models.Channel) map[models.Channel]models.DeliveryState {
	status := make(map[models.Channel]models.DeliveryState, len(resolved))

	outcomes := make(chan deliveryOutcome, len(resolved))
	var wg sync.WaitGroup

	for _, ch := range resolved {
		if ch == models.ChannelInApp {
			// Запись в сторе и есть доставка in_app
			status[ch] = models.DeliverySent
			continue
		}

		sender, ok := s.registry.Lookup(ch)
		if !ok {
			logger.CtxWarn(ctx, "no sender registered for channel, skipping",
				"channel", string(ch), "notification_id", notification.ID)
			status[ch] = models.DeliverySkipped
			continue
		}

		destination := prefs.DestinationFor(ch)
		if destination == "" {
			// Нет адреса доставки - канал пропускается, транспорт не вызывается
			status[ch] = models.DeliverySkipped
			continue
		}

		delivery := &channels.Delivery{
			Destination: destination,
			Title:       notification.Title,
			Body:        notification.Message,
			ActionURL:   notification.ActionURL,
			ActionLabel: notification.ActionLabel,
		}

		wg.Add(1)
		go func(ch models.Channel, sender channels.Sender, delivery *channels.Delivery) {
			defer wg.Done()
			outcomes <- s.attempt(ctx, ch, sender, delivery)
		}(ch, sender, delivery)
	}

	wg.Wait()
	close(outcomes)

	for outcome := range outcomes {
		status[outcome.channel] = outcome.state
		if outcome.err != nil {
			logger.CtxWarn(ctx, "channel delivery failed",
				"channel", string(outcome.channel),
				"notification_id", notification.ID,
				"error", outcome.err.Error())
		}
	}

	return status
}

// attempt выполняет одну отправку с таймаутом и защитой от паники транспорта.
func (s *dispatchService) attempt(ctx context.Context, ch models.Channel, sender channels.Sender, delivery *channels.Delivery) deliveryOutcome {
	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("channel sender panic: %v", r)
			}
		}()
		errCh <- sender.Send(sendCtx, delivery)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return deliveryOutcome{channel: ch, state: models.DeliveryFailed, err: err}
		}
		return deliveryOutcome{channel: ch, state: models.DeliverySent}
	case <-sendCtx.Done():
		return deliveryOutcome{channel: ch, state: models.DeliveryFailed,
			err: fmt.Errorf("send timed out: %w", sendCtx.Err())}
	}
}

// deferDispatch сохраняет отложенную запись; доставку позже выполнит воркер.
func (s *dispatchService) deferDispatch(ctx context.Context, notification *models.Notification) (*dto.DispatchResponse, error) {
	if err := s.notificationRepo.Create(notification); err != nil {
		return nil, apperrors.ErrDispatchPersistence(err)
	}

	scheduledFor := notification.ScheduledFor
	return &dto.DispatchResponse{
		Success:        true,
		NotificationID: notification.ID,
		Deferred:       true,
		ScheduledFor:   &scheduledFor,
		DeliveryStatus: map[string]string{},
	}, nil
}

// --- helpers ---

func applyRequestDefaults(req *dto.DispatchRequest) {
	if req.Type == "" {
		req.Type = models.NotificationTypeInfo
	}
	if len(req.Channels) == 0 {
		req.Channels = []string{string(models.ChannelInApp)}
	}
	if req.Priority == 0 {
		req.Priority = models.PriorityDefault
	}
}

func buildNotification(req *dto.DispatchRequest, now time.Time) (*models.Notification, error) {
	channelsJSON, err := json.Marshal(req.Channels)
	if err != nil {
		return nil, err
	}

	notification := &models.Notification{
		UserID:           req.UserID,
		Type:             req.Type,
		Title:            req.Title,
		Message:          req.Message,
		Category:         req.Category,
		SourceSystem:     req.SourceSystem,
		SourceEntityType: req.SourceEntityType,
		SourceEntityID:   req.SourceEntityID,
		Channels:         datatypes.JSON(channelsJSON),
		Priority:         req.Priority,
		ActionURL:        req.ActionURL,
		ActionLabel:      req.ActionLabel,
		GroupCount:       1,
		ScheduledFor:     now,
	}

	if req.ActionData != nil {
		actionJSON, err := json.Marshal(req.ActionData)
		if err != nil {
			return nil, err
		}
		notification.ActionData = datatypes.JSON(actionJSON)
	}

	return notification, nil
}

func requestedChannels(raw []string) []models.Channel {
	result := make([]models.Channel, 0, len(raw))
	for _, c := range raw {
		result = append(result, models.Channel(c))
	}
	return result
}

func decodeChannels(raw datatypes.JSON) ([]models.Channel, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty channel set")
	}
	var channels []models.Channel
	if err := json.Unmarshal(raw, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func statusMapToStrings(status map[models.Channel]models.DeliveryState) map[string]string {
	result := make(map[string]string, len(status))
	for ch, state := range status {
		result[string(ch)] = string(state)
	}
	return result
}
