package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"notifyhub_backend/internal/channels"
	"notifyhub_backend/internal/models"
	"notifyhub_backend/internal/repositories"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// --- Часы с фиксированным временем ---

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

// --- In-memory репозиторий уведомлений ---

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[string]*models.Notification
	nowFn         func() time.Time

	createErr  error
	groupedErr error

	// Аргументы последнего RecordDelivery
	recordedID       string
	recordedChannels []models.Channel
	recordedStatus   map[models.Channel]models.DeliveryState

	rescheduledID string
	rescheduledTo time.Time
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: make(map[string]*models.Notification)}
}

func (r *fakeNotificationRepo) now() time.Time {
	if r.nowFn != nil {
		return r.nowFn()
	}
	return time.Now()
}

func (r *fakeNotificationRepo) Create(n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.now()
	}
	stored := *n
	r.notifications[n.ID] = &stored
	return nil
}

func (r *fakeNotificationRepo) CreateGrouped(n *models.Notification, since time.Time) (*repositories.GroupMergeResult, error) {
	r.mu.Lock()
	if r.groupedErr != nil {
		r.mu.Unlock()
		return nil, r.groupedErr
	}

	for _, existing := range r.notifications {
		if existing.GroupKey != nil && n.GroupKey != nil &&
			*existing.GroupKey == *n.GroupKey &&
			!existing.IsRead &&
			!existing.CreatedAt.Before(since) {
			existing.GroupCount++
			existing.IsGrouped = true
			r.mu.Unlock()
			return &repositories.GroupMergeResult{
				Merged:         true,
				NotificationID: existing.ID,
				GroupCount:     existing.GroupCount,
			}, nil
		}
	}
	r.mu.Unlock()

	if err := r.Create(n); err != nil {
		return nil, err
	}
	return &repositories.GroupMergeResult{
		Merged:         false,
		NotificationID: n.ID,
		GroupCount:     n.GroupCount,
	}, nil
}

func (r *fakeNotificationRepo) FindByID(id string) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, repositories.ErrNotificationNotFound
	}
	copied := *n
	return &copied, nil
}

func (r *fakeNotificationRepo) FindUserNotifications(userID string, criteria repositories.NotificationCriteria) ([]models.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.Notification
	for _, n := range r.notifications {
		if n.UserID != userID {
			continue
		}
		if criteria.UnreadOnly && n.IsRead {
			continue
		}
		if criteria.Category != "" && n.Category != criteria.Category {
			continue
		}
		result = append(result, *n)
	}
	return result, int64(len(result)), nil
}

func (r *fakeNotificationRepo) MarkAsRead(userID, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[notificationID]
	if !ok || n.UserID != userID {
		return repositories.ErrNotificationNotFound
	}
	now := time.Now()
	n.IsRead = true
	n.ReadAt = &now
	return nil
}

func (r *fakeNotificationRepo) MarkAllAsRead(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &now
		}
	}
	return nil
}

func (r *fakeNotificationRepo) Delete(userID, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[notificationID]
	if !ok || n.UserID != userID {
		return repositories.ErrNotificationNotFound
	}
	delete(r.notifications, notificationID)
	return nil
}

func (r *fakeNotificationRepo) GetUnreadCount(userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) RecordDelivery(notificationID string, resolved []models.Channel, status map[models.Channel]models.DeliveryState, deliveredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[notificationID]
	if !ok {
		return repositories.ErrNotificationNotFound
	}

	// Как и настоящий репозиторий, сохраняем карту статусов и итоговый
	// набор каналов в JSONB-колонках записи
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return err
	}
	channelsJSON, err := json.Marshal(resolved)
	if err != nil {
		return err
	}

	r.recordedID = notificationID
	r.recordedChannels = resolved
	r.recordedStatus = status
	n.Channels = datatypes.JSON(channelsJSON)
	n.DeliveryStatus = datatypes.JSON(statusJSON)
	n.DeliveredAt = &deliveredAt
	return nil
}

func (r *fakeNotificationRepo) Reschedule(notificationID string, scheduledFor time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[notificationID]
	if !ok {
		return repositories.ErrNotificationNotFound
	}
	r.rescheduledID = notificationID
	r.rescheduledTo = scheduledFor
	n.ScheduledFor = scheduledFor
	return nil
}

func (r *fakeNotificationRepo) FindDueDeferred(now time.Time, limit int) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.Notification
	for _, n := range r.notifications {
		if n.DeliveredAt == nil && !n.ScheduledFor.After(now) && n.ScheduledFor.After(n.CreatedAt) {
			result = append(result, *n)
		}
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *fakeNotificationRepo) DeleteReadOlderThan(cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, n := range r.notifications {
		if n.IsRead && n.CreatedAt.Before(cutoff) {
			delete(r.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeNotificationRepo) get(id string) *models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notifications[id]
}

// --- In-memory репозиторий настроек ---

type fakePreferenceRepo struct {
	mu      sync.Mutex
	prefs   map[string]*models.UserPreferences
	findErr error
}

func newFakePreferenceRepo() *fakePreferenceRepo {
	return &fakePreferenceRepo{prefs: make(map[string]*models.UserPreferences)}
}

func (r *fakePreferenceRepo) FindByUserID(userID string) (*models.UserPreferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	p, ok := r.prefs[userID]
	if !ok {
		return nil, repositories.ErrPreferencesNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakePreferenceRepo) Upsert(prefs *models.UserPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prefs.ID == "" {
		prefs.ID = uuid.NewString()
	}
	stored := *prefs
	r.prefs[prefs.UserID] = &stored
	return nil
}

func (r *fakePreferenceRepo) put(prefs *models.UserPreferences) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs[prefs.UserID] = prefs
}

// --- Транспорт-заглушка ---

type fakeSender struct {
	kind  models.Channel
	err   error
	delay time.Duration
	panic bool

	mu           sync.Mutex
	calls        int
	destinations []string
}

func (s *fakeSender) Kind() models.Channel {
	return s.kind
}

func (s *fakeSender) Send(ctx context.Context, d *channels.Delivery) error {
	s.mu.Lock()
	s.calls++
	s.destinations = append(s.destinations, d.Destination)
	s.mu.Unlock()

	if s.panic {
		panic("transport exploded")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func (s *fakeSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
