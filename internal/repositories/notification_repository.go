package repositories

import (
	"encoding/json"
	"errors"
	"time"

	"notifyhub_backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNoActiveGroup        = errors.New("no active notification group")
)

type NotificationRepository interface {
	// Notification operations
	Create(notification *models.Notification) error
	CreateGrouped(notification *models.Notification, since time.Time) (*GroupMergeResult, error)
	FindByID(id string) (*models.Notification, error)
	FindUserNotifications(userID string, criteria NotificationCriteria) ([]models.Notification, int64, error)
	MarkAsRead(userID, notificationID string) error
	MarkAllAsRead(userID string) error
	Delete(userID, notificationID string) error
	GetUnreadCount(userID string) (int64, error)

	// Delivery tracking
	RecordDelivery(notificationID string, channels []models.Channel, status map[models.Channel]models.DeliveryState, deliveredAt time.Time) error
	Reschedule(notificationID string, scheduledFor time.Time) error
	FindDueDeferred(now time.Time, limit int) ([]models.Notification, error)

	// Retention
	DeleteReadOlderThan(cutoff time.Time) (int64, error)
}

// GroupMergeResult - исход попытки групповой записи: либо слияние
// в существующую группу, либо создана новая запись.
type GroupMergeResult struct {
	Merged         bool
	NotificationID string
	GroupCount     int
}

// Search criteria for the user inbox
type NotificationCriteria struct {
	UnreadOnly bool
	Category   string
	Page       int
	PageSize   int
}

type NotificationRepositoryImpl struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &NotificationRepositoryImpl{db: db}
}

func (r *NotificationRepositoryImpl) Create(notification *models.Notification) error {
	return r.db.Create(notification).Error
}

// CreateGrouped атомарно решает гонку "проверил-затем-создал" при группировке.
// Транзакция берет advisory-блокировку на ключ группы, поэтому из двух
// конкурентных dispatch-вызовов ровно один создает новую запись, а второй
// вливается в нее. Блокировка ограничена одним ключом группы: разные
// пользователи и источники не конкурируют.
func (r *NotificationRepositoryImpl) CreateGrouped(notification *models.Notification, since time.Time) (*GroupMergeResult, error) {
	if notification.GroupKey == nil || *notification.GroupKey == "" {
		return nil, errors.New("notification has no group key")
	}
	groupKey := *notification.GroupKey

	result := &GroupMergeResult{}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", groupKey).Error; err != nil {
			return err
		}

		// Ищем непрочитанную запись той же группы внутри окна и инкрементируем
		// счетчик одним UPDATE.
		var merged struct {
			ID         string
			GroupCount int
		}
		res := tx.Raw(`
			UPDATE notifications
			SET group_count = group_count + 1,
			    is_grouped  = true,
			    updated_at  = NOW()
			WHERE id = (
				SELECT id FROM notifications
				WHERE group_key = ?
				  AND is_read = false
				  AND created_at >= ?
				ORDER BY created_at DESC
				LIMIT 1
			)
			RETURNING id, group_count
		`, groupKey, since).Scan(&merged)

		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected > 0 {
			result.Merged = true
			result.NotificationID = merged.ID
			result.GroupCount = merged.GroupCount
			return nil
		}

		// Активной группы нет - создаем свежую запись под той же блокировкой
		if err := tx.Create(notification).Error; err != nil {
			return err
		}
		result.Merged = false
		result.NotificationID = notification.ID
		result.GroupCount = notification.GroupCount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *NotificationRepositoryImpl) FindByID(id string) (*models.Notification, error) {
	var notification models.Notification
	err := r.db.First(&notification, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &notification, nil
}

func (r *NotificationRepositoryImpl) FindUserNotifications(userID string, criteria NotificationCriteria) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	query := r.db.Where("user_id = ?", userID)

	if criteria.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	if criteria.Category != "" {
		query = query.Where("category = ?", criteria.Category)
	}

	var total int64
	if err := query.Model(&models.Notification{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := criteria.PageSize
	offset := (criteria.Page - 1) * criteria.PageSize

	err := query.Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&notifications).Error

	return notifications, total, err
}

func (r *NotificationRepositoryImpl) MarkAsRead(userID, notificationID string) error {
	result := r.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepositoryImpl) MarkAllAsRead(userID string) error {
	return r.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		}).Error
}

func (r *NotificationRepositoryImpl) Delete(userID, notificationID string) error {
	result := r.db.Where("id = ? AND user_id = ?", notificationID, userID).Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepositoryImpl) GetUnreadCount(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// RecordDelivery записывает итоговый набор каналов, карту статусов
// доставки и штамп delivered_at. Набор каналов перезаписывается, потому
// что у отложенной записи он разрешается заново в момент доставки.
func (r *NotificationRepositoryImpl) RecordDelivery(notificationID string, channels []models.Channel, status map[models.Channel]models.DeliveryState, deliveredAt time.Time) error {
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return err
	}
	channelsJSON, err := json.Marshal(channels)
	if err != nil {
		return err
	}

	result := r.db.Model(&models.Notification{}).
		Where("id = ?", notificationID).
		Updates(map[string]interface{}{
			"channels":        datatypes.JSON(channelsJSON),
			"delivery_status": datatypes.JSON(statusJSON),
			"delivered_at":    deliveredAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepositoryImpl) Reschedule(notificationID string, scheduledFor time.Time) error {
	result := r.db.Model(&models.Notification{}).
		Where("id = ?", notificationID).
		Update("scheduled_for", scheduledFor)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// FindDueDeferred возвращает отложенные уведомления, чье время пришло.
// Отложенная запись всегда имеет scheduled_for > created_at; этим условием
// отсекаются свежесозданные немедленные записи, которые еще в процессе
// доставки (их scheduled_for равен created_at).
func (r *NotificationRepositoryImpl) FindDueDeferred(now time.Time, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.
		Where("delivered_at IS NULL AND scheduled_for <= ? AND scheduled_for > created_at", now).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

func (r *NotificationRepositoryImpl) DeleteReadOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("is_read = ? AND created_at < ?", true, cutoff).Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}
