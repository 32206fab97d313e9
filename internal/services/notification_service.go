package services

import (
	"context"
	"encoding/json"
	"math"

	"notifyhub_backend/internal/logger"
	"notifyhub_backend/internal/models"
	"notifyhub_backend/internal/repositories"
	"notifyhub_backend/internal/services/dto"
	"notifyhub_backend/pkg/apperrors"
)

// NotificationService - операции пользовательского инбокса.
type NotificationService interface {
	ListNotifications(ctx context.Context, userID string, criteria dto.NotificationCriteria) (*dto.NotificationListResponse, error)
	GetNotification(ctx context.Context, userID, notificationID string) (*dto.NotificationResponse, error)
	MarkAsRead(ctx context.Context, userID, notificationID string) error
	MarkAllAsRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, userID, notificationID string) error
	GetUnreadCount(ctx context.Context, userID string) (int64, error)
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
}

func NewNotificationService(notificationRepo repositories.NotificationRepository) NotificationService {
	return &notificationService{notificationRepo: notificationRepo}
}

func (s *notificationService) ListNotifications(ctx context.Context, userID string, criteria dto.NotificationCriteria) (*dto.NotificationListResponse, error) {
	if criteria.Page < 1 {
		criteria.Page = 1
	}
	if criteria.PageSize < 1 || criteria.PageSize > 100 {
		criteria.PageSize = 20
	}

	notifications, total, err := s.notificationRepo.FindUserNotifications(userID, repositories.NotificationCriteria{
		UnreadOnly: criteria.UnreadOnly,
		Category:   criteria.Category,
		Page:       criteria.Page,
		PageSize:   criteria.PageSize,
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	items := make([]*dto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		items = append(items, buildNotificationResponse(&notifications[i]))
	}

	return &dto.NotificationListResponse{
		Notifications: items,
		Total:         total,
		Page:          criteria.Page,
		PageSize:      criteria.PageSize,
		TotalPages:    int(math.Ceil(float64(total) / float64(criteria.PageSize))),
	}, nil
}

func (s *notificationService) GetNotification(ctx context.Context, userID, notificationID string) (*dto.NotificationResponse, error) {
	notification, err := s.notificationRepo.FindByID(notificationID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrNotificationNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, apperrors.InternalError(err)
	}

	// Чужие уведомления неотличимы от несуществующих
	if notification.UserID != userID {
		return nil, apperrors.ErrNotFound(repositories.ErrNotificationNotFound)
	}

	return buildNotificationResponse(notification), nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, notificationID string) error {
	err := s.notificationRepo.MarkAsRead(userID, notificationID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrNotificationNotFound) {
			return apperrors.ErrNotFound(err)
		}
		return apperrors.InternalError(err)
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID string) error {
	if err := s.notificationRepo.MarkAllAsRead(userID); err != nil {
		return apperrors.InternalError(err)
	}
	logger.CtxInfo(ctx, "all notifications marked as read", "user_id", userID)
	return nil
}

func (s *notificationService) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	err := s.notificationRepo.Delete(userID, notificationID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrNotificationNotFound) {
			return apperrors.ErrNotFound(err)
		}
		return apperrors.InternalError(err)
	}
	return nil
}

func (s *notificationService) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	count, err := s.notificationRepo.GetUnreadCount(userID)
	if err != nil {
		return 0, apperrors.InternalError(err)
	}
	return count, nil
}

func buildNotificationResponse(n *models.Notification) *dto.NotificationResponse {
	resp := &dto.NotificationResponse{
		ID:               n.ID,
		UserID:           n.UserID,
		Type:             n.Type,
		Title:            n.Title,
		Message:          n.Message,
		Category:         n.Category,
		SourceSystem:     n.SourceSystem,
		SourceEntityType: n.SourceEntityType,
		SourceEntityID:   n.SourceEntityID,
		Priority:         n.Priority,
		ActionURL:        n.ActionURL,
		ActionLabel:      n.ActionLabel,
		GroupCount:       n.GroupCount,
		IsGrouped:        n.IsGrouped,
		ScheduledFor:     n.ScheduledFor,
		DeliveredAt:      n.DeliveredAt,
		IsRead:           n.IsRead,
		ReadAt:           n.ReadAt,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
	}

	if len(n.Channels) > 0 {
		_ = json.Unmarshal(n.Channels, &resp.Channels)
	}
	if len(n.ActionData) > 0 {
		_ = json.Unmarshal(n.ActionData, &resp.ActionData)
	}
	if len(n.DeliveryStatus) > 0 {
		_ = json.Unmarshal(n.DeliveryStatus, &resp.DeliveryStatus)
	}

	return resp
}
