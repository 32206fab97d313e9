package dto

import (
	"time"
)

// ---------------- Requests ----------------

// DispatchRequest - входящий запрос на доставку уведомления.
type DispatchRequest struct {
	UserID           string                 `json:"user_id" validate:"required"`
	Title            string                 `json:"title" validate:"required,max=200"`
	Message          string                 `json:"message" validate:"required,max=2000"`
	Type             string                 `json:"type" validate:"omitempty,oneof=alert warning success info"`
	Category         string                 `json:"category" validate:"omitempty,max=50"`
	SourceSystem     string                 `json:"source_system" validate:"required,max=50"`
	SourceEntityType string                 `json:"source_entity_type" validate:"omitempty,max=50"`
	SourceEntityID   string                 `json:"source_entity_id"`
	Channels         []string               `json:"channels" validate:"omitempty,dive,channel"`
	Priority         int                    `json:"priority" validate:"omitempty,min=1,max=3"`
	ActionURL        string                 `json:"action_url" validate:"omitempty,url"`
	ActionLabel      string                 `json:"action_label" validate:"omitempty,max=100"`
	ActionData       map[string]interface{} `json:"action_data"`
	ScheduledFor     *time.Time             `json:"scheduled_for"`
}

// ---------------- Responses ----------------

// DispatchResponse - результат одного dispatch-вызова.
// Success=true, если запись уведомления сохранена; отказы отдельных
// каналов видны только в DeliveryStatus.
type DispatchResponse struct {
	Success        bool              `json:"success"`
	NotificationID string            `json:"notification_id"`
	Grouped        bool              `json:"grouped"`
	Deferred       bool              `json:"deferred,omitempty"`
	ScheduledFor   *time.Time        `json:"scheduled_for,omitempty"`
	DeliveryStatus map[string]string `json:"delivery_status"`
}

type NotificationResponse struct {
	ID               string                 `json:"id"`
	UserID           string                 `json:"user_id"`
	Type             string                 `json:"type"`
	Title            string                 `json:"title"`
	Message          string                 `json:"message"`
	Category         string                 `json:"category,omitempty"`
	SourceSystem     string                 `json:"source_system"`
	SourceEntityType string                 `json:"source_entity_type,omitempty"`
	SourceEntityID   string                 `json:"source_entity_id,omitempty"`
	Channels         []string               `json:"channels"`
	Priority         int                    `json:"priority"`
	ActionURL        string                 `json:"action_url,omitempty"`
	ActionLabel      string                 `json:"action_label,omitempty"`
	ActionData       map[string]interface{} `json:"action_data,omitempty"`
	GroupCount       int                    `json:"group_count"`
	IsGrouped        bool                   `json:"is_grouped"`
	ScheduledFor     time.Time              `json:"scheduled_for"`
	DeliveredAt      *time.Time             `json:"delivered_at,omitempty"`
	DeliveryStatus   map[string]string      `json:"delivery_status,omitempty"`
	IsRead           bool                   `json:"is_read"`
	ReadAt           *time.Time             `json:"read_at,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

type NotificationListResponse struct {
	Notifications []*NotificationResponse `json:"notifications"`
	Total         int64                   `json:"total"`
	Page          int                     `json:"page"`
	PageSize      int                     `json:"page_size"`
	TotalPages    int                     `json:"total_pages"`
}

// ---------------- Criteria ----------------

// NotificationCriteria - фильтры списка уведомлений пользователя
type NotificationCriteria struct {
	UnreadOnly bool
	Category   string
	Page       int
	PageSize   int
}
