package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Channel - канал доставки уведомления
type Channel string

const (
	ChannelInApp    Channel = "in_app"
	ChannelEmail    Channel = "email"
	ChannelPush     Channel = "push"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// AllChannels перечисляет все поддерживаемые каналы
var AllChannels = []Channel{ChannelInApp, ChannelEmail, ChannelPush, ChannelSMS, ChannelWhatsApp}

func IsValidChannel(c Channel) bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelPush, ChannelSMS, ChannelWhatsApp:
		return true
	}
	return false
}

// DeliveryState - результат доставки по одному каналу
type DeliveryState string

const (
	DeliverySent    DeliveryState = "sent"
	DeliveryFailed  DeliveryState = "failed"
	DeliverySkipped DeliveryState = "skipped"
)

// Notification types
const (
	NotificationTypeAlert   = "alert"
	NotificationTypeWarning = "warning"
	NotificationTypeSuccess = "success"
	NotificationTypeInfo    = "info"
)

// Priorities. Значение 3 зарезервировано: urgent-уведомления игнорируют
// тихие часы пользователя.
const (
	PriorityDefault = 1
	PriorityUrgent  = 3
)

type Notification struct {
	BaseModel
	UserID           string `gorm:"not null;index"`
	Type             string `gorm:"size:20;default:info"`
	Title            string `gorm:"not null"`
	Message          string `gorm:"not null"`
	Category         string `gorm:"size:50;index"`
	SourceSystem     string `gorm:"size:50;not null"`
	SourceEntityType string `gorm:"size:50"`
	SourceEntityID   string
	Channels         datatypes.JSON `gorm:"type:jsonb"` // resolved channel set, []Channel
	Priority         int            `gorm:"default:1"`
	ActionURL        string
	ActionLabel      string
	ActionData       datatypes.JSON `gorm:"type:jsonb"`
	GroupKey         *string        `gorm:"index"`
	GroupCount       int            `gorm:"default:1"`
	IsGrouped        bool           `gorm:"default:false"`
	ScheduledFor     time.Time      `gorm:"index"`
	DeliveredAt      *time.Time
	DeliveryStatus   datatypes.JSON `gorm:"type:jsonb"` // map[Channel]DeliveryState
	IsRead           bool           `gorm:"default:false;index"`
	ReadAt           *time.Time
}

// BuildGroupKey формирует ключ группировки (source + category + user).
// Пустая категория означает, что уведомление не группируется.
func BuildGroupKey(sourceSystem, category, userID string) string {
	return fmt.Sprintf("%s:%s:%s", sourceSystem, category, userID)
}
