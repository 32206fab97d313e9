package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// UserPreferences - настройки доставки уведомлений для одного пользователя.
// Создаются при первой записи, никогда не удаляются (только сбрасываются поля).
type UserPreferences struct {
	BaseModel
	UserID string `gorm:"not null;uniqueIndex"`

	// Глобальные флаги каналов. Выключенный канал никогда не выбирается,
	// независимо от политики категории.
	EmailEnabled    bool `gorm:"default:true"`
	PushEnabled     bool `gorm:"default:true"`
	SMSEnabled      bool `gorm:"default:false"`
	WhatsAppEnabled bool `gorm:"default:false"`

	// Тихие часы (окно может переходить через полночь: start > end)
	QuietHoursEnabled bool   `gorm:"default:false"`
	QuietHoursStart   string `gorm:"size:5"` // "22:00"
	QuietHoursEnd     string `gorm:"size:5"` // "08:00"

	// Группировка повторяющихся уведомлений
	GroupingEnabled       bool `gorm:"default:false"`
	GroupingWindowMinutes int  `gorm:"default:5"`

	// category -> разрешенные каналы, например {"stock": ["in_app", "email"]}
	CategoryChannels datatypes.JSON `gorm:"type:jsonb"`

	// Адреса доставки для внешних каналов
	EmailAddress   string
	PhoneNumber    string `gorm:"size:20"`
	WhatsAppNumber string `gorm:"size:20"`
	DeviceToken    string
}

// ChannelEnabled проверяет глобальный флаг канала. in_app всегда включен.
func (p *UserPreferences) ChannelEnabled(c Channel) bool {
	switch c {
	case ChannelInApp:
		return true
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelPush:
		return p.PushEnabled
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelWhatsApp:
		return p.WhatsAppEnabled
	}
	return false
}

// DestinationFor возвращает адрес доставки для канала
// (пустая строка = адрес не задан).
func (p *UserPreferences) DestinationFor(c Channel) string {
	switch c {
	case ChannelEmail:
		return p.EmailAddress
	case ChannelPush:
		return p.DeviceToken
	case ChannelSMS:
		return p.PhoneNumber
	case ChannelWhatsApp:
		return p.WhatsAppNumber
	}
	return ""
}

// CategoryChannelMap декодирует политику категорий из JSONB.
// Пустая или некорректная политика возвращает nil, что означает
// "все каналы разрешены для любой категории".
func (p *UserPreferences) CategoryChannelMap() map[string][]Channel {
	if len(p.CategoryChannels) == 0 {
		return nil
	}
	var raw map[string][]string
	if err := json.Unmarshal(p.CategoryChannels, &raw); err != nil {
		return nil
	}
	result := make(map[string][]Channel, len(raw))
	for category, channels := range raw {
		for _, c := range channels {
			result[category] = append(result[category], Channel(c))
		}
	}
	return result
}

// DefaultPreferences - системные настройки по умолчанию.
// Используются, когда у пользователя еще нет записи или стор недоступен:
// отсутствие настроек не должно блокировать срочное уведомление.
func DefaultPreferences(userID string) *UserPreferences {
	return &UserPreferences{
		UserID:                userID,
		EmailEnabled:          true,
		PushEnabled:           true,
		SMSEnabled:            false,
		WhatsAppEnabled:       false,
		QuietHoursEnabled:     false,
		QuietHoursStart:       "22:00",
		QuietHoursEnd:         "08:00",
		GroupingEnabled:       false,
		GroupingWindowMinutes: 5,
	}
}
