package dto

// UpdatePreferencesRequest - частичное обновление настроек.
// Указатели отличают "не прислано" от "сброшено в false/пусто".
type UpdatePreferencesRequest struct {
	EmailEnabled    *bool `json:"email_enabled,omitempty"`
	PushEnabled     *bool `json:"push_enabled,omitempty"`
	SMSEnabled      *bool `json:"sms_enabled,omitempty"`
	WhatsAppEnabled *bool `json:"whatsapp_enabled,omitempty"`

	QuietHoursEnabled *bool   `json:"quiet_hours_enabled,omitempty"`
	QuietHoursStart   *string `json:"quiet_hours_start,omitempty" validate:"omitempty,timeofday"`
	QuietHoursEnd     *string `json:"quiet_hours_end,omitempty" validate:"omitempty,timeofday"`

	GroupingEnabled       *bool `json:"grouping_enabled,omitempty"`
	GroupingWindowMinutes *int  `json:"grouping_window_minutes,omitempty" validate:"omitempty,min=1,max=1440"`

	CategoryChannels map[string][]string `json:"category_channels,omitempty" validate:"omitempty,dive,dive,channel"`

	EmailAddress   *string `json:"email_address,omitempty" validate:"omitempty,email"`
	PhoneNumber    *string `json:"phone_number,omitempty" validate:"omitempty,max=20"`
	WhatsAppNumber *string `json:"whatsapp_number,omitempty" validate:"omitempty,max=20"`
	DeviceToken    *string `json:"device_token,omitempty"`
}

type PreferencesResponse struct {
	UserID string `json:"user_id"`

	EmailEnabled    bool `json:"email_enabled"`
	PushEnabled     bool `json:"push_enabled"`
	SMSEnabled      bool `json:"sms_enabled"`
	WhatsAppEnabled bool `json:"whatsapp_enabled"`

	QuietHoursEnabled bool   `json:"quiet_hours_enabled"`
	QuietHoursStart   string `json:"quiet_hours_start"`
	QuietHoursEnd     string `json:"quiet_hours_end"`

	GroupingEnabled       bool `json:"grouping_enabled"`
	GroupingWindowMinutes int  `json:"grouping_window_minutes"`

	CategoryChannels map[string][]string `json:"category_channels,omitempty"`

	EmailAddress   string `json:"email_address,omitempty"`
	PhoneNumber    string `json:"phone_number,omitempty"`
	WhatsAppNumber string `json:"whatsapp_number,omitempty"`
	DeviceToken    string `json:"device_token,omitempty"`
}
