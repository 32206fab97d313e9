package validator

import (
	"regexp"

	"notifyhub_backend/internal/models"

	"github.com/go-playground/validator/v10"
)

var timeOfDayRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// registerCustomRules регистрирует доменные правила валидации.
// Паника здесь уместна: это ошибка времени запуска приложения.
func registerCustomRules(v *validator.Validate) {
	if err := v.RegisterValidation("channel", validateChannel); err != nil {
		panic("failed to register 'channel' validation rule: " + err.Error())
	}
	if err := v.RegisterValidation("timeofday", validateTimeOfDay); err != nil {
		panic("failed to register 'timeofday' validation rule: " + err.Error())
	}
}

// validateChannel проверяет, что строка - один из поддерживаемых каналов.
func validateChannel(fl validator.FieldLevel) bool {
	return models.IsValidChannel(models.Channel(fl.Field().String()))
}

// validateTimeOfDay проверяет формат "HH:MM" (граница тихих часов).
func validateTimeOfDay(fl validator.FieldLevel) bool {
	return timeOfDayRe.MatchString(fl.Field().String())
}
