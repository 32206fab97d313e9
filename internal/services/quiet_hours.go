package services

import (
	"strconv"
	"strings"
	"time"

	"notifyhub_backend/internal/models"
)

// EvaluateQuietHours — чистая функция: попадает ли "сейчас" в окно
// тихих часов пользователя. Окно задано временем суток и может
// переходить через полночь (start > end). Уведомления с приоритетом
// PriorityUrgent полностью освобождены от тихих часов.
//
// Если quiet=true, next - ближайшее окончание окна строго после now.
func EvaluateQuietHours(prefs *models.UserPreferences, priority int, now time.Time) (quiet bool, next time.Time) {
	if priority == models.PriorityUrgent {
		return false, time.Time{}
	}
	if prefs == nil || !prefs.QuietHoursEnabled {
		return false, time.Time{}
	}

	startMin, okStart := parseTimeOfDay(prefs.QuietHoursStart)
	endMin, okEnd := parseTimeOfDay(prefs.QuietHoursEnd)
	if !okStart || !okEnd {
		// Некорректно сохраненное окно не должно задерживать доставку
		return false, time.Time{}
	}

	// Окно нулевой длины трактуется как "всегда доступен"
	if startMin == endMin {
		return false, time.Time{}
	}

	nowMin := now.Hour()*60 + now.Minute()

	if startMin < endMin {
		// Обычное окно внутри одних суток
		quiet = nowMin >= startMin && nowMin < endMin
	} else {
		// Окно через полночь: 22:00-08:00
		quiet = nowMin >= startMin || nowMin < endMin
	}

	if !quiet {
		return false, time.Time{}
	}

	next = time.Date(now.Year(), now.Month(), now.Day(), endMin/60, endMin%60, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return true, next
}

// parseTimeOfDay разбирает "HH:MM" в минуты от начала суток.
func parseTimeOfDay(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
