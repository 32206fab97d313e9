package apperrors

import (
	"net/http"
)

/*
Фабрики для доменных ошибок движка доставки уведомлений.
*/

// ErrNotFound - фабрика для ошибки "не найдено" (404).
// Используется, когда ошибка репозитория (типа gorm.ErrRecordNotFound)
// должна быть преобразована в AppError.
func ErrNotFound(err error) *AppError {
	return Wrap(err, CodeNotFound, "resource", "Resource not found", http.StatusNotFound)
}

// ErrDispatchPersistence - фатальная ошибка сохранения уведомления (500).
// Единственная ошибка канального уровня, которая роняет весь dispatch.
func ErrDispatchPersistence(err error) *AppError {
	return Wrap(err, CodeDispatchFailed, "dispatch", "Failed to persist notification", http.StatusInternalServerError)
}

// ErrPreferencesUnavailable - стор настроек недоступен.
// НЕ фатальна для dispatch: вызывающий код продолжает с дефолтами.
func ErrPreferencesUnavailable(err error) *AppError {
	return Wrap(err, CodePreferencesUnavailable, "preferences", "Preference store unavailable", http.StatusServiceUnavailable)
}
