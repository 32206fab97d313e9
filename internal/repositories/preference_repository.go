package repositories

import (
	"errors"

	"notifyhub_backend/internal/models"

	"gorm.io/gorm"
)

var ErrPreferencesNotFound = errors.New("user preferences not found")

type PreferenceRepository interface {
	FindByUserID(userID string) (*models.UserPreferences, error)
	Upsert(prefs *models.UserPreferences) error
}

type PreferenceRepositoryImpl struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &PreferenceRepositoryImpl{db: db}
}

func (r *PreferenceRepositoryImpl) FindByUserID(userID string) (*models.UserPreferences, error) {
	var prefs models.UserPreferences
	err := r.db.First(&prefs, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPreferencesNotFound
		}
		return nil, err
	}
	return &prefs, nil
}

// Upsert создает запись настроек при первой записи, дальше обновляет.
// user_id защищен uniqueIndex, поэтому конкурентная первая запись
// завершится ошибкой дубликата, а не второй строкой.
func (r *PreferenceRepositoryImpl) Upsert(prefs *models.UserPreferences) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.UserPreferences
		err := tx.First(&existing, "user_id = ?", prefs.UserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(prefs).Error
		}
		if err != nil {
			return err
		}

		prefs.ID = existing.ID
		prefs.CreatedAt = existing.CreatedAt
		return tx.Model(&existing).Select("*").Omit("id", "created_at", "user_id").Updates(prefs).Error
	})
}
