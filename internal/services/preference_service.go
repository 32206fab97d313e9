package services

import (
	"context"
	"encoding/json"
	"sync"

	"notifyhub_backend/internal/logger"
	"notifyhub_backend/internal/models"
	"notifyhub_backend/internal/repositories"
	"notifyhub_backend/internal/services/dto"
	"notifyhub_backend/pkg/apperrors"

	"gorm.io/datatypes"
)

type PreferenceService interface {
	// GetPreferences - строгое чтение для API настроек: ошибка стора
	// возвращается вызывающему.
	GetPreferences(ctx context.Context, userID string) (*dto.PreferencesResponse, error)

	// Resolve - чтение для dispatch: при любой недоступности стора
	// возвращает системные дефолты, чтобы не блокировать доставку.
	Resolve(ctx context.Context, userID string) *models.UserPreferences

	UpdatePreferences(ctx context.Context, userID string, req *dto.UpdatePreferencesRequest) (*dto.PreferencesResponse, error)
}

type preferenceService struct {
	preferenceRepo repositories.PreferenceRepository

	// Кэш настроек по user ID. Инвалидируется при каждой записи.
	// Наружу всегда отдается копия, чтобы конкурентные dispatch-вызовы
	// не делили один изменяемый объект.
	mu    sync.RWMutex
	cache map[string]models.UserPreferences
}

func NewPreferenceService(preferenceRepo repositories.PreferenceRepository) PreferenceService {
	return &preferenceService{
		preferenceRepo: preferenceRepo,
		cache:          make(map[string]models.UserPreferences),
	}
}

func (s *preferenceService) GetPreferences(ctx context.Context, userID string) (*dto.PreferencesResponse, error) {
	prefs, err := s.load(userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrPreferencesNotFound) {
			// Записи еще нет - отдаем дефолты, не ошибку
			return buildPreferencesResponse(models.DefaultPreferences(userID)), nil
		}
		return nil, apperrors.ErrPreferencesUnavailable(err)
	}
	return buildPreferencesResponse(prefs), nil
}

func (s *preferenceService) Resolve(ctx context.Context, userID string) *models.UserPreferences {
	prefs, err := s.load(userID)
	if err != nil {
		if !apperrors.Is(err, repositories.ErrPreferencesNotFound) {
			logger.CtxWarn(ctx, "preference store unavailable, using system defaults",
				"user_id", userID, "error", err.Error())
		}
		return models.DefaultPreferences(userID)
	}
	return prefs
}

func (s *preferenceService) UpdatePreferences(ctx context.Context, userID string, req *dto.UpdatePreferencesRequest) (*dto.PreferencesResponse, error) {
	// Стартуем от текущих настроек (или дефолтов при первой записи)
	current, err := s.preferenceRepo.FindByUserID(userID)
	if err != nil {
		if !apperrors.Is(err, repositories.ErrPreferencesNotFound) {
			return nil, apperrors.ErrPreferencesUnavailable(err)
		}
		current = models.DefaultPreferences(userID)
	}

	applyPreferenceUpdate(current, req)

	if err := s.preferenceRepo.Upsert(current); err != nil {
		return nil, apperrors.InternalError(err)
	}

	s.invalidate(userID)
	logger.CtxInfo(ctx, "user preferences updated", "user_id", userID)

	return buildPreferencesResponse(current), nil
}

// load читает настройки из кэша или стора.
func (s *preferenceService) load(userID string) (*models.UserPreferences, error) {
	s.mu.RLock()
	cached, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok {
		copied := cached
		return &copied, nil
	}

	prefs, err := s.preferenceRepo.FindByUserID(userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[userID] = *prefs
	s.mu.Unlock()

	copied := *prefs
	return &copied, nil
}

func (s *preferenceService) invalidate(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

func applyPreferenceUpdate(prefs *models.UserPreferences, req *dto.UpdatePreferencesRequest) {
	if req.EmailEnabled != nil {
		prefs.EmailEnabled = *req.EmailEnabled
	}
	if req.PushEnabled != nil {
		prefs.PushEnabled = *req.PushEnabled
	}
	if req.SMSEnabled != nil {
		prefs.SMSEnabled = *req.SMSEnabled
	}
	if req.WhatsAppEnabled != nil {
		prefs.WhatsAppEnabled = *req.WhatsAppEnabled
	}
	if req.QuietHoursEnabled != nil {
		prefs.QuietHoursEnabled = *req.QuietHoursEnabled
	}
	if req.QuietHoursStart != nil {
		prefs.QuietHoursStart = *req.QuietHoursStart
	}
	if req.QuietHoursEnd != nil {
		prefs.QuietHoursEnd = *req.QuietHoursEnd
	}
	if req.GroupingEnabled != nil {
		prefs.GroupingEnabled = *req.GroupingEnabled
	}
	if req.GroupingWindowMinutes != nil {
		prefs.GroupingWindowMinutes = *req.GroupingWindowMinutes
	}
	if req.CategoryChannels != nil {
		if raw, err := json.Marshal(req.CategoryChannels); err == nil {
			prefs.CategoryChannels = datatypes.JSON(raw)
		}
	}
	if req.EmailAddress != nil {
		prefs.EmailAddress = *req.EmailAddress
	}
	if req.PhoneNumber != nil {
		prefs.PhoneNumber = *req.PhoneNumber
	}
	if req.WhatsAppNumber != nil {
		prefs.WhatsAppNumber = *req.WhatsAppNumber
	}
	if req.DeviceToken != nil {
		prefs.DeviceToken = *req.DeviceToken
	}
}

func buildPreferencesResponse(prefs *models.UserPreferences) *dto.PreferencesResponse {
	var categories map[string][]string
	if m := prefs.CategoryChannelMap(); m != nil {
		categories = make(map[string][]string, len(m))
		for category, channels := range m {
			for _, c := range channels {
				categories[category] = append(categories[category], string(c))
			}
		}
	}

	return &dto.PreferencesResponse{
		UserID:                prefs.UserID,
		EmailEnabled:          prefs.EmailEnabled,
		PushEnabled:           prefs.PushEnabled,
		SMSEnabled:            prefs.SMSEnabled,
		WhatsAppEnabled:       prefs.WhatsAppEnabled,
		QuietHoursEnabled:     prefs.QuietHoursEnabled,
		QuietHoursStart:       prefs.QuietHoursStart,
		QuietHoursEnd:         prefs.QuietHoursEnd,
		GroupingEnabled:       prefs.GroupingEnabled,
		GroupingWindowMinutes: prefs.GroupingWindowMinutes,
		CategoryChannels:      categories,
		EmailAddress:          prefs.EmailAddress,
		PhoneNumber:           prefs.PhoneNumber,
		WhatsAppNumber:        prefs.WhatsAppNumber,
		DeviceToken:           prefs.DeviceToken,
	}
}
