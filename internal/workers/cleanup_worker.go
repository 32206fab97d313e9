package workers

import (
	"time"

	"notifyhub_backend/internal/logger"
	"notifyhub_backend/internal/repositories"

	"github.com/robfig/cron/v3"
)

// CleanupWorker удаляет прочитанные уведомления старше срока хранения.
type CleanupWorker struct {
	notificationRepo repositories.NotificationRepository
	retention        time.Duration
	schedule         string
	cron             *cron.Cron
}

func NewCleanupWorker(notificationRepo repositories.NotificationRepository, retentionDays int, schedule string) *CleanupWorker {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	if schedule == "" {
		schedule = "0 3 * * *"
	}
	return &CleanupWorker{
		notificationRepo: notificationRepo,
		retention:        time.Duration(retentionDays) * 24 * time.Hour,
		schedule:         schedule,
	}
}

// Start запускает планировщик очистки. Ошибка расписания фатальна:
// она означает неверную конфигурацию.
func (w *CleanupWorker) Start() error {
	w.cron = cron.New()
	if _, err := w.cron.AddFunc(w.schedule, w.runOnce); err != nil {
		return err
	}
	w.cron.Start()
	logger.Info("Cleanup worker scheduled", "schedule", w.schedule)
	return nil
}

func (w *CleanupWorker) Stop() {
	if w.cron != nil {
		w.cron.Stop()
	}
}

func (w *CleanupWorker) runOnce() {
	cutoff := time.Now().Add(-w.retention)
	deleted, err := w.notificationRepo.DeleteReadOlderThan(cutoff)
	if err != nil {
		logger.Error("Notification cleanup failed", "error", err.Error())
		return
	}
	if deleted > 0 {
		logger.Info("Old notifications cleaned up", "deleted", deleted, "cutoff", cutoff)
	}
}
