package workers

import (
	"context"
	"time"

	"notifyhub_backend/internal/logger"
	"notifyhub_backend/internal/repositories"
	"notifyhub_backend/internal/services"
)

// Максимум отложенных уведомлений за один проход воркера
const deferredBatchSize = 100

// DispatchWorker доставляет отложенные уведомления (тихие часы, явное
// расписание), когда приходит их время.
type DispatchWorker struct {
	notificationRepo repositories.NotificationRepository
	dispatchService  services.DispatchService
	pollInterval     time.Duration
}

func NewDispatchWorker(
	notificationRepo repositories.NotificationRepository,
	dispatchService services.DispatchService,
	pollInterval time.Duration,
) *DispatchWorker {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &DispatchWorker{
		notificationRepo: notificationRepo,
		dispatchService:  dispatchService,
		pollInterval:     pollInterval,
	}
}

// Start запускает фоновую доставку отложенных уведомлений
func (w *DispatchWorker) Start(ctx context.Context) {
	go w.pollDeferred(ctx)
}

func (w *DispatchWorker) pollDeferred(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Dispatch worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *DispatchWorker) runOnce(ctx context.Context) {
	due, err := w.notificationRepo.FindDueDeferred(time.Now(), deferredBatchSize)
	if err != nil {
		logger.CtxError(ctx, "failed to load due deferred notifications", "error", err.Error())
		return
	}
	if len(due) == 0 {
		return
	}

	logger.CtxInfo(ctx, "delivering deferred notifications", "count", len(due))

	for i := range due {
		notification := &due[i]
		if err := w.dispatchService.DeliverDeferred(ctx, notification); err != nil {
			// Одна сломанная запись не должна блокировать остальные
			logger.CtxError(ctx, "failed to deliver deferred notification",
				"notification_id", notification.ID, "error", err.Error())
		}
	}
}
