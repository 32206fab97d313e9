package services

// ServiceContainer содержит все сервисы приложения.
type ServiceContainer struct {
	DispatchService     DispatchService
	NotificationService NotificationService
	PreferenceService   PreferenceService
}
