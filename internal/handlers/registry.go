package handlers

// AppHandlers содержит все хэндлеры приложения.
type AppHandlers struct {
	DispatchHandler     *DispatchHandler
	NotificationHandler *NotificationHandler
	PreferenceHandler   *PreferenceHandler
}
