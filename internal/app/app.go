package app

import (
	"context"
	"fmt"
	"time"

	"notifyhub_backend/database"
	"notifyhub_backend/internal/channels"
	"notifyhub_backend/internal/config"
	"notifyhub_backend/internal/handlers"
	"notifyhub_backend/internal/logger"
	"notifyhub_backend/internal/middleware"
	"notifyhub_backend/internal/models"
	"notifyhub_backend/internal/repositories"
	"notifyhub_backend/internal/routes"
	"notifyhub_backend/internal/services"
	"notifyhub_backend/internal/validator"
	"notifyhub_backend/internal/workers"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	logger.Info("Connecting to database...")
	gormDB, err := database.ConnectGorm()
	if err != nil {
		logger.Fatal("Failed to connect to GORM", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get *sql.DB from GORM", "error", err)
	}
	if err = sqlDB.Ping(); err != nil {
		logger.Fatal("Database unavailable", "error", err)
	}
	logger.Info("Database connected")

	if err := database.AutoMigrate(); err != nil {
		logger.Fatal("Database migration failed", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ginRouter := SetupRouter(ctx, cfg, gormDB)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info(fmt.Sprintf("🚀 Server starting on %s", address))
	if err := ginRouter.Run(address); err != nil {
		logger.Fatal("Server startup error", "error", err)
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, gormDB *gorm.DB) *gin.Engine {
	// 1. Инициализируем сервисы
	serviceContainer, notificationRepo := initializeServices(ctx, cfg, gormDB)

	// 2. Инициализируем хэндлеры
	appHandlers := initializeHandlers(serviceContainer)

	// 3. Запускаем фоновые воркеры
	startWorkers(ctx, cfg, notificationRepo, serviceContainer.DispatchService)

	// 4. Инициализируем Gin
	ginRouter := initializeGinRouter(cfg, gormDB)

	// 5. Регистрация маршрутов делегирована пакету 'routes'
	routes.RegisterRoutes(ginRouter, appHandlers)

	return ginRouter
}

func initializeServices(ctx context.Context, cfg *config.Config, gormDB *gorm.DB) (*services.ServiceContainer, repositories.NotificationRepository) {
	registry := buildSenderRegistry(ctx, cfg)

	// --- Инициализация репозиториев ---
	notificationRepo := repositories.NewNotificationRepository(gormDB)
	preferenceRepo := repositories.NewPreferenceRepository(gormDB)

	// --- Инициализация сервисов ---
	preferenceService := services.NewPreferenceService(preferenceRepo)
	dispatchService := services.NewDispatchService(
		notificationRepo,
		preferenceService,
		registry,
		services.SystemClock{},
		time.Duration(cfg.Dispatch.SendTimeoutSeconds)*time.Second,
	)
	notificationService := services.NewNotificationService(notificationRepo)

	return &services.ServiceContainer{
		DispatchService:     dispatchService,
		NotificationService: notificationService,
		PreferenceService:   preferenceService,
	}, notificationRepo
}

// buildSenderRegistry собирает транспорты каналов. Ненастроенный канал
// в production не регистрируется (диспетчер пометит его skipped вместо
// ошибки старта), в development подменяется mock-транспортом.
func buildSenderRegistry(ctx context.Context, cfg *config.Config) *channels.Registry {
	registry := channels.NewRegistry()
	dev := cfg.Server.Env == "development"

	if cfg.Email.SMTPHost != "" {
		emailSender, err := channels.NewEmailSender(channels.EmailConfig{
			Host:      cfg.Email.SMTPHost,
			Port:      cfg.Email.SMTPPort,
			Username:  cfg.Email.SMTPUsername,
			Password:  cfg.Email.SMTPPassword,
			FromEmail: cfg.Email.FromEmail,
			FromName:  cfg.Email.FromName,
		})
		if err != nil {
			logger.Warn("Email sender disabled: invalid SMTP config", "error", err.Error())
		} else {
			registry.Register(emailSender)
			logger.Info("Email sender registered", "host", cfg.Email.SMTPHost)
		}
	} else if dev {
		registry.Register(NewMockSender(models.ChannelEmail))
		logger.Warn("--- [MOCK] Email transport not configured, using mock sender ---")
	} else {
		logger.Warn("Email sender disabled: SMTP host not configured")
	}

	if cfg.Push.CredentialsPath != "" {
		pushSender, err := channels.NewPushSender(ctx, cfg.Push.CredentialsPath)
		if err != nil {
			logger.Warn("Push sender disabled: Firebase init failed", "error", err.Error())
		} else {
			registry.Register(pushSender)
			logger.Info("Push sender registered")
		}
	} else if dev {
		registry.Register(NewMockSender(models.ChannelPush))
		logger.Warn("--- [MOCK] Push transport not configured, using mock sender ---")
	} else {
		logger.Warn("Push sender disabled: Firebase credentials not configured")
	}

	if cfg.SMS.BaseURL != "" {
		registry.Register(channels.NewSMSSender(channels.SMSConfig{
			BaseURL:  cfg.SMS.BaseURL,
			APIKey:   cfg.SMS.APIKey,
			SenderID: cfg.SMS.SenderID,
		}))
		logger.Info("SMS sender registered")
	} else if dev {
		registry.Register(NewMockSender(models.ChannelSMS))
		logger.Warn("--- [MOCK] SMS transport not configured, using mock sender ---")
	} else {
		logger.Warn("SMS sender disabled: gateway not configured")
	}

	if cfg.WhatsApp.BaseURL != "" {
		registry.Register(channels.NewWhatsAppSender(channels.WhatsAppConfig{
			BaseURL: cfg.WhatsApp.BaseURL,
			Token:   cfg.WhatsApp.Token,
			Sender:  cfg.WhatsApp.Sender,
		}))
		logger.Info("WhatsApp sender registered")
	} else if dev {
		registry.Register(NewMockSender(models.ChannelWhatsApp))
		logger.Warn("--- [MOCK] WhatsApp transport not configured, using mock sender ---")
	} else {
		logger.Warn("WhatsApp sender disabled: gateway not configured")
	}

	return registry
}

func initializeHandlers(serviceContainer *services.ServiceContainer) *handlers.AppHandlers {
	v := validator.New()
	base := handlers.NewBaseHandler(v)

	return &handlers.AppHandlers{
		DispatchHandler:     handlers.NewDispatchHandler(base, serviceContainer.DispatchService),
		NotificationHandler: handlers.NewNotificationHandler(base, serviceContainer.NotificationService),
		PreferenceHandler:   handlers.NewPreferenceHandler(base, serviceContainer.PreferenceService),
	}
}

func startWorkers(ctx context.Context, cfg *config.Config, notificationRepo repositories.NotificationRepository, dispatchService services.DispatchService) {
	dispatchWorker := workers.NewDispatchWorker(
		notificationRepo,
		dispatchService,
		time.Duration(cfg.Dispatch.WorkerPollSeconds)*time.Second,
	)
	dispatchWorker.Start(ctx)

	cleanupWorker := workers.NewCleanupWorker(
		notificationRepo,
		cfg.Dispatch.RetentionDays,
		cfg.Dispatch.CleanupCronSchedule,
	)
	if err := cleanupWorker.Start(); err != nil {
		logger.Fatal("Failed to start cleanup worker", "error", err)
	}
}

func initializeGinRouter(cfg *config.Config, gormDB *gorm.DB) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery())
	ginRouter.Use(middleware.RequestIDMiddleware())
	ginRouter.Use(middleware.LoggingMiddleware())
	ginRouter.Use(middleware.DBMiddleware(gormDB))

	return ginRouter
}
