package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
	} `yaml:"email"`

	Push struct {
		CredentialsPath string `yaml:"credentials_path"` // Firebase service account JSON
	} `yaml:"push"`

	SMS struct {
		BaseURL  string `yaml:"base_url"`
		APIKey   string `yaml:"api_key"`
		SenderID string `yaml:"sender_id"`
	} `yaml:"sms"`

	WhatsApp struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
		Sender  string `yaml:"sender"`
	} `yaml:"whatsapp"`

	Dispatch struct {
		SendTimeoutSeconds  int    `yaml:"send_timeout_seconds"`  // таймаут одной отправки в канал
		WorkerPollSeconds   int    `yaml:"worker_poll_seconds"`   // интервал опроса отложенных уведомлений
		RetentionDays       int    `yaml:"retention_days"`        // хранение прочитанных уведомлений
		CleanupCronSchedule string `yaml:"cleanup_cron_schedule"` // расписание очистки, формат cron
	} `yaml:"dispatch"`
}

var AppConfig *Config

func LoadConfig() {
	var cfg Config

	// .env не обязателен: в контейнере переменные приходят из окружения
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	dbURL := os.Getenv("DATABASE_URL")

	if dbURL == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			log.Fatalf("Failed to open config file at %s: %v", configPath, err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			log.Fatalf("Failed to parse config file at %s: %v", configPath, err)
		}

		applyDispatchDefaults(&cfg)
		AppConfig = &cfg
		return
	}

	// Конфигурация из переменных окружения (режим теста/контейнера)
	cfg.Database.DSN = dbURL
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))

	cfg.Email.SMTPHost = getEnv("SMTP_HOST", "smtp.test.com")
	cfg.Email.SMTPPort, _ = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	cfg.Email.SMTPUsername = os.Getenv("SMTP_USER")
	cfg.Email.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.Email.FromEmail = getEnv("SMTP_FROM", "noreply@notifyhub.io")
	cfg.Email.FromName = getEnv("SMTP_FROM_NAME", "NotifyHub")

	cfg.Push.CredentialsPath = os.Getenv("FIREBASE_CREDENTIALS_PATH")

	cfg.SMS.BaseURL = os.Getenv("SMS_BASE_URL")
	cfg.SMS.APIKey = os.Getenv("SMS_API_KEY")
	cfg.SMS.SenderID = getEnv("SMS_SENDER_ID", "NOTIFYHUB")

	cfg.WhatsApp.BaseURL = os.Getenv("WHATSAPP_BASE_URL")
	cfg.WhatsApp.Token = os.Getenv("WHATSAPP_TOKEN")
	cfg.WhatsApp.Sender = os.Getenv("WHATSAPP_SENDER")

	applyDispatchDefaults(&cfg)
	AppConfig = &cfg
}

func applyDispatchDefaults(cfg *Config) {
	if cfg.Dispatch.SendTimeoutSeconds <= 0 {
		cfg.Dispatch.SendTimeoutSeconds = 10
	}
	if cfg.Dispatch.WorkerPollSeconds <= 0 {
		cfg.Dispatch.WorkerPollSeconds = 30
	}
	if cfg.Dispatch.RetentionDays <= 0 {
		cfg.Dispatch.RetentionDays = 90
	}
	if cfg.Dispatch.CleanupCronSchedule == "" {
		cfg.Dispatch.CleanupCronSchedule = "0 3 * * *"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}
