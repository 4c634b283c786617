package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	LogLevel    string
	HTTPAddr    string
	DBDSN       string
	JWTSecret   string
	FrontendURL string
	CORSOrigins string

	// Гражданская зона портала: все даты и время окон в ней
	CivilZoneName          string
	CivilZoneOffsetMinutes int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SlotCacheTTL  time.Duration

	KafkaBrokers      string
	OutboxPollEvery   time.Duration
	OutboxBatchSize   int
	NotifyTimeout     time.Duration
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	SMTPFrom          string
	TelegramToken     string
	TelegramAdminChat int64

	OTelEnabled     bool
	OTelEndpoint    string
	OTelSampleRatio float64

	MaterializeWeeks int
	MaterializeCron  string
	FeedbackCron     string
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	} else {
		log.Println("Loaded configuration from .env file")
	}

	cfg := &Config{
		Environment: getenv("ENV", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DBDSN:       os.Getenv("DB_DSN"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		FrontendURL: strings.TrimRight(getenv("FRONTEND_URL", "http://localhost:3000"), "/"),
		CORSOrigins: getenv("CORS_ORIGINS", "*"),

		CivilZoneName:          getenv("CIVIL_ZONE_NAME", "EST"),
		CivilZoneOffsetMinutes: getInt("CIVIL_ZONE_OFFSET_MINUTES", -300),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		SlotCacheTTL:  getDuration("SLOT_CACHE_TTL", 5*time.Minute),

		KafkaBrokers:      os.Getenv("KAFKA_BROKERS"),
		OutboxPollEvery:   getDuration("OUTBOX_POLL_EVERY", 2*time.Second),
		OutboxBatchSize:   getInt("OUTBOX_BATCH_SIZE", 50),
		NotifyTimeout:     getDuration("NOTIFY_TIMEOUT", 15*time.Second),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          getInt("SMTP_PORT", 587),
		SMTPUsername:      os.Getenv("SMTP_USERNAME"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:          getenv("SMTP_FROM", "noreply@tutoring.local"),
		TelegramToken:     os.Getenv("TELEGRAM_TOKEN"),
		TelegramAdminChat: int64(getInt("TELEGRAM_ADMIN_CHAT_ID", 0)),

		OTelEnabled:     getBool("OTEL_ENABLED", false),
		OTelEndpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSampleRatio: getFloat("OTEL_SAMPLING_RATIO", 1),

		MaterializeWeeks: getInt("MATERIALIZE_WEEKS", 4),
		MaterializeCron:  getenv("MATERIALIZE_CRON", "0 3 * * *"),
		FeedbackCron:     getenv("FEEDBACK_CRON", "*/5 * * * *"),
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}
	if cfg.OTelSampleRatio < 0 || cfg.OTelSampleRatio > 1 {
		return nil, fmt.Errorf("OTEL_SAMPLING_RATIO must be within [0, 1], got %v", cfg.OTelSampleRatio)
	}
	if cfg.MaterializeWeeks < 0 {
		return nil, fmt.Errorf("MATERIALIZE_WEEKS must not be negative")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := getenv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := getenv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := getenv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
