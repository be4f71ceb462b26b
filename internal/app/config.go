package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config описывает настройки запуска приложения.
type Config struct {
	// HTTPAddr — адрес основного HTTP API.
	HTTPAddr string
	// MetricsAddr — адрес служебного сервера (/metrics, /healthz, /livez, /readyz).
	MetricsAddr string

	// PostgresDSN включает постоянное хранилище; пустая строка — in-memory.
	PostgresDSN string
	// PostgresAutoMigrate применяет миграции при старте.
	PostgresAutoMigrate bool

	// KafkaBrokers — список брокеров через запятую; пусто — без Kafka.
	KafkaBrokers string

	// LowStockThreshold — порог «мало на складе»; <= 0 берёт значение по умолчанию.
	LowStockThreshold int32

	// OutboxPollInterval — период опроса outbox воркером.
	OutboxPollInterval time.Duration
	// IdempotencyCleanupInterval — период чистки просроченных idempotency-записей.
	IdempotencyCleanupInterval time.Duration
}

// DefaultConfig возвращает базовые значения для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                   ":8080",
		MetricsAddr:                ":9090",
		PostgresAutoMigrate:        true,
		OutboxPollInterval:         2 * time.Second,
		IdempotencyCleanupInterval: time.Hour,
	}
}

// FromEnv накладывает переменные окружения POS_* поверх DefaultConfig.
func FromEnv() Config {
	cfg := DefaultConfig()
	if v := strings.TrimSpace(os.Getenv("POS_HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("POS_METRICS_ADDR")); v != "" {
		cfg.MetricsAddr = v
	}
	cfg.PostgresDSN = strings.TrimSpace(os.Getenv("POS_POSTGRES_DSN"))
	if v := strings.TrimSpace(os.Getenv("POS_POSTGRES_AUTO_MIGRATE")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.PostgresAutoMigrate = parsed
		}
	}
	cfg.KafkaBrokers = strings.TrimSpace(os.Getenv("POS_KAFKA_BROKERS"))
	if v := strings.TrimSpace(os.Getenv("POS_LOW_STOCK_THRESHOLD")); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 32); err == nil && parsed > 0 {
			cfg.LowStockThreshold = int32(parsed)
		}
	}
	if v := strings.TrimSpace(os.Getenv("POS_OUTBOX_POLL_INTERVAL")); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			cfg.OutboxPollInterval = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("POS_IDEMPOTENCY_CLEANUP_INTERVAL")); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			cfg.IdempotencyCleanupInterval = parsed
		}
	}
	return cfg
}
