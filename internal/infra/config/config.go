package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string
	DatabaseURL     string
	AdminTelegramID int64
	LogLevel        string
	Environment     string

	CronSpecQueueScan   string // How often due items are dispatched
	BatchMin            int    // Per-run cap on dispatched items is drawn from [BatchMin, BatchMax]
	BatchMax            int    // 0 disables the cap
	SendTimeout         time.Duration
	SendRatePerSecond   float64
	SendBurst           int
	AutostartDispatcher bool
	MigrateOnStart      bool

	RotationEnabled  bool
	RotationWaitMin  time.Duration
	RotationWaitMax  time.Duration
	RotationBatchMin int
	RotationBatchMax int
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.CronSpecQueueScan = os.Getenv("CRON_SPEC_QUEUE_SCAN")
	if cfg.CronSpecQueueScan == "" {
		cfg.CronSpecQueueScan = "@every 1m"
	}

	if cfg.BatchMin, err = intEnv("BATCH_MIN", 0); err != nil {
		return nil, err
	}
	if cfg.BatchMax, err = intEnv("BATCH_MAX", 0); err != nil {
		return nil, err
	}
	if cfg.BatchMax > 0 && cfg.BatchMin > cfg.BatchMax {
		return nil, fmt.Errorf("BATCH_MIN (%d) must not exceed BATCH_MAX (%d)", cfg.BatchMin, cfg.BatchMax)
	}

	if cfg.SendTimeout, err = durationEnv("SEND_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SendTimeout <= 0 {
		return nil, fmt.Errorf("SEND_TIMEOUT (%s) must be positive", cfg.SendTimeout)
	}
	if cfg.SendRatePerSecond, err = floatEnv("SEND_RATE_PER_SECOND", 1); err != nil {
		return nil, err
	}
	if cfg.SendBurst, err = intEnv("SEND_BURST", 1); err != nil {
		return nil, err
	}
	if cfg.AutostartDispatcher, err = boolEnv("AUTOSTART_DISPATCHER", true); err != nil {
		return nil, err
	}
	if cfg.MigrateOnStart, err = boolEnv("MIGRATE_ON_START", true); err != nil {
		return nil, err
	}

	if cfg.RotationEnabled, err = boolEnv("ROTATION_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.RotationWaitMin, err = durationEnv("ROTATION_WAIT_MIN", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RotationWaitMax, err = durationEnv("ROTATION_WAIT_MAX", 60*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RotationWaitMin <= 0 || cfg.RotationWaitMin > cfg.RotationWaitMax {
		return nil, fmt.Errorf("ROTATION_WAIT_MIN (%s) must be positive and not exceed ROTATION_WAIT_MAX (%s)", cfg.RotationWaitMin, cfg.RotationWaitMax)
	}
	if cfg.RotationBatchMin, err = intEnv("ROTATION_BATCH_MIN", 1); err != nil {
		return nil, err
	}
	if cfg.RotationBatchMax, err = intEnv("ROTATION_BATCH_MAX", 4); err != nil {
		return nil, err
	}
	if cfg.RotationBatchMin < 1 || cfg.RotationBatchMin > cfg.RotationBatchMax {
		return nil, fmt.Errorf("ROTATION_BATCH_MIN (%d) must be at least 1 and not exceed ROTATION_BATCH_MAX (%d)", cfg.RotationBatchMin, cfg.RotationBatchMax)
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

func floatEnv(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func boolEnv(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
