package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"booklend/internal/core/domain"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	AppMode      string
	Port         string
	EnvFileFound bool
	Database     DatabaseConfig
	Store        StoreConfig
	JWT          JWTConfig
	Payment      PaymentConfig
	Commission   domain.CommissionPolicy
	Dispute      domain.DisputePolicy
	Notification NotificationConfig
	Redis        RedisConfig
	Log          LogConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// StoreConfig selects the persistence adapter
type StoreConfig struct {
	Driver string
}

// JWTConfig holds the secret used to validate access tokens issued by the
// auth service
type JWTConfig struct {
	Secret string
}

// PaymentConfig holds the shared key of the payment service callback
type PaymentConfig struct {
	APIKey string
}

// NotificationConfig holds notification delivery settings
type NotificationConfig struct {
	WebhookURL     string
	WebhookTimeout time.Duration
	RedeliveryCron string
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
}

// RedisConfig holds redis configuration for the rate limiter
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// Store drivers
const (
	StoreGorm   = "gorm"
	StoreMemory = "memory"
)

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// .env is optional; production reads the real environment
	envFound := godotenv.Load() == nil

	// trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	database, err := loadDatabaseConfig(appMode)
	if err != nil {
		return nil, err
	}
	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}
	commission, err := loadCommissionPolicy()
	if err != nil {
		return nil, err
	}
	dispute, err := loadDisputePolicy()
	if err != nil {
		return nil, err
	}
	notification, err := loadNotificationConfig()
	if err != nil {
		return nil, err
	}
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	config := &Config{
		AppMode:      appMode,
		Port:         getEnv("PORT", "3000"),
		EnvFileFound: envFound,
		Database:     database,
		Store:        store,
		JWT:          loadJWTConfig(appMode),
		Payment:      PaymentConfig{APIKey: getEnv("PAYMENT_API_KEY", "")},
		Commission:   commission,
		Dispute:      dispute,
		Notification: notification,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Log: LogConfig{Level: getEnv("LOG_LEVEL", "info")},
	}

	if config.IsProd() && config.Payment.APIKey == "" {
		return nil, fmt.Errorf("PAYMENT_API_KEY is required in prod mode")
	}

	return config, nil
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) (DatabaseConfig, error) {
	prefix := modePrefix(mode)

	driver := strings.ToLower(getEnv("DB_DRIVER", "mysql"))
	defaultPort := "3306"
	switch driver {
	case "mysql":
	case "postgres":
		defaultPort = "5432"
	default:
		return DatabaseConfig{}, fmt.Errorf("invalid DB_DRIVER: '%s' (must be 'mysql' or 'postgres')", driver)
	}

	return DatabaseConfig{
		Driver:   driver,
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", defaultPort),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "booklend"),
	}, nil
}

func loadStoreConfig() (StoreConfig, error) {
	driver := strings.ToLower(getEnv("STORE_DRIVER", StoreGorm))
	if driver != StoreGorm && driver != StoreMemory {
		return StoreConfig{}, fmt.Errorf("invalid STORE_DRIVER: '%s' (must be '%s' or '%s')", driver, StoreGorm, StoreMemory)
	}
	return StoreConfig{Driver: driver}, nil
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	return JWTConfig{
		Secret: getEnv(modePrefix(mode)+"JWT_SECRET", "default_secret"),
	}
}

func loadCommissionPolicy() (domain.CommissionPolicy, error) {
	var policy domain.CommissionPolicy
	fields := []struct {
		key  string
		def  string
		dest *decimal.Decimal
	}{
		{"COMMISSION_RATE", "0.10", &policy.Rate},
		{"COMMISSION_FLOOR", "0", &policy.Floor},
		{"COMMISSION_CEILING", "0", &policy.Ceiling},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(getEnv(f.key, f.def))
		if err != nil {
			return policy, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		*f.dest = v
	}
	if err := policy.Validate(); err != nil {
		return policy, fmt.Errorf("commission policy: %w", err)
	}
	return policy, nil
}

func loadDisputePolicy() (domain.DisputePolicy, error) {
	def := domain.DefaultDisputePolicy()
	policy := domain.DisputePolicy{
		domain.ComplaintResolved: domain.Status(getEnv("DISPUTE_RESOLVED_TARGET", string(def[domain.ComplaintResolved]))),
		domain.ComplaintRejected: domain.Status(getEnv("DISPUTE_REJECTED_TARGET", string(def[domain.ComplaintRejected]))),
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("dispute policy: %w", err)
	}
	return policy, nil
}

func loadNotificationConfig() (NotificationConfig, error) {
	cfg := NotificationConfig{
		WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
		RedeliveryCron: getEnv("NOTIFY_REDELIVERY_CRON", "@every 1m"),
	}

	var err error
	if cfg.WebhookTimeout, err = time.ParseDuration(getEnv("NOTIFY_WEBHOOK_TIMEOUT", "5s")); err != nil {
		return cfg, fmt.Errorf("invalid NOTIFY_WEBHOOK_TIMEOUT: %w", err)
	}
	if cfg.BackoffBase, err = time.ParseDuration(getEnv("NOTIFY_BACKOFF_BASE", "30s")); err != nil {
		return cfg, fmt.Errorf("invalid NOTIFY_BACKOFF_BASE: %w", err)
	}
	if cfg.BackoffMax, err = time.ParseDuration(getEnv("NOTIFY_BACKOFF_MAX", "1h")); err != nil {
		return cfg, fmt.Errorf("invalid NOTIFY_BACKOFF_MAX: %w", err)
	}
	if cfg.BackoffBase <= 0 || cfg.BackoffMax < cfg.BackoffBase {
		return cfg, fmt.Errorf("invalid NOTIFY_BACKOFF_MAX: must be at least NOTIFY_BACKOFF_BASE")
	}
	if cfg.MaxAttempts, err = strconv.Atoi(getEnv("NOTIFY_MAX_ATTEMPTS", "8")); err != nil || cfg.MaxAttempts < 1 {
		return cfg, fmt.Errorf("invalid NOTIFY_MAX_ATTEMPTS: must be a positive integer")
	}
	return cfg, nil
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://booklend.app"
	}
	return origins
}
