package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Development bool
	// API configuration
	APIPort        int
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int

	// Database configuration
	DBDriver         string
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	SQLitePath       string

	// Ledger policy
	WithdrawalCapRatio      decimal.Decimal
	DebitWalletOnActivation bool
	DepositPresets          []decimal.Decimal
	ExpirySweepSchedule     string
	PlansFile               string

	// Per-user locking. Empty RedisAddr means an in-process lock.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string
	AdminEmail   string

	// Notification configuration
	TelegramBotToken    string
	TelegramAdminChatID string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:    getEnvAsBool("DEVELOPMENT", false),
		APIPort:        getEnvAsInt("API_PORT", 6532),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 10),

		DBDriver:         getEnv("DB_DRIVER", DriverPostgres),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "stakeplan"),
		SQLitePath:       getEnv("SQLITE_PATH", "stakeplan.db"),

		WithdrawalCapRatio:      getEnvAsDecimal("WITHDRAWAL_CAP_RATIO", decimal.NewFromFloat(0.5)),
		DebitWalletOnActivation: getEnvAsBool("DEBIT_WALLET_ON_ACTIVATION", false),
		DepositPresets:          getEnvAsDecimals("DEPOSIT_PRESETS", DefaultDepositPresets()),
		ExpirySweepSchedule:     getEnv("EXPIRY_SWEEP_SCHEDULE", "@every 10m"),
		PlansFile:               getEnv("PLANS_FILE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		LockTTL:       getEnvAsDuration("LOCK_TTL", 10*time.Second),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),
		AdminEmail:   getEnv("ADMIN_EMAIL", ""),

		TelegramBotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAdminChatID: getEnv("TELEGRAM_ADMIN_CHAT_ID", ""),
	}

	return cfg, nil
}

// DefaultDepositPresets are the quick-pick deposit amounts offered to clients.
func DefaultDepositPresets() []decimal.Decimal {
	return []decimal.Decimal{
		decimal.NewFromInt(100),
		decimal.NewFromInt(500),
		decimal.NewFromInt(1000),
		decimal.NewFromInt(2000),
	}
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if err := c.ValidateDatabase(); err != nil {
		return err
	}

	if !c.WithdrawalCapRatio.IsPositive() || c.WithdrawalCapRatio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("WITHDRAWAL_CAP_RATIO must be in (0, 1], got %s", c.WithdrawalCapRatio)
	}

	for _, preset := range c.DepositPresets {
		if !preset.IsPositive() {
			return fmt.Errorf("DEPOSIT_PRESETS must be positive, got %s", preset)
		}
	}

	if c.ExpirySweepSchedule != "" {
		if _, err := cron.ParseStandard(c.ExpirySweepSchedule); err != nil {
			return fmt.Errorf("invalid EXPIRY_SWEEP_SCHEDULE: %w", err)
		}
	}

	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	if c.TelegramBotToken != "" && c.TelegramAdminChatID == "" {
		return fmt.Errorf("TELEGRAM_ADMIN_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	if c.SMTPHost != "" && (c.SMTPSender == "" || c.AdminEmail == "") {
		return fmt.Errorf("SMTP_SENDER and ADMIN_EMAIL are required when SMTP_HOST is set")
	}

	return nil
}

// ValidateDatabase checks only the database settings. Used by commands that need no API.
func (c *Config) ValidateDatabase() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required")
		}
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q: expected %s or %s", c.DBDriver, DriverPostgres, DriverSQLite)
	}
	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsFloat(name string, defaultValue float64) float64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDecimal(name string, defaultValue decimal.Decimal) decimal.Decimal {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := decimal.NewFromString(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

// getEnvAsDecimals reads a comma separated list. Any unparsable entry falls back to the default.
func getEnvAsDecimals(name string, defaultValue []decimal.Decimal) []decimal.Decimal {
	valueStr, exists := os.LookupEnv(name)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	var values []decimal.Decimal
	for _, part := range strings.Split(valueStr, ",") {
		value, err := decimal.NewFromString(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		values = append(values, value)
	}
	return values
}
