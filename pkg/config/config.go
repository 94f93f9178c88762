// Package config provides configuration loading and validation utilities.
package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds runtime configuration for the MiniBank service.
type Config struct {
	AppEnv        string              `mapstructure:"app_env" validate:"required,oneof=development staging production test"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Sentry        SentryConfig        `mapstructure:"sentry"`
	Bot           BotConfig           `mapstructure:"bot"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Ledger        LedgerConfig        `mapstructure:"ledger"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Session       SessionConfig       `mapstructure:"session"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Idempotency   IdempotencyConfig   `mapstructure:"idempotency"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
	// File enables a rotating log file next to stdout when set.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

type BotConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Token      string        `mapstructure:"token" validate:"required_if=Enabled true"`
	Mode       string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Timeout    time.Duration `mapstructure:"timeout"`
	WebhookURL string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
	Listen     string        `mapstructure:"listen"`
	// Lang is the catalog used for messages not tied to a chat update, such
	// as receiver notifications.
	Lang string `mapstructure:"lang"`
}

type HTTPConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LedgerConfig struct {
	PinLength      int    `mapstructure:"pin_length" validate:"gte=4,lte=12"`
	InitialBalance string `mapstructure:"initial_balance" validate:"required,numeric"`
	Currency       string `mapstructure:"currency" validate:"required"`
}

// InitialBalanceAmount returns the configured opening balance rounded to cents.
func (c LedgerConfig) InitialBalanceAmount() decimal.Decimal {
	d, err := decimal.NewFromString(c.InitialBalance)
	if err != nil {
		return decimal.Zero
	}
	return d.Round(2)
}

type StorageConfig struct {
	UsersFile  string `mapstructure:"users_file" validate:"required"`
	HistoryDir string `mapstructure:"history_dir" validate:"required"`
	Watch      bool   `mapstructure:"watch"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`

	PoolSize        int           `mapstructure:"pool_size" validate:"gte=0"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ConnectAttempts int           `mapstructure:"connect_attempts" validate:"gte=0"`
}

type SessionConfig struct {
	// Backend selects where conversation sessions live: memory or redis.
	Backend         string        `mapstructure:"backend" validate:"oneof=memory redis"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type NotificationsConfig struct {
	// Backend selects the notification queue: memory or asynq.
	Backend     string `mapstructure:"backend" validate:"oneof=memory asynq"`
	Workers     int    `mapstructure:"workers" validate:"gte=1"`
	QueueSize   int    `mapstructure:"queue_size" validate:"gte=1"`
	MaxRetry    int    `mapstructure:"max_retry" validate:"gte=0"`
	Concurrency int    `mapstructure:"concurrency" validate:"gte=1"`
}

type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Limit     int           `mapstructure:"limit" validate:"gte=1"`
	Window    time.Duration `mapstructure:"window"`
	Whitelist []int64       `mapstructure:"whitelist"`
}

type IdempotencyConfig struct {
	// TTL is how long a processed update or request key is remembered.
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}
