package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional ./configs/<env>.yaml file and
// environment variables, validates it, and returns the resulting Config.
// Environment variables use the key path with dots replaced by underscores,
// for example BOT_TOKEN or LEDGER_PIN_LENGTH.
func Load() (*Config, error) {
	// missing env files are fine
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	setDefaults(v)
	v.Set("app_env", env)
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs struct validation over cfg.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if cfg.Ledger.InitialBalanceAmount().IsNegative() {
		return fmt.Errorf("validate config: ledger.initial_balance %q must not be negative", cfg.Ledger.InitialBalance)
	}

	if !cfg.Redis.Enabled {
		if cfg.Session.Backend == "redis" {
			return errors.New("validate config: session.backend=redis requires redis.enabled")
		}
		if cfg.Notifications.Backend == "asynq" {
			return errors.New("validate config: notifications.backend=asynq requires redis.enabled")
		}
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can resolve nested values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 28)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("bot.enabled", true)
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.mode", "polling")
	v.SetDefault("bot.timeout", 10*time.Second)
	v.SetDefault("bot.webhook_url", "")
	v.SetDefault("bot.listen", ":8443")
	v.SetDefault("bot.lang", "ru")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("ledger.pin_length", 4)
	v.SetDefault("ledger.initial_balance", "1000.00")
	v.SetDefault("ledger.currency", "TJS")

	v.SetDefault("storage.users_file", "data/users.json")
	v.SetDefault("storage.history_dir", "data/history")
	v.SetDefault("storage.watch", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.connect_attempts", 3)

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", time.Hour)
	v.SetDefault("session.cleanup_interval", 10*time.Minute)

	v.SetDefault("notifications.backend", "memory")
	v.SetDefault("notifications.workers", 2)
	v.SetDefault("notifications.queue_size", 256)
	v.SetDefault("notifications.max_retry", 3)
	v.SetDefault("notifications.concurrency", 5)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.limit", 30)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.whitelist", []int64{})

	v.SetDefault("idempotency.ttl", 24*time.Hour)
	v.SetDefault("idempotency.cleanup_interval", 30*time.Minute)
}
