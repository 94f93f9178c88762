package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/redis/go-redis/v9"
	"gopkg.in/telebot.v3"
)

// Checkable represents a component that can report its health status.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a plain function to Checkable.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Checker aggregates health checks for multiple components.
type Checker struct {
	log    *slog.Logger
	checks map[string]Checkable
}

// NewChecker instantiates a Checker with the provided logger.
func NewChecker(log *slog.Logger) *Checker {
	return &Checker{
		log:    log,
		checks: make(map[string]Checkable),
	}
}

// AddCheck registers a checkable component by name.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}
	c.checks[name] = check
}

// Names lists registered checks in a stable order.
func (c *Checker) Names() []string {
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs all registered health checks and returns their statuses.
// healthy is false when any check failed.
func (c *Checker) Check(ctx context.Context) (results map[string]string, healthy bool) {
	results = make(map[string]string, len(c.checks))
	healthy = true

	for name, check := range c.checks {
		if err := check.HealthCheck(ctx); err != nil {
			healthy = false
			results[name] = err.Error()
			if c.log != nil {
				c.log.ErrorContext(ctx, "health check failed", slog.String("component", name), slog.Any("error", err))
			}
			continue
		}

		results[name] = "OK"
	}

	return results, healthy
}

// StoreChecker verifies that the account document is readable and its
// directory accepts the temp file written on every save.
type StoreChecker struct {
	path string
}

func NewStoreChecker(path string) *StoreChecker {
	return &StoreChecker{path: path}
}

func (c *StoreChecker) HealthCheck(_ context.Context) error {
	if c == nil || c.path == "" {
		return errors.New("account store is not configured")
	}

	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("open account store: %w", err)
	}
	_ = f.Close()

	probe, err := os.CreateTemp(filepath.Dir(c.path), ".health-*")
	if err != nil {
		return fmt.Errorf("account store directory is not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	return nil
}

// Pinger abstracts the subset of redis.Client used for health checks.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker verifies connectivity to a Redis instance.
type RedisChecker struct {
	pinger Pinger
}

// NewRedisChecker constructs a RedisChecker.
func NewRedisChecker(pinger Pinger) *RedisChecker {
	return &RedisChecker{pinger: pinger}
}

// HealthCheck issues a PING command against Redis.
func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.pinger == nil {
		return redis.ErrClosed
	}
	return c.pinger.Ping(ctx).Err()
}

// TelegramChecker reports whether the bot has identified itself.
type TelegramChecker struct {
	bot *telebot.Bot
}

func NewTelegramChecker(bot *telebot.Bot) *TelegramChecker {
	return &TelegramChecker{bot: bot}
}

func (c *TelegramChecker) HealthCheck(_ context.Context) error {
	if c == nil || c.bot == nil || c.bot.Me == nil || c.bot.Me.ID == 0 {
		return errors.New("telegram bot is not initialized or disconnected")
	}
	return nil
}
