package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/minibank/internal/bot/handlers"
	"github.com/Proton-105/minibank/internal/idempotency"
)

// Idempotency lets every Telegram update through at most once within ttl.
// Telegram redelivers updates after timeouts and restarts; without this a
// redelivered confirm tap would reach the conversation a second time.
func Idempotency(manager idempotency.Manager, ttl time.Duration, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler { return next }
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			key := updateKey(c)
			if key == "" {
				return next(c)
			}

			ctx := handlers.Context(c)
			result, err := manager.Execute(ctx, key, ttl, func(context.Context) (interface{}, error) {
				return nil, next(c)
			})

			duplicate := errors.Is(err, idempotency.ErrRequestInProgress) || (err == nil && result.FromCache)
			if !duplicate {
				return err
			}

			log.InfoContext(ctx, "duplicate update skipped", slog.String("key", key))
			// stop the spinner on the repeated tap; the first one answers for real
			if c.Callback() != nil {
				_ = c.Respond()
			}
			return nil
		}
	}
}

// updateKey identifies an update by callback id, or by chat and message id.
// Updates without either are never deduplicated.
func updateKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if cb := c.Callback(); cb != nil {
		if cb.ID == "" {
			return ""
		}
		return "tg:cb:" + cb.ID
	}

	msg := c.Message()
	if msg == nil || msg.ID == 0 || msg.Chat == nil {
		return ""
	}
	return "tg:msg:" + strconv.FormatInt(msg.Chat.ID, 10) + ":" + strconv.Itoa(msg.ID)
}
