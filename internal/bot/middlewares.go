package bot

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/minibank/internal/bot/handlers"
	"github.com/Proton-105/minibank/internal/errors"
	"github.com/Proton-105/minibank/internal/i18n"
	"github.com/Proton-105/minibank/pkg/logger"
)

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler, catalog *i18n.Manager) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
				if errHandler != nil {
					errHandler.Handle(handlers.Context(c), errors.Wrap(errors.ErrInternal, fmt.Errorf("panic recovered: %v", r)))
				}

				if sendErr := c.Send(errorText(c, catalog)); sendErr != nil {
					log.Error("failed to notify user about panic", slog.Any("error", sendErr))
				}
				err = nil
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware reports infrastructure failures and answers with
// a generic localized message. Business outcomes never get here; the
// conversation engine turns them into replies.
func ErrorHandlingMiddleware(errHandler *errors.Handler, catalog *i18n.Manager) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			if errHandler != nil {
				errHandler.Handle(handlers.Context(c), err)
			}
			_ = c.Send(errorText(c, catalog))

			return nil
		}
	}
}

// LoggingMiddleware attaches a correlation id to the update and logs its
// outcome. Message text is never logged since it may hold a PIN.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			ctx := logger.WithCorrelationID(handlers.Context(c), fmt.Sprintf("tg-%d", c.Update().ID))
			handlers.WithContext(c, ctx)

			userID := int64(0)
			if c.Sender() != nil {
				userID = c.Sender().ID
			}
			kind := updateKind(c)

			log.DebugContext(ctx, "handling update", slog.Int64("user_id", userID), slog.String("kind", kind))
			err := next(c)
			log.InfoContext(ctx, "handled update",
				slog.Int64("user_id", userID),
				slog.String("kind", kind),
				slog.Duration("duration", time.Since(start)),
				slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

func updateKind(c telebot.Context) string {
	switch text := c.Text(); {
	case c.Callback() != nil:
		return "callback:" + c.Callback().Data
	case strings.HasPrefix(text, "/"):
		return "command"
	default:
		return "text"
	}
}

func errorText(c telebot.Context, catalog *i18n.Manager) string {
	lang := ""
	if c.Sender() != nil {
		lang = c.Sender().LanguageCode
	}
	return catalog.Translator(lang).T("common.error")
}
