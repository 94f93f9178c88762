// Package notify delivers "you received money" messages to receivers'
// chat channels. Delivery is best effort: failures are logged and reported
// as false, never returned to the transfer that triggered them.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/minibank/internal/domain"
	"github.com/Proton-105/minibank/internal/errors"
	"github.com/Proton-105/minibank/internal/i18n"
	"github.com/Proton-105/minibank/pkg/metrics"
)

// Sender is the subset of *telebot.Bot used for delivery.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

type Dispatcher struct {
	sender   Sender
	tr       i18n.Translator
	currency string
	menu     *telebot.ReplyMarkup
	breaker  *errors.CircuitBreaker
	retry    errors.RetryPolicy
	log      *slog.Logger
}

// NewDispatcher builds a dispatcher rendering texts with tr. menu, when not
// nil, is attached so the receiver lands on the main keyboard.
func NewDispatcher(sender Sender, tr i18n.Translator, currency string, menu *telebot.ReplyMarkup, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	log = log.With(slog.String("component", "notify"))

	return &Dispatcher{
		sender:   sender,
		tr:       tr,
		currency: currency,
		menu:     menu,
		breaker: errors.NewCircuitBreaker(errors.BreakerSettings{
			OnStateChange: func(from, to errors.State) {
				log.Warn("telegram circuit breaker changed state",
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
		}),
		retry: errors.DefaultRetry,
		log:   log,
	}
}

// Notify tells receiver that senderName sent them amount. It returns false
// without error when the receiver has no chat link.
func (d *Dispatcher) Notify(ctx context.Context, receiver domain.Account, senderName string, amount decimal.Decimal) bool {
	return d.Deliver(ctx, domain.TransferNotice{
		ReceiverID:      receiver.ID,
		ReceiverName:    receiver.FullName(),
		ChatLink:        receiver.ChatLink,
		ReceiverBalance: receiver.Balance,
		SenderName:      senderName,
		Amount:          amount,
	})
}

// Deliver sends one notice. Transient send failures are retried with
// backoff behind a circuit breaker.
func (d *Dispatcher) Deliver(ctx context.Context, notice domain.TransferNotice) bool {
	if notice.ChatLink == "" {
		metrics.RecordNotification("skipped")
		d.log.InfoContext(ctx, "receiver has no chat link", slog.Int64("receiver_id", notice.ReceiverID))
		return false
	}

	chatID, err := strconv.ParseInt(notice.ChatLink, 10, 64)
	if err != nil {
		metrics.RecordNotification("failed")
		d.log.WarnContext(ctx, "receiver chat link is not a chat id",
			slog.Int64("receiver_id", notice.ReceiverID),
			slog.String("chat_link", notice.ChatLink),
		)
		return false
	}

	text := d.tr.F("notify.received", map[string]any{
		"Sender":   notice.SenderName,
		"Amount":   domain.FormatAmount(notice.Amount),
		"Balance":  domain.FormatAmount(notice.ReceiverBalance),
		"Currency": d.currency,
	})

	opts := []interface{}{telebot.ModeMarkdown}
	if d.menu != nil {
		opts = append(opts, d.menu)
	}

	err = errors.Retry(ctx, d.retry, func() error {
		return d.breaker.Call(func() error {
			if _, sendErr := d.sender.Send(telebot.ChatID(chatID), text, opts...); sendErr != nil {
				return errors.NewExternalAPIError("telegram", sendErr)
			}
			return nil
		})
	})
	if err != nil {
		metrics.RecordNotification("failed")
		d.log.WarnContext(ctx, "notification not delivered",
			slog.Int64("receiver_id", notice.ReceiverID),
			slog.Any("error", err),
		)
		return false
	}

	metrics.RecordNotification("delivered")
	d.log.InfoContext(ctx, "notification delivered", slog.Int64("receiver_id", notice.ReceiverID))
	return true
}

// DeliverFunc adapts Deliver for queues that need an error to decide on
// retries.
func (d *Dispatcher) DeliverFunc() func(ctx context.Context, notice domain.TransferNotice) error {
	return func(ctx context.Context, notice domain.TransferNotice) error {
		if !d.Deliver(ctx, notice) && notice.ChatLink != "" {
			return fmt.Errorf("notification for account %d: %w", notice.ReceiverID, errors.ErrNotificationFault)
		}
		return nil
	}
}
