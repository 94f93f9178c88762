// Package bot is the Telegram front-end: it feeds updates to the
// conversation engine and renders the replies.
package bot

import (
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/minibank/internal/bot/handlers"
	"github.com/Proton-105/minibank/internal/conversation"
	"github.com/Proton-105/minibank/internal/errors"
	"github.com/Proton-105/minibank/internal/i18n"
	"github.com/Proton-105/minibank/internal/idempotency"
	"github.com/Proton-105/minibank/internal/middleware"
	"github.com/Proton-105/minibank/pkg/config"
)

// Deps are the collaborators the bot routes updates through.
type Deps struct {
	Engine         handlers.Engine
	I18n           *i18n.Manager
	ErrHandler     *errors.Handler
	Idempotency    idempotency.Manager
	IdempotencyTTL time.Duration
	RateLimit      *middleware.RateLimitMiddleware
}

// Bot wraps telebot.Bot with the router and its middleware chain.
type Bot struct {
	telebot *telebot.Bot
	router  *Router
	log     *slog.Logger
}

// NewTelebot creates the Telegram client. It is separate from New because
// the notification dispatcher needs the client before the engine exists.
func NewTelebot(cfg config.BotConfig, log *slog.Logger) (*telebot.Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Token,
		OnError: func(err error, c telebot.Context) {
			log.Error("telebot error", slog.Any("error", err))
		},
	}

	if cfg.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.Listen,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	return tb, nil
}

// New wires the router onto tb.
func New(tb *telebot.Bot, deps Deps, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "bot"))

	b := &Bot{
		telebot: tb,
		router:  NewRouter(log),
		log:     log,
	}

	b.setupRouter(deps)

	if deps.RateLimit != nil {
		b.telebot.Use(deps.RateLimit.Handle)
	}
	b.telebot.Handle(telebot.OnText, b.router.Route)
	b.telebot.Handle(telebot.OnCallback, b.router.Route)

	return b
}

// Start runs the update loop and blocks until Stop.
func (b *Bot) Start() {
	username := ""
	if b.telebot.Me != nil {
		username = b.telebot.Me.Username
	}
	b.log.Info("telegram bot started", slog.String("username", username))
	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying client for health checks and notifications.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) setupRouter(deps Deps) {
	b.router.Use(RecoveryMiddleware(b.log, deps.ErrHandler, deps.I18n))
	b.router.Use(LoggingMiddleware(b.log))
	b.router.Use(middleware.Idempotency(deps.Idempotency, deps.IdempotencyTTL, b.log))
	b.router.Use(ErrorHandlingMiddleware(deps.ErrHandler, deps.I18n))
	b.router.Use(middleware.Metrics)

	converse := handlers.NewConversationHandler(deps.Engine, deps.I18n, b.log)

	b.router.RegisterCommand(conversation.CommandStart, converse)
	b.router.RegisterCommand(conversation.CommandCancel, converse)
	for _, action := range []string{
		conversation.ActionRegister,
		conversation.ActionTransfer,
		conversation.ActionConfirmYes,
		conversation.ActionConfirmNo,
		conversation.ActionCancel,
	} {
		b.router.RegisterCallback(action, converse)
	}
	b.router.SetDefault(converse)
}
