package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"
)

// Handler processes one Telegram update.
type Handler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

const contextKey = "minibank.ctx"

// WithContext attaches ctx to the update so downstream handlers share its
// correlation id.
func WithContext(c telebot.Context, ctx context.Context) {
	c.Set(contextKey, ctx)
}

// Context returns the context attached by WithContext, or Background.
func Context(c telebot.Context) context.Context {
	if c != nil {
		if ctx, ok := c.Get(contextKey).(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}
