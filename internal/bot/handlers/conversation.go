package handlers

import (
	"context"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/minibank/internal/bot/keyboard"
	"github.com/Proton-105/minibank/internal/conversation"
	"github.com/Proton-105/minibank/internal/i18n"
)

// Engine is the conversation entry point the bot forwards updates to.
type Engine interface {
	Handle(ctx context.Context, actorID int64, in conversation.Input) (*conversation.Reply, error)
}

// NewConversationHandler turns text messages and button taps into
// conversation input and sends back the rendered reply.
func NewConversationHandler(engine Engine, catalog *i18n.Manager, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			log.Warn("update without sender ignored")
			return nil
		}

		in := conversation.Input{Lang: sender.LanguageCode}
		if cb := c.Callback(); cb != nil {
			// Stop the client side spinner whatever happens next.
			_ = c.Respond()

			action, _, err := keyboard.DecodeCallback(strings.TrimSpace(cb.Data))
			if err != nil {
				return nil
			}
			in.Action = action
		} else {
			in.Text = normalizeCommand(c.Text())
		}

		actorID := sender.ID
		if chat := c.Chat(); chat != nil {
			actorID = chat.ID
		}

		reply, err := engine.Handle(Context(c), actorID, in)
		if err != nil || reply == nil {
			return err
		}

		tr := catalog.Translator(sender.LanguageCode)
		opts := []interface{}{telebot.ModeMarkdown}
		if markup := keyboard.Render(tr, reply.Keyboard); markup != nil {
			opts = append(opts, markup)
		}

		return c.Send(reply.Text, opts...)
	}
}

// normalizeCommand strips the "@botname" suffix Telegram adds to commands
// sent in groups.
func normalizeCommand(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return cmd
}
