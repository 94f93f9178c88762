package middleware

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/minibank/internal/bot/handlers"
	"github.com/Proton-105/minibank/internal/bot/keyboard"
	"github.com/Proton-105/minibank/internal/conversation"
	"github.com/Proton-105/minibank/pkg/metrics"
)

// knownLabels bounds the "command" label: anything else a user can type
// (names, phones, PINs, unknown commands) collapses to a generic value.
var knownLabels = map[string]struct{}{
	conversation.CommandStart:     {},
	conversation.CommandCancel:    {},
	conversation.ActionRegister:   {},
	conversation.ActionTransfer:   {},
	conversation.ActionConfirmYes: {},
	conversation.ActionConfirmNo:  {},
	conversation.ActionCancel:     {},
}

// Metrics reports handler latency and outcome per command or callback action.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordCommand(commandLabel(c), status, time.Since(start))

		return err
	}
}

func commandLabel(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil {
		action, _, err := keyboard.DecodeCallback(strings.TrimSpace(cb.Data))
		if _, ok := knownLabels[action]; err == nil && ok {
			return action
		}
		return "callback"
	}

	text := strings.TrimSpace(c.Text())
	switch {
	case text == "":
		return "unknown"
	case strings.HasPrefix(text, "/"):
		cmd, _, _ := strings.Cut(text, " ")
		cmd, _, _ = strings.Cut(cmd, "@")
		if _, ok := knownLabels[cmd]; ok {
			return cmd
		}
		return "command"
	default:
		return "text"
	}
}
