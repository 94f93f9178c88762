package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"
)

func offlineContext(t *testing.T, u telebot.Update) telebot.Context {
	t.Helper()
	b, err := telebot.NewBot(telebot.Settings{Offline: true})
	require.NoError(t, err)
	return b.NewContext(u)
}

func TestCommandLabel(t *testing.T) {
	chat := &telebot.Chat{ID: 42}

	tests := map[string]struct {
		update telebot.Update
		want   string
	}{
		"start command":   {telebot.Update{Message: &telebot.Message{ID: 1, Chat: chat, Text: "/start"}}, "/start"},
		"addressed":       {telebot.Update{Message: &telebot.Message{ID: 1, Chat: chat, Text: "/cancel@minibank_bot"}}, "/cancel"},
		"unknown command": {telebot.Update{Message: &telebot.Message{ID: 1, Chat: chat, Text: "/balance"}}, "command"},
		"free text":       {telebot.Update{Message: &telebot.Message{ID: 1, Chat: chat, Text: "+992900000001"}}, "text"},
		"known callback":  {telebot.Update{Callback: &telebot.Callback{ID: "c", Data: "confirm_yes"}}, "confirm_yes"},
		"other callback":  {telebot.Update{Callback: &telebot.Callback{ID: "c", Data: "whatever:1"}}, "callback"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, commandLabel(offlineContext(t, tt.update)))
		})
	}
	assert.Equal(t, "unknown", commandLabel(nil))
}

func TestUpdateKey(t *testing.T) {
	chat := &telebot.Chat{ID: 42}

	assert.Equal(t, "tg:cb:abc", updateKey(offlineContext(t, telebot.Update{Callback: &telebot.Callback{ID: "abc"}})))
	assert.Equal(t, "tg:msg:42:7", updateKey(offlineContext(t, telebot.Update{Message: &telebot.Message{ID: 7, Chat: chat}})))
	assert.Empty(t, updateKey(offlineContext(t, telebot.Update{})))
}
