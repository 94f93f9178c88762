package keyboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/minibank/internal/bot/keyboard"
	"github.com/Proton-105/minibank/internal/conversation"
	"github.com/Proton-105/minibank/internal/i18n"
)

func TestMainMenu(t *testing.T) {
	markup := keyboard.MainMenu(i18n.MustLoad("en").Translator("en"))

	assert.True(t, markup.ResizeKeyboard)

	expectedRows := [][]string{
		{"💰 Wallet", "📋 History"},
		{"👤 Profile"},
	}

	require.Len(t, markup.ReplyKeyboard, len(expectedRows))
	for i, row := range expectedRows {
		require.Len(t, markup.ReplyKeyboard[i], len(row))
		for j, text := range row {
			assert.Equal(t, text, markup.ReplyKeyboard[i][j].Text)
		}
	}
}

func TestRender(t *testing.T) {
	tr := i18n.MustLoad("en").Translator("en")

	assert.Nil(t, keyboard.Render(tr, conversation.KeyboardNone))

	confirm := keyboard.Render(tr, conversation.KeyboardConfirm)
	require.Len(t, confirm.InlineKeyboard, 1)
	require.Len(t, confirm.InlineKeyboard[0], 2)
	assert.Equal(t, conversation.ActionConfirmYes, confirm.InlineKeyboard[0][0].Data)
	assert.Equal(t, conversation.ActionConfirmNo, confirm.InlineKeyboard[0][1].Data)

	register := keyboard.Render(tr, conversation.KeyboardRegister)
	assert.Equal(t, "📝 Sign up", register.InlineKeyboard[0][0].Text)
	assert.Equal(t, conversation.ActionRegister, register.InlineKeyboard[0][0].Data)

	menu := keyboard.Render(tr, conversation.KeyboardMenu)
	assert.NotEmpty(t, menu.ReplyKeyboard)
}
