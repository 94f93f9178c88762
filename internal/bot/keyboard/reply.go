package keyboard

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/minibank/internal/i18n"
)

// mainMenuLayout lists the i18n keys of the persistent menu, row by row.
// The conversation engine matches the translated texts as menu choices.
var mainMenuLayout = [][]string{
	{"menu.wallet", "menu.history"},
	{"menu.profile"},
}

// MainMenu builds the persistent reply keyboard shown outside of flows.
func MainMenu(t i18n.Translator) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{ResizeKeyboard: true}

	rows := make([]telebot.Row, 0, len(mainMenuLayout))
	for _, keys := range mainMenuLayout {
		buttons := make([]telebot.Btn, 0, len(keys))
		for _, key := range keys {
			buttons = append(buttons, markup.Text(t.T(key)))
		}
		rows = append(rows, markup.Row(buttons...))
	}
	markup.Reply(rows...)

	return markup
}
