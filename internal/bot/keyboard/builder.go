package keyboard

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/minibank/internal/conversation"
	"github.com/Proton-105/minibank/internal/i18n"
)

// Render returns the markup for kind, or nil for KeyboardNone.
func Render(t i18n.Translator, kind conversation.Keyboard) *telebot.ReplyMarkup {
	switch kind {
	case conversation.KeyboardMenu:
		return MainMenu(t)
	case conversation.KeyboardRegister:
		return inline(InlineButton{Text: t.T("button.register"), Action: conversation.ActionRegister})
	case conversation.KeyboardWallet:
		return inline(InlineButton{Text: t.T("button.transfer"), Action: conversation.ActionTransfer})
	case conversation.KeyboardCancel:
		return inline(InlineButton{Text: t.T("button.cancel"), Action: conversation.ActionCancel})
	case conversation.KeyboardConfirm:
		return inline(
			InlineButton{Text: t.T("button.confirm"), Action: conversation.ActionConfirmYes},
			InlineButton{Text: t.T("button.cancel"), Action: conversation.ActionConfirmNo},
		)
	default:
		return nil
	}
}

// inline renders one row. Actions are short constants, so encoding cannot
// exceed the callback limit.
func inline(buttons ...InlineButton) *telebot.ReplyMarkup {
	markup, err := NewInlineKeyboard().AddRow(buttons...).Build()
	if err != nil {
		return nil
	}
	return markup
}
