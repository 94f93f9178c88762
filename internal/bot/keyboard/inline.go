package keyboard

import (
	telebot "gopkg.in/telebot.v3"
)

// InlineButton is a button definition rendered by InlineKeyboardBuilder.
type InlineButton struct {
	Text   string
	Action string
	Data   string
}

// InlineKeyboardBuilder accumulates rows of buttons before rendering markup.
type InlineKeyboardBuilder struct {
	rows [][]InlineButton
}

func NewInlineKeyboard() *InlineKeyboardBuilder {
	return &InlineKeyboardBuilder{}
}

// AddRow appends a row; empty rows are skipped.
func (b *InlineKeyboardBuilder) AddRow(buttons ...InlineButton) *InlineKeyboardBuilder {
	if len(buttons) == 0 {
		return b
	}

	row := make([]InlineButton, len(buttons))
	copy(row, buttons)
	b.rows = append(b.rows, row)
	return b
}

// Build renders the markup. Buttons carry plain callback data without a
// telebot unique prefix, so every tap reaches the OnCallback handler.
func (b *InlineKeyboardBuilder) Build() (*telebot.ReplyMarkup, error) {
	inline := make([][]telebot.InlineButton, len(b.rows))
	for i, row := range b.rows {
		inline[i] = make([]telebot.InlineButton, len(row))
		for j, btn := range row {
			data, err := EncodeCallback(btn.Action, btn.Data)
			if err != nil {
				return nil, err
			}
			inline[i][j] = telebot.InlineButton{Text: btn.Text, Data: data}
		}
	}

	return &telebot.ReplyMarkup{InlineKeyboard: inline}, nil
}
