// Package conversation drives the multi-step chat flows: registration,
// linking a chat to an existing account, transfers and the main menu.
// It is transport agnostic; the bot package renders its replies.
package conversation

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/minibank/internal/domain"
	"github.com/Proton-105/minibank/internal/ledger"
)

// Button actions carried by inline keyboards.
const (
	ActionRegister   = "reg"
	ActionTransfer   = "transfer"
	ActionConfirmYes = "confirm_yes"
	ActionConfirmNo  = "confirm_no"
	ActionCancel     = "cancel"
)

const (
	CommandStart  = "/start"
	CommandCancel = "/cancel"
)

// historyLimit keeps a history reply under Telegram's message size cap.
const historyLimit = 4000

// Keyboard tells the front-end which keyboard to attach to a reply.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	// KeyboardMenu is the persistent Wallet / History / Profile keyboard.
	KeyboardMenu
	// KeyboardRegister offers the sign up button.
	KeyboardRegister
	// KeyboardWallet offers the send money button.
	KeyboardWallet
	// KeyboardCancel offers a single cancel button.
	KeyboardCancel
	// KeyboardConfirm offers confirm and cancel buttons.
	KeyboardConfirm
)

// Input is one inbound chat event. Exactly one of Text and Action is set.
type Input struct {
	Text   string
	Action string
	// Lang is the sender's language code, used to pick a catalog.
	Lang string
}

// Reply is the engine's answer. Text uses Telegram's legacy Markdown.
type Reply struct {
	Text     string
	Keyboard Keyboard
}

// Ledger is what the engine needs from the ledger service.
type Ledger interface {
	Register(ctx context.Context, in ledger.RegisterInput) (domain.Account, error)
	Transfer(ctx context.Context, senderID int64, receiverPhone string, amount decimal.Decimal) (*domain.TransferResult, error)
	LinkChannel(ctx context.Context, phone, pin, channelID string) (bool, error)
	AccountByChatLink(ctx context.Context, chatLink string) (domain.Account, error)
	AccountByPhone(ctx context.Context, phone string) (domain.Account, error)
	History(ctx context.Context, accountID int64) (string, error)
	ValidateName(name string) error
	ValidatePhone(phone string) error
	ValidatePIN(pin string) error
	Currency() string
	PinLength() int
}

var _ Ledger = (*ledger.Service)(nil)
