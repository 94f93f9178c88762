package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/minibank/internal/errors"
)

// Account is the single persisted record type. PIN is kept and compared
// as plain text; see DESIGN.md before changing the storage format.
type Account struct {
	ID        int64           `json:"id"`
	Phone     string          `json:"phone"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	PIN       string          `json:"pin"`
	Balance   decimal.Decimal `json:"balance"`
	ChatLink  string          `json:"chat_link,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (a *Account) FullName() string {
	return a.FirstName + " " + a.LastName
}

func (a *Account) HasChatLink() bool {
	return a.ChatLink != ""
}

func (a *Account) HasFunds(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

func (a *Account) VerifyPIN(pin string) bool {
	return a.PIN == pin
}

// Debit never lets the balance go negative.
func (a *Account) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.ErrInvalidAmount
	}
	if !a.HasFunds(amount) {
		return errors.ErrInsufficientFunds
	}

	a.Balance = a.Balance.Sub(amount)
	return nil
}

func (a *Account) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.ErrInvalidAmount
	}

	a.Balance = a.Balance.Add(amount)
	return nil
}

// ChatLinkFor renders a chat identifier the way it is stored on the account.
func ChatLinkFor(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// ChatID parses a stored chat link back into a numeric chat identifier.
func (a *Account) ChatID() (int64, bool) {
	if a.ChatLink == "" {
		return 0, false
	}

	id, err := strconv.ParseInt(a.ChatLink, 10, 64)
	if err != nil {
		return 0, false
	}

	return id, true
}
