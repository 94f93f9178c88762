package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TimestampLayout = "2006-01-02 15:04:05"
	indent          = "   "
)

// Transfer is the immutable record of one executed transfer. It renders
// into one debit entry for the sender and one credit entry for the receiver.
type Transfer struct {
	SenderPhone   string
	SenderName    string
	ReceiverPhone string
	ReceiverName  string
	Amount        decimal.Decimal
	Currency      string
	At            time.Time
}

func (t Transfer) DebitEntry() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📤 [%s] SENT\n", t.At.Format(TimestampLayout))
	fmt.Fprintf(&b, "%s-%s %s\n", indent, t.Amount.StringFixed(2), t.Currency)
	fmt.Fprintf(&b, "%sTo: %s (%s)", indent, t.ReceiverName, t.ReceiverPhone)
	return b.String()
}

func (t Transfer) CreditEntry() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📥 [%s] RECEIVED\n", t.At.Format(TimestampLayout))
	fmt.Fprintf(&b, "%s+%s %s\n", indent, t.Amount.StringFixed(2), t.Currency)
	fmt.Fprintf(&b, "%sFrom: %s (%s)", indent, t.SenderName, t.SenderPhone)
	return b.String()
}

// TransferResult is returned to the initiating front-end once the transfer
// is committed. NotificationQueued reports whether a receiver notice was
// handed to the dispatcher, not whether it was delivered.
type TransferResult struct {
	Sender             Account
	Receiver           Account
	Amount             decimal.Decimal
	At                 time.Time
	NotificationQueued bool
}

// TransferNotice is the payload delivered to the receiver's chat channel.
type TransferNotice struct {
	ReceiverID      int64           `json:"receiver_id"`
	ReceiverName    string          `json:"receiver_name"`
	ChatLink        string          `json:"chat_link"`
	ReceiverBalance decimal.Decimal `json:"receiver_balance"`
	SenderName      string          `json:"sender_name"`
	Amount          decimal.Decimal `json:"amount"`
}
