// Package ledger enforces balance invariants and executes transfers. It is
// the only code that changes account balances.
package ledger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Proton-105/minibank/internal/domain"
	"github.com/Proton-105/minibank/internal/errors"
	"github.com/Proton-105/minibank/internal/repository"
	"github.com/Proton-105/minibank/pkg/metrics"
)

// HistoryLog records and returns per-account transfer history.
type HistoryLog interface {
	Append(ctx context.Context, accountID int64, text string) error
	ReadAll(ctx context.Context, accountID int64) (string, error)
}

// Notifier hands a receiver notice to the delivery pipeline. It must not
// block on network I/O and reports whether the notice was accepted.
type Notifier interface {
	Publish(ctx context.Context, notice domain.TransferNotice) bool
}

// Config is the part of the configuration the ledger consumes.
type Config struct {
	PinLength      int
	InitialBalance decimal.Decimal
	Currency       string
}

type Service struct {
	store    repository.AccountRepository
	history  HistoryLog
	notifier Notifier
	cfg      Config
	log      *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewService(store repository.AccountRepository, history HistoryLog, notifier Notifier, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		store:    store,
		history:  history,
		notifier: notifier,
		cfg:      cfg,
		log:      log.With(slog.String("component", "ledger")),
		validate: newValidator(cfg.PinLength),
		now:      time.Now,
	}
}

func (s *Service) Currency() string { return s.cfg.Currency }

func (s *Service) PinLength() int { return s.cfg.PinLength }

// Authenticate returns the account owning phone when pin matches.
func (s *Service) Authenticate(ctx context.Context, phone, pin string) (domain.Account, error) {
	acc, err := s.store.FindByPhone(ctx, NormalizePhone(phone))
	if err != nil {
		if errors.Is(err, errors.ErrAccountNotFound) {
			return domain.Account{}, errors.ErrInvalidCredentials
		}
		return domain.Account{}, err
	}

	if !acc.VerifyPIN(pin) {
		return domain.Account{}, errors.ErrInvalidCredentials
	}

	return acc, nil
}

// Register validates the input and creates an account funded with the
// configured initial balance.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.Account, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = NormalizePhone(in.Phone)
	in.PIN = strings.TrimSpace(in.PIN)

	if err := s.validate.Struct(in); err != nil {
		metrics.RecordRegistration("invalid")
		return domain.Account{}, validationError(err)
	}

	if s.store.PhoneExists(ctx, in.Phone) {
		metrics.RecordRegistration("phone_taken")
		return domain.Account{}, errors.Wrapf(errors.ErrPhoneTaken, "%s", in.Phone)
	}

	account := domain.Account{
		ID:        s.store.NextID(),
		Phone:     in.Phone,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		PIN:       in.PIN,
		Balance:   s.cfg.InitialBalance.Round(2),
		ChatLink:  in.ChatLink,
		CreatedAt: s.now().UTC(),
	}

	err := s.store.Update(ctx, func(tx *repository.Tx) error {
		if _, taken := tx.ByPhone(account.Phone); taken {
			return errors.Wrapf(errors.ErrPhoneTaken, "%s", account.Phone)
		}
		if account.ChatLink != "" {
			if err := tx.DetachChatLink(account.ChatLink); err != nil {
				return err
			}
		}
		return tx.Put(account)
	})
	if err != nil {
		metrics.RecordRegistration(outcome(err))
		return domain.Account{}, err
	}

	metrics.RecordRegistration("success")
	metrics.SetAccounts(s.store.Count(ctx))
	s.log.InfoContext(ctx, "account registered",
		slog.Int64("account_id", account.ID),
		slog.Bool("chat_linked", account.HasChatLink()),
	)

	return account, nil
}

// Transfer moves amount from the sender to the account owning
// receiverPhone. Checks run in a fixed order: amount, self transfer,
// receiver lookup, funds. Both balances are committed together; history
// and notification follow the commit and never undo it.
func (s *Service) Transfer(ctx context.Context, senderID int64, receiverPhone string, amount decimal.Decimal) (*domain.TransferResult, error) {
	amount = amount.Round(2)
	receiverPhone = NormalizePhone(receiverPhone)

	var sender, receiver domain.Account
	err := s.store.Update(ctx, func(tx *repository.Tx) error {
		if !amount.IsPositive() {
			return errors.ErrInvalidAmount
		}

		var ok bool
		sender, ok = tx.Get(senderID)
		if !ok {
			return errors.Wrapf(errors.ErrAccountNotFound, "sender %d", senderID)
		}
		if sender.Phone == receiverPhone {
			return errors.ErrSelfTransfer
		}

		receiver, ok = tx.ByPhone(receiverPhone)
		if !ok {
			return errors.Wrapf(errors.ErrReceiverNotFound, "%s", receiverPhone)
		}

		if err := sender.Debit(amount); err != nil {
			return err
		}
		if err := receiver.Credit(amount); err != nil {
			return err
		}

		if err := tx.Put(sender); err != nil {
			return err
		}
		return tx.Put(receiver)
	})
	if err != nil {
		metrics.RecordTransfer(outcome(err), 0)
		return nil, err
	}

	at := s.now()
	metrics.RecordTransfer("success", amount.InexactFloat64())
	s.log.InfoContext(ctx, "transfer committed",
		slog.Int64("sender_id", sender.ID),
		slog.Int64("receiver_id", receiver.ID),
		slog.String("amount", amount.StringFixed(2)),
	)

	record := domain.Transfer{
		SenderPhone:   sender.Phone,
		SenderName:    sender.FullName(),
		ReceiverPhone: receiver.Phone,
		ReceiverName:  receiver.FullName(),
		Amount:        amount,
		Currency:      s.cfg.Currency,
		At:            at,
	}
	s.appendHistory(ctx, sender.ID, record.DebitEntry())
	s.appendHistory(ctx, receiver.ID, record.CreditEntry())

	return &domain.TransferResult{
		Sender:             sender,
		Receiver:           receiver,
		Amount:             amount,
		At:                 at,
		NotificationQueued: s.publish(ctx, sender, receiver, amount),
	}, nil
}

// LinkChannel attaches channelID to the account owning phone once pin is
// verified. It reports false for an unknown phone or a wrong pin.
func (s *Service) LinkChannel(ctx context.Context, phone, pin, channelID string) (bool, error) {
	phone = NormalizePhone(phone)

	acc, err := s.store.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, errors.ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}

	if !acc.VerifyPIN(pin) {
		s.log.InfoContext(ctx, "channel link rejected", slog.Int64("account_id", acc.ID))
		return false, nil
	}

	linked, err := s.store.LinkChat(ctx, phone, channelID)
	if err != nil {
		return false, err
	}
	if linked {
		s.log.InfoContext(ctx, "chat channel linked", slog.Int64("account_id", acc.ID))
	}
	return linked, nil
}

func (s *Service) AccountByID(ctx context.Context, id int64) (domain.Account, error) {
	return s.store.FindByID(ctx, id)
}

func (s *Service) AccountByPhone(ctx context.Context, phone string) (domain.Account, error) {
	return s.store.FindByPhone(ctx, NormalizePhone(phone))
}

func (s *Service) AccountByChatLink(ctx context.Context, chatLink string) (domain.Account, error) {
	return s.store.FindByChatLink(ctx, chatLink)
}

// History returns the account's history text or history.Empty.
func (s *Service) History(ctx context.Context, accountID int64) (string, error) {
	return s.history.ReadAll(ctx, accountID)
}

// ValidateName, ValidatePhone and ValidatePIN expose the registration rules
// to front-ends that collect fields one at a time.

func (s *Service) ValidateName(name string) error {
	return s.validateVar(strings.TrimSpace(name), "required,name")
}

func (s *Service) ValidatePhone(phone string) error {
	return s.validateVar(phone, "required,phone")
}

func (s *Service) ValidatePIN(pin string) error {
	return s.validateVar(pin, "required,pin")
}

func (s *Service) validateVar(value, tag string) error {
	if err := s.validate.Var(value, tag); err != nil {
		return validationError(err)
	}
	return nil
}

func (s *Service) appendHistory(ctx context.Context, accountID int64, entry string) {
	if s.history == nil {
		return
	}
	if err := s.history.Append(ctx, accountID, entry); err != nil {
		s.log.ErrorContext(ctx, "failed to append history entry",
			slog.Int64("account_id", accountID),
			slog.Any("error", err),
		)
	}
}

func (s *Service) publish(ctx context.Context, sender, receiver domain.Account, amount decimal.Decimal) bool {
	if !receiver.HasChatLink() {
		metrics.RecordNotification("skipped")
		s.log.InfoContext(ctx, "receiver has no chat link, notification skipped", slog.Int64("receiver_id", receiver.ID))
		return false
	}
	if s.notifier == nil {
		return false
	}

	return s.notifier.Publish(ctx, domain.TransferNotice{
		ReceiverID:      receiver.ID,
		ReceiverName:    receiver.FullName(),
		ChatLink:        receiver.ChatLink,
		ReceiverBalance: receiver.Balance,
		SenderName:      sender.FullName(),
		Amount:          amount,
	})
}

func outcome(err error) string {
	switch {
	case errors.Is(err, errors.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, errors.ErrSelfTransfer):
		return "self_transfer"
	case errors.Is(err, errors.ErrReceiverNotFound):
		return "receiver_not_found"
	case errors.Is(err, errors.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, errors.ErrPhoneTaken):
		return "phone_taken"
	case errors.Is(err, errors.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
