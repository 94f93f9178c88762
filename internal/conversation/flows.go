package conversation

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/minibank/internal/domain"
	"github.com/Proton-105/minibank/internal/errors"
	"github.com/Proton-105/minibank/internal/history"
	"github.com/Proton-105/minibank/internal/ledger"
	"github.com/Proton-105/minibank/internal/state"
)

func (t *turn) registerName(st *state.UserState, text string) (*Reply, error) {
	if err := t.ledger.ValidateName(text); err != nil {
		return t.say("reg.name_too_short", nil, KeyboardCancel), nil
	}
	if err := t.advance(state.StateRegisteringSurname, st.With(state.KeyFirstName, text)); err != nil {
		return nil, err
	}
	return t.say("reg.step_surname", nil, KeyboardCancel), nil
}

func (t *turn) registerSurname(st *state.UserState, text string) (*Reply, error) {
	if err := t.ledger.ValidateName(text); err != nil {
		return t.say("reg.name_too_short", nil, KeyboardCancel), nil
	}
	if err := t.advance(state.StateRegisteringPhone, st.With(state.KeyLastName, text)); err != nil {
		return nil, err
	}
	return t.say("reg.step_phone", nil, KeyboardCancel), nil
}

// registerPhone branches: a free number continues to the PIN step, an
// existing unlinked account is offered for linking.
func (t *turn) registerPhone(st *state.UserState, text string) (*Reply, error) {
	phone := ledger.NormalizePhone(text)
	if err := t.ledger.ValidatePhone(phone); err != nil {
		return t.say("reg.phone_format", nil, KeyboardCancel), nil
	}

	acc, err := t.ledger.AccountByPhone(t.ctx, phone)
	switch {
	case err == nil && acc.HasChatLink():
		return t.say("reg.phone_taken", nil, KeyboardCancel), nil

	case err == nil:
		if err := t.advance(state.StateLinkingChannel, st.With(state.KeyLinkPhone, phone)); err != nil {
			return nil, err
		}
		return t.say("reg.link_prompt", map[string]any{"Phone": phone}, KeyboardCancel), nil

	case errors.Is(err, errors.ErrAccountNotFound):
		if err := t.advance(state.StateRegisteringPIN, st.With(state.KeyPhone, phone)); err != nil {
			return nil, err
		}
		return t.say("reg.step_pin", map[string]any{"PinLength": t.ledger.PinLength()}, KeyboardCancel), nil

	default:
		return nil, err
	}
}

func (t *turn) registerPIN(st *state.UserState, text string) (*Reply, error) {
	if err := t.ledger.ValidatePIN(text); err != nil {
		return t.say("reg.pin_format", map[string]any{"PinLength": t.ledger.PinLength()}, KeyboardCancel), nil
	}

	acc, err := t.ledger.Register(t.ctx, ledger.RegisterInput{
		FirstName: st.Value(state.KeyFirstName),
		LastName:  st.Value(state.KeyLastName),
		Phone:     st.Value(state.KeyPhone),
		PIN:       text,
		ChatLink:  t.chatLink,
	})
	if err != nil {
		var key string
		switch {
		case errors.Is(err, errors.ErrPhoneTaken):
			key = "reg.phone_taken"
		case errors.Is(err, errors.ErrValidation):
			key = "reg.failed"
		default:
			return nil, err
		}
		if rerr := t.reset(); rerr != nil {
			return nil, rerr
		}
		return t.say(key, nil, KeyboardMenu), nil
	}

	if err := t.reset(); err != nil {
		return nil, err
	}

	return t.say("reg.done", map[string]any{
		"Name":     acc.FullName(),
		"Phone":    acc.Phone,
		"Balance":  domain.FormatAmount(acc.Balance),
		"Currency": t.ledger.Currency(),
	}, KeyboardMenu), nil
}

func (t *turn) linkChannel(st *state.UserState, text string) (*Reply, error) {
	phone := st.Value(state.KeyLinkPhone)

	linked, err := t.ledger.LinkChannel(t.ctx, phone, text, t.chatLink)
	if err != nil {
		return nil, err
	}
	if !linked {
		return t.say("link.wrong_pin", nil, KeyboardCancel), nil
	}

	if err := t.reset(); err != nil {
		return nil, err
	}

	acc, err := t.ledger.AccountByPhone(t.ctx, phone)
	if err != nil {
		return nil, err
	}

	return t.say("link.done", map[string]any{
		"Name":     acc.FullName(),
		"Balance":  domain.FormatAmount(acc.Balance),
		"Currency": t.ledger.Currency(),
	}, KeyboardMenu), nil
}

func (t *turn) transferRecipient(st *state.UserState, text string) (*Reply, error) {
	phone := ledger.NormalizePhone(text)
	if err := t.ledger.ValidatePhone(phone); err != nil {
		return t.say("reg.phone_format", nil, KeyboardCancel), nil
	}

	sender, linked, err := t.linkedAccount()
	if err != nil {
		return nil, err
	}
	if !linked {
		if err := t.reset(); err != nil {
			return nil, err
		}
		return t.say("common.press_start", nil, KeyboardNone), nil
	}
	if sender.Phone == phone {
		return t.say("transfer.self", nil, KeyboardCancel), nil
	}

	receiver, err := t.ledger.AccountByPhone(t.ctx, phone)
	if errors.Is(err, errors.ErrAccountNotFound) {
		if err := t.reset(); err != nil {
			return nil, err
		}
		return t.say("transfer.not_found", nil, KeyboardMenu), nil
	}
	if err != nil {
		return nil, err
	}

	data := st.With(
		state.KeyReceiverID, strconv.FormatInt(receiver.ID, 10),
		state.KeyReceiverName, receiver.FullName(),
		state.KeyReceiverPhone, receiver.Phone,
	)
	if err := t.advance(state.StateTransferAmount, data); err != nil {
		return nil, err
	}

	status := t.tr.T("transfer.no_chat")
	if receiver.HasChatLink() {
		status = t.tr.T("transfer.has_chat")
	}

	return t.say("transfer.receiver", map[string]any{
		"Name":     receiver.FullName(),
		"Status":   status,
		"Currency": t.ledger.Currency(),
	}, KeyboardCancel), nil
}

// transferAmount checks funds early so the user can correct the amount
// before confirming. The ledger checks again when the transfer commits.
func (t *turn) transferAmount(st *state.UserState, text string) (*Reply, error) {
	amount, err := domain.ParseAmount(text)
	if err != nil {
		return t.say("transfer.amount_invalid", nil, KeyboardCancel), nil
	}

	sender, linked, err := t.linkedAccount()
	if err != nil {
		return nil, err
	}
	if !linked {
		if err := t.reset(); err != nil {
			return nil, err
		}
		return t.say("common.press_start", nil, KeyboardNone), nil
	}
	if !sender.HasFunds(amount) {
		return t.say("transfer.insufficient", map[string]any{
			"Balance": domain.FormatAmount(sender.Balance),
		}, KeyboardCancel), nil
	}

	if err := t.advance(state.StateTransferConfirm, st.With(state.KeyAmount, amount.StringFixed(2))); err != nil {
		return nil, err
	}

	return t.say("transfer.confirm", map[string]any{
		"Name":     st.Value(state.KeyReceiverName),
		"Phone":    st.Value(state.KeyReceiverPhone),
		"Amount":   domain.FormatAmount(amount),
		"Currency": t.ledger.Currency(),
	}, KeyboardConfirm), nil
}

// confirm executes the pending transfer. The session is cleared before the
// ledger call, so a repeated confirm finds no pending transfer and is
// ignored.
func (t *turn) confirm() (*Reply, error) {
	st, err := t.fsm.GetState(t.ctx, t.actorID)
	if err != nil {
		return nil, err
	}
	if st.CurrentState != state.StateTransferConfirm {
		t.log.DebugContext(t.ctx, "confirm without pending transfer", slog.Int64("actor_id", t.actorID))
		return nil, nil
	}

	if err := t.reset(); err != nil {
		return nil, err
	}

	sender, linked, err := t.linkedAccount()
	if err != nil {
		return nil, err
	}
	if !linked {
		return t.say("common.press_start", nil, KeyboardNone), nil
	}

	amount, err := decimal.NewFromString(st.Value(state.KeyAmount))
	if err != nil {
		t.log.WarnContext(t.ctx, "corrupt pending amount", slog.String("amount", st.Value(state.KeyAmount)))
		return t.say("transfer.failed", nil, KeyboardMenu), nil
	}

	res, err := t.ledger.Transfer(t.ctx, sender.ID, st.Value(state.KeyReceiverPhone), amount)
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrInsufficientFunds):
		return t.say("transfer.insufficient", map[string]any{
			"Balance": domain.FormatAmount(sender.Balance),
		}, KeyboardMenu), nil
	case errors.Is(err, errors.ErrReceiverNotFound):
		return t.say("transfer.not_found", nil, KeyboardMenu), nil
	case errors.Is(err, errors.ErrSelfTransfer):
		return t.say("transfer.self", nil, KeyboardMenu), nil
	case errors.Is(err, errors.ErrStorageFault):
		return nil, err
	default:
		t.log.WarnContext(t.ctx, "transfer rejected", slog.Any("error", err))
		return t.say("transfer.failed", nil, KeyboardMenu), nil
	}

	return t.say("transfer.done", map[string]any{
		"Name":     res.Receiver.FullName(),
		"Amount":   domain.FormatAmount(res.Amount),
		"Balance":  domain.FormatAmount(res.Sender.Balance),
		"Currency": t.ledger.Currency(),
	}, KeyboardMenu), nil
}

// menu answers one of the persistent menu buttons. Pressing a menu button
// abandons any flow in progress.
func (t *turn) menu(key string) (*Reply, error) {
	acc, linked, err := t.linkedAccount()
	if err != nil {
		return nil, err
	}
	if !linked {
		return t.say("common.press_start", nil, KeyboardNone), nil
	}
	if err := t.reset(); err != nil {
		return nil, err
	}

	currency := t.ledger.Currency()

	switch key {
	case "menu.wallet":
		return t.say("wallet.text", map[string]any{
			"Balance":  domain.FormatAmount(acc.Balance),
			"Currency": currency,
		}, KeyboardWallet), nil

	case "menu.history":
		text, err := t.ledger.History(t.ctx, acc.ID)
		if err != nil {
			return nil, err
		}
		return t.say("history.title", map[string]any{
			"History": history.Tail(strings.TrimSpace(text), historyLimit),
		}, KeyboardMenu), nil

	default:
		return t.say("profile.text", map[string]any{
			"ID":        acc.ID,
			"FirstName": acc.FirstName,
			"LastName":  acc.LastName,
			"Phone":     acc.Phone,
			"Balance":   domain.FormatAmount(acc.Balance),
			"Currency":  currency,
			"CreatedAt": acc.CreatedAt.Local().Format(domain.TimestampLayout),
		}, KeyboardMenu), nil
	}
}
