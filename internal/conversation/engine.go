package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Proton-105/minibank/internal/domain"
	"github.com/Proton-105/minibank/internal/errors"
	"github.com/Proton-105/minibank/internal/i18n"
	"github.com/Proton-105/minibank/internal/state"
)

const lockStripes = 64

type Engine struct {
	ledger Ledger
	fsm    state.StateMachine
	i18n   *i18n.Manager
	log    *slog.Logger

	// Updates of one actor are handled one at a time. Telegram delivers
	// updates concurrently, so without this a double tapped confirm button
	// could read the same session twice.
	locks [lockStripes]sync.Mutex
}

func NewEngine(ldg Ledger, fsm state.StateMachine, catalog *i18n.Manager, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		ledger: ldg,
		fsm:    fsm,
		i18n:   catalog,
		log:    log.With(slog.String("component", "conversation")),
	}
}

// Handle processes one event from actorID and returns the reply to send.
// A nil reply means nothing should be sent. Business failures become reply
// texts; only infrastructure failures are returned as errors.
func (e *Engine) Handle(ctx context.Context, actorID int64, in Input) (*Reply, error) {
	mu := &e.locks[uint64(actorID)%lockStripes]
	mu.Lock()
	defer mu.Unlock()

	t := &turn{
		Engine:   e,
		ctx:      ctx,
		actorID:  actorID,
		chatLink: domain.ChatLinkFor(actorID),
		tr:       e.i18n.Translator(in.Lang),
	}

	text := strings.TrimSpace(in.Text)

	switch {
	case in.Action != "":
		return t.action(in.Action)
	case text == CommandStart:
		return t.start()
	case text == CommandCancel:
		return t.cancel()
	}

	if menu := e.menuItem(text); menu != "" {
		return t.menu(menu)
	}

	st, err := e.fsm.GetState(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	switch st.CurrentState {
	case state.StateRegisteringName:
		return t.registerName(st, text)
	case state.StateRegisteringSurname:
		return t.registerSurname(st, text)
	case state.StateRegisteringPhone:
		return t.registerPhone(st, text)
	case state.StateRegisteringPIN:
		return t.registerPIN(st, text)
	case state.StateLinkingChannel:
		return t.linkChannel(st, text)
	case state.StateTransferRecipient:
		return t.transferRecipient(st, text)
	case state.StateTransferAmount:
		return t.transferAmount(st, text)
	case state.StateTransferConfirm:
		return t.say("common.press_button_above", nil, KeyboardNone), nil
	default:
		return t.idle()
	}
}

// menuItem maps a menu button label, in any loaded language, to its key.
func (e *Engine) menuItem(text string) string {
	if text == "" {
		return ""
	}
	for _, key := range []string{"menu.wallet", "menu.history", "menu.profile"} {
		for _, label := range e.i18n.Variants(key) {
			if text == label {
				return key
			}
		}
	}
	return ""
}

// turn bundles what one Handle call needs.
type turn struct {
	*Engine
	ctx      context.Context
	actorID  int64
	chatLink string
	tr       i18n.Translator
}

func (t *turn) say(key string, data map[string]any, kb Keyboard) *Reply {
	return &Reply{Text: t.tr.F(key, data), Keyboard: kb}
}

// linkedAccount returns the account bound to this chat, if any.
func (t *turn) linkedAccount() (domain.Account, bool, error) {
	acc, err := t.ledger.AccountByChatLink(t.ctx, t.chatLink)
	if errors.Is(err, errors.ErrAccountNotFound) {
		return domain.Account{}, false, nil
	}
	if err != nil {
		return domain.Account{}, false, err
	}
	return acc, true, nil
}

func (t *turn) reset() error {
	if err := t.fsm.ClearState(t.ctx, t.actorID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// begin drops any flow in progress and enters the first state of a new one.
func (t *turn) begin(next state.State) error {
	if err := t.reset(); err != nil {
		return err
	}
	return t.advance(next, nil)
}

func (t *turn) advance(next state.State, data map[string]string) error {
	if err := t.fsm.TransitionTo(t.ctx, t.actorID, next, data); err != nil {
		return fmt.Errorf("advance to %s: %w", next, err)
	}
	return nil
}

func (t *turn) start() (*Reply, error) {
	if err := t.reset(); err != nil {
		return nil, err
	}

	acc, linked, err := t.linkedAccount()
	if err != nil {
		return nil, err
	}
	if !linked {
		return t.say("start.welcome_new", nil, KeyboardRegister), nil
	}

	t.log.InfoContext(t.ctx, "returning user", slog.Int64("account_id", acc.ID))
	return t.say("start.welcome_back", map[string]any{
		"Name":     acc.FullName(),
		"Balance":  domain.FormatAmount(acc.Balance),
		"Currency": t.ledger.Currency(),
	}, KeyboardMenu), nil
}

func (t *turn) cancel() (*Reply, error) {
	if err := t.reset(); err != nil {
		return nil, err
	}
	return t.say("common.cancelled", nil, KeyboardMenu), nil
}

func (t *turn) action(action string) (*Reply, error) {
	switch action {
	case ActionRegister:
		if err := t.begin(state.StateRegisteringName); err != nil {
			return nil, err
		}
		return t.say("reg.step_name", nil, KeyboardCancel), nil

	case ActionTransfer:
		if _, linked, err := t.linkedAccount(); err != nil {
			return nil, err
		} else if !linked {
			return t.say("common.press_start", nil, KeyboardNone), nil
		}
		if err := t.begin(state.StateTransferRecipient); err != nil {
			return nil, err
		}
		return t.say("transfer.ask_phone", nil, KeyboardCancel), nil

	case ActionConfirmYes:
		return t.confirm()

	case ActionCancel, ActionConfirmNo:
		return t.cancel()

	default:
		t.log.DebugContext(t.ctx, "unknown action ignored", slog.String("action", action))
		return nil, nil
	}
}

func (t *turn) idle() (*Reply, error) {
	_, linked, err := t.linkedAccount()
	if err != nil {
		return nil, err
	}
	if !linked {
		return t.say("common.press_start", nil, KeyboardNone), nil
	}
	return t.say("common.use_menu", nil, KeyboardMenu), nil
}
