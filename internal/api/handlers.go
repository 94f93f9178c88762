// Package api is the JSON adapter used by the desktop client. Every call
// carries the phone and PIN; there are no server side sessions.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/minibank/internal/domain"
	"github.com/Proton-105/minibank/internal/errors"
	"github.com/Proton-105/minibank/internal/idempotency"
	"github.com/Proton-105/minibank/internal/ledger"
)

// IdempotencyHeader lets clients retry a transfer without paying twice.
const IdempotencyHeader = "Idempotency-Key"

// Ledger is what the API needs from the ledger service.
type Ledger interface {
	Authenticate(ctx context.Context, phone, pin string) (domain.Account, error)
	Register(ctx context.Context, in ledger.RegisterInput) (domain.Account, error)
	Transfer(ctx context.Context, senderID int64, receiverPhone string, amount decimal.Decimal) (*domain.TransferResult, error)
	LinkChannel(ctx context.Context, phone, pin, channelID string) (bool, error)
	History(ctx context.Context, accountID int64) (string, error)
	Currency() string
}

var _ Ledger = (*ledger.Service)(nil)

type Handler struct {
	ledger  Ledger
	idem    idempotency.Manager
	idemTTL time.Duration
	errs    *errors.Handler
	log     *slog.Logger
}

// NewHandler wires the API handlers. idem may be nil, in which case the
// Idempotency-Key header is ignored.
func NewHandler(ldg Ledger, idem idempotency.Manager, idemTTL time.Duration, errs *errors.Handler, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if errs == nil {
		errs = errors.NewHandler(log, false)
	}

	return &Handler{
		ledger:  ldg,
		idem:    idem,
		idemTTL: idemTTL,
		errs:    errs,
		log:     log.With(slog.String("component", "api")),
	}
}

type credentials struct {
	Phone string `json:"phone"`
	PIN   string `json:"pin"`
}

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	PIN       string `json:"pin"`
}

type linkRequest struct {
	credentials
	ChatLink string `json:"chat_link"`
}

type transferRequest struct {
	credentials
	To     string      `json:"to"`
	Amount json.Number `json:"amount"`
}

type accountView struct {
	ID         int64     `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Phone      string    `json:"phone"`
	Balance    string    `json:"balance"`
	Currency   string    `json:"currency"`
	ChatLinked bool      `json:"chat_linked"`
	CreatedAt  time.Time `json:"created_at"`
}

type transferView struct {
	Amount             string    `json:"amount"`
	Currency           string    `json:"currency"`
	Balance            string    `json:"balance"`
	ReceiverName       string    `json:"receiver_name"`
	ReceiverPhone      string    `json:"receiver_phone"`
	NotificationQueued bool      `json:"notification_queued"`
	At                 time.Time `json:"at"`
}

func (h *Handler) view(acc domain.Account) accountView {
	return accountView{
		ID:         acc.ID,
		FirstName:  acc.FirstName,
		LastName:   acc.LastName,
		Phone:      acc.Phone,
		Balance:    acc.Balance.StringFixed(2),
		Currency:   h.ledger.Currency(),
		ChatLinked: acc.HasChatLink(),
		CreatedAt:  acc.CreatedAt,
	}
}

// Login checks the credentials and returns the account.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !h.decode(w, r, &req) {
		return
	}

	acc, err := h.ledger.Authenticate(r.Context(), req.Phone, req.PIN)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.view(acc))
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	acc, err := h.ledger.Register(r.Context(), ledger.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		PIN:       req.PIN,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.view(acc))
}

// Link attaches a chat channel to an account. A wrong PIN is reported as
// linked=false, matching the chat flow.
func (h *Handler) Link(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ChatLink) == "" {
		h.writeError(w, r, errors.NewValidationError("chat_link is required"))
		return
	}

	linked, err := h.ledger.LinkChannel(r.Context(), req.Phone, req.PIN, strings.TrimSpace(req.ChatLink))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"linked": linked})
}

// Transfer authenticates the sender and moves money. With an
// Idempotency-Key header a retried request replays the first response.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}

	amount, err := domain.ParseAmount(req.Amount.String())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sender, err := h.ledger.Authenticate(r.Context(), req.Phone, req.PIN)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	run := func(ctx context.Context) (interface{}, error) {
		res, err := h.ledger.Transfer(ctx, sender.ID, req.To, amount)
		if err != nil {
			return nil, err
		}
		return transferView{
			Amount:             res.Amount.StringFixed(2),
			Currency:           h.ledger.Currency(),
			Balance:            res.Sender.Balance.StringFixed(2),
			ReceiverName:       res.Receiver.FullName(),
			ReceiverPhone:      res.Receiver.Phone,
			NotificationQueued: res.NotificationQueued,
			At:                 res.At,
		}, nil
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key == "" || h.idem == nil {
		view, err := run(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	result, err := h.idem.Execute(r.Context(), idempotency.TransferKey(sender.Phone, key), h.idemTTL, run)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if result.FromCache {
		w.Header().Set("Idempotent-Replayed", "true")
	}

	writeJSON(w, http.StatusOK, result.Response)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !h.decode(w, r, &req) {
		return
	}

	acc, err := h.ledger.Authenticate(r.Context(), req.Phone, req.PIN)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	text, err := h.ledger.History(r.Context(), acc.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"history": text})
}

const maxBodyBytes = 1 << 16

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		h.writeError(w, r, errors.NewValidationError("malformed request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
