package ledger

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/minibank/internal/domain"
	"github.com/Proton-105/minibank/internal/errors"
	"github.com/Proton-105/minibank/internal/history"
	"github.com/Proton-105/minibank/internal/repository"
)

const (
	anaPhone = "+15551234567"
	boPhone  = "+15557654321"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Publish(ctx context.Context, notice domain.TransferNotice) bool {
	args := m.Called(ctx, notice)
	return args.Bool(0)
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) Append(ctx context.Context, accountID int64, text string) error {
	return m.Called(ctx, accountID, text).Error(0)
}

func (m *mockHistory) ReadAll(ctx context.Context, accountID int64) (string, error) {
	args := m.Called(ctx, accountID)
	return args.String(0), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type env struct {
	store   *repository.AccountStore
	history *history.Log
	dir     string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()

	store := repository.NewAccountStore(filepath.Join(dir, "users.json"), testLogger())
	require.NoError(t, store.Initialize(context.Background()))

	hist := history.New(filepath.Join(dir, "history"), testLogger())
	require.NoError(t, hist.Initialize())

	return &env{store: store, history: hist, dir: dir}
}

func (e *env) service(initial string, notifier Notifier) *Service {
	return NewService(e.store, e.history, notifier, Config{
		PinLength:      4,
		InitialBalance: decimal.RequireFromString(initial),
		Currency:       "TJS",
	}, testLogger())
}

func register(t *testing.T, s *Service, first, last, phone, pin string) domain.Account {
	t.Helper()
	acc, err := s.Register(context.Background(), RegisterInput{FirstName: first, LastName: last, Phone: phone, PIN: pin})
	require.NoError(t, err)
	return acc
}

func balance(t *testing.T, s *Service, phone string) string {
	t.Helper()
	acc, err := s.AccountByPhone(context.Background(), phone)
	require.NoError(t, err)
	return acc.Balance.StringFixed(2)
}

func TestRegister_InitialBalanceRounded(t *testing.T) {
	e := newEnv(t)
	s := e.service("99.999", nil)

	acc := register(t, s, " Ana ", "Li", "+1 555-123-4567", "1234")
	assert.Equal(t, "100.00", acc.Balance.StringFixed(2))
	assert.Equal(t, anaPhone, acc.Phone)
	assert.Equal(t, "Ana", acc.FirstName)
	assert.Equal(t, int64(1), acc.ID)
	assert.False(t, acc.CreatedAt.IsZero())
}

func TestRegister_Validation(t *testing.T) {
	e := newEnv(t)
	s := e.service("100", nil)

	tests := []RegisterInput{
		{FirstName: "A", LastName: "Li", Phone: anaPhone, PIN: "1234"},
		{FirstName: "Ana", LastName: "Li", Phone: "5551234567", PIN: "1234"},
		{FirstName: "Ana", LastName: "Li", Phone: "+1555", PIN: "1234"},
		{FirstName: "Ana", LastName: "Li", Phone: anaPhone, PIN: "12a4"},
		{FirstName: "Ana", LastName: "Li", Phone: anaPhone, PIN: "12345"},
	}

	for _, in := range tests {
		_, err := s.Register(context.Background(), in)
		assert.ErrorIs(t, err, errors.ErrValidation, "%+v", in)
	}
	assert.Equal(t, 0, e.store.Count(context.Background()))
}

func TestRegister_PhoneTaken(t *testing.T) {
	e := newEnv(t)
	s := e.service("100", nil)
	register(t, s, "Ana", "Li", anaPhone, "1234")

	_, err := s.Register(context.Background(), RegisterInput{FirstName: "Eve", LastName: "Xu", Phone: anaPhone, PIN: "9999"})
	assert.ErrorIs(t, err, errors.ErrPhoneTaken)
	assert.Equal(t, 1, e.store.Count(context.Background()))
}

func TestRegister_ChatLinkMovesFromPreviousAccount(t *testing.T) {
	e := newEnv(t)
	s := e.service("100", nil)
	ctx := context.Background()

	_, err := s.Register(ctx, RegisterInput{FirstName: "Ana", LastName: "Li", Phone: anaPhone, PIN: "1234", ChatLink: "42"})
	require.NoError(t, err)
	_, err = s.Register(ctx, RegisterInput{FirstName: "Bo", LastName: "Wu", Phone: boPhone, PIN: "5678", ChatLink: "42"})
	require.NoError(t, err)

	acc, err := s.AccountByChatLink(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, boPhone, acc.Phone)

	ana, err := s.AccountByPhone(ctx, anaPhone)
	require.NoError(t, err)
	assert.False(t, ana.HasChatLink())
}

func TestTransfer_Scenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	notifier := &mockNotifier{}
	ana := register(t, e.service("100", notifier), "Ana", "Li", anaPhone, "1234")
	s := e.service("0", notifier)
	register(t, s, "Bo", "Wu", boPhone, "5678")

	res, err := s.Transfer(ctx, ana.ID, boPhone, decimal.RequireFromString("50.00"))
	require.NoError(t, err)
	assert.Equal(t, "50.00", res.Sender.Balance.StringFixed(2))
	assert.Equal(t, "50.00", res.Receiver.Balance.StringFixed(2))
	assert.False(t, res.NotificationQueued)
	notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)

	assert.Equal(t, "50.00", balance(t, s, anaPhone))
	assert.Equal(t, "50.00", balance(t, s, boPhone))

	anaHistory, err := s.History(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(anaHistory, "SENT"))
	assert.Contains(t, anaHistory, "-50.00 TJS")
	assert.Contains(t, anaHistory, "To: Bo Wu ("+boPhone+")")

	boHistory, err := s.History(ctx, res.Receiver.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(boHistory, "RECEIVED"))
	assert.NotContains(t, boHistory, "SENT")

	_, err = s.Transfer(ctx, ana.ID, boPhone, decimal.RequireFromString("200.00"))
	assert.ErrorIs(t, err, errors.ErrInsufficientFunds)
	assert.Equal(t, "50.00", balance(t, s, anaPhone))
	assert.Equal(t, "50.00", balance(t, s, boPhone))

	after, err := s.History(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, anaHistory, after)
}

func TestTransfer_Rejections(t *testing.T) {
	e := newEnv(t)
	s := e.service("100", nil)
	ctx := context.Background()

	ana := register(t, s, "Ana", "Li", anaPhone, "1234")
	register(t, s, "Bo", "Wu", boPhone, "5678")

	tests := []struct {
		name   string
		sender int64
		to     string
		amount string
		want   error
	}{
		{"self with funds", ana.ID, anaPhone, "1", errors.ErrSelfTransfer},
		{"self beyond funds", ana.ID, anaPhone, "1000", errors.ErrSelfTransfer},
		{"zero", ana.ID, boPhone, "0", errors.ErrInvalidAmount},
		{"rounds to zero", ana.ID, boPhone, "0.004", errors.ErrInvalidAmount},
		{"negative", ana.ID, boPhone, "-5", errors.ErrInvalidAmount},
		{"unknown receiver", ana.ID, "+15550000000", "1", errors.ErrReceiverNotFound},
		{"unknown sender", 99, boPhone, "1", errors.ErrAccountNotFound},
		{"over balance", ana.ID, boPhone, "100.01", errors.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Transfer(ctx, tt.sender, tt.to, decimal.RequireFromString(tt.amount))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, "100.00", balance(t, s, anaPhone))
	assert.Equal(t, "100.00", balance(t, s, boPhone))
}

func TestTransfer_RoundsAmountAndDrainsExactly(t *testing.T) {
	e := newEnv(t)
	s := e.service("100", nil)
	ctx := context.Background()

	ana := register(t, s, "Ana", "Li", anaPhone, "1234")
	register(t, s, "Bo", "Wu", boPhone, "5678")

	res, err := s.Transfer(ctx, ana.ID, boPhone, decimal.RequireFromString("33.335"))
	require.NoError(t, err)
	assert.Equal(t, "33.34", res.Amount.StringFixed(2))

	_, err = s.Transfer(ctx, ana.ID, boPhone, decimal.RequireFromString("66.66"))
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance(t, s, anaPhone))
	assert.Equal(t, "200.00", balance(t, s, boPhone))
}

func TestTransfer_PublishesNoticeForLinkedReceiver(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	notifier := &mockNotifier{}
	s := e.service("100", notifier)

	ana := register(t, s, "Ana", "Li", anaPhone, "1234")
	_, err := s.Register(ctx, RegisterInput{FirstName: "Bo", LastName: "Wu", Phone: boPhone, PIN: "5678", ChatLink: "777"})
	require.NoError(t, err)

	notifier.On("Publish", mock.Anything, mock.MatchedBy(func(n domain.TransferNotice) bool {
		return n.ChatLink == "777" &&
			n.SenderName == "Ana Li" &&
			n.Amount.Equal(decimal.RequireFromString("10")) &&
			n.ReceiverBalance.Equal(decimal.RequireFromString("110"))
	})).Return(true).Once()

	res, err := s.Transfer(ctx, ana.ID, boPhone, decimal.RequireFromString("10"))
	require.NoError(t, err)
	assert.True(t, res.NotificationQueued)
	notifier.AssertExpectations(t)
}

func TestTransfer_HistoryFailureDoesNotUndoCommit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	hist := &mockHistory{}
	hist.On("Append", mock.Anything, mock.Anything, mock.Anything).Return(errors.NewStorageError(errors.New("disk full")))

	s := NewService(e.store, hist, nil, Config{PinLength: 4, InitialBalance: decimal.RequireFromString("100"), Currency: "TJS"}, testLogger())
	ana := register(t, s, "Ana", "Li", anaPhone, "1234")
	register(t, s, "Bo", "Wu", boPhone, "5678")

	_, err := s.Transfer(ctx, ana.ID, boPhone, decimal.RequireFromString("25"))
	require.NoError(t, err)
	assert.Equal(t, "75.00", balance(t, s, anaPhone))
	hist.AssertNumberOfCalls(t, "Append", 2)
}

func TestTransfer_ConcurrentNeverOverdraws(t *testing.T) {
	e := newEnv(t)
	s := e.service("100", nil)
	ctx := context.Background()

	ana := register(t, s, "Ana", "Li", anaPhone, "1234")
	register(t, s, "Bo", "Wu", boPhone, "5678")

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Transfer(ctx, ana.ID, boPhone, decimal.RequireFromString("10")); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, errors.ErrInsufficientFunds)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, "0.00", balance(t, s, anaPhone))
	assert.Equal(t, "200.00", balance(t, s, boPhone))
}

func TestAuthenticateAndLink(t *testing.T) {
	e := newEnv(t)
	s := e.service("100", nil)
	ctx := context.Background()
	register(t, s, "Ana", "Li", anaPhone, "1234")

	_, err := s.Authenticate(ctx, anaPhone, "0000")
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, "+15550000000", "1234")
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)

	acc, err := s.Authenticate(ctx, "+1 555 123 4567", "1234")
	require.NoError(t, err)
	assert.Equal(t, anaPhone, acc.Phone)

	linked, err := s.LinkChannel(ctx, anaPhone, "0000", "42")
	require.NoError(t, err)
	assert.False(t, linked)

	linked, err = s.LinkChannel(ctx, "+15550000000", "1234", "42")
	require.NoError(t, err)
	assert.False(t, linked)

	linked, err = s.LinkChannel(ctx, anaPhone, "1234", "42")
	require.NoError(t, err)
	assert.True(t, linked)

	acc, err = s.AccountByChatLink(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, anaPhone, acc.Phone)
}

func TestStoreRoundTripIsNoOp(t *testing.T) {
	e := newEnv(t)
	s := e.service("100", nil)
	ctx := context.Background()
	register(t, s, "Ana", "Li", anaPhone, "1234")
	register(t, s, "Bo", "Wu", boPhone, "5678")

	before := e.store.LoadAll(ctx)
	require.NoError(t, e.store.StoreAll(ctx, e.store.LoadAll(ctx)))

	reopened := repository.NewAccountStore(filepath.Join(e.dir, "users.json"), testLogger())
	require.NoError(t, reopened.Initialize(ctx))
	after := reopened.LoadAll(ctx)

	require.Len(t, after, len(before))
	for id, acc := range before {
		assert.Equal(t, acc.Phone, after[id].Phone)
		assert.True(t, acc.Balance.Equal(after[id].Balance))
		assert.Equal(t, acc.PIN, after[id].PIN)
	}
}
