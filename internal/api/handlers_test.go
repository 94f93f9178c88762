package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/minibank/internal/health"
	"github.com/Proton-105/minibank/internal/history"
	"github.com/Proton-105/minibank/internal/i18n"
	"github.com/Proton-105/minibank/internal/idempotency"
	"github.com/Proton-105/minibank/internal/ledger"
	"github.com/Proton-105/minibank/internal/lifecycle"
	"github.com/Proton-105/minibank/internal/middleware"
	"github.com/Proton-105/minibank/internal/ratelimit"
	"github.com/Proton-105/minibank/internal/repository"
	"github.com/Proton-105/minibank/pkg/config"
)

const (
	anaPhone = "+992900000001"
	boPhone  = "+992900000002"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type apiFixture struct {
	router http.Handler
	store  *repository.AccountStore
	probes *lifecycle.Probes
}

func newAPIFixture(t *testing.T, opts RouterOptions) *apiFixture {
	t.Helper()

	ctx := context.Background()
	dir := t.TempDir()
	log := testLogger()

	usersFile := filepath.Join(dir, "users.json")
	store := repository.NewAccountStore(usersFile, log)
	require.NoError(t, store.Initialize(ctx))

	hist := history.New(filepath.Join(dir, "history"), log)
	require.NoError(t, hist.Initialize())

	svc := ledger.NewService(store, hist, nil, ledger.Config{
		PinLength:      4,
		InitialBalance: decimal.RequireFromString("100.00"),
		Currency:       "TJS",
	}, log)

	checker := health.NewChecker(log)
	checker.AddCheck("store", health.NewStoreChecker(usersFile))
	probes := lifecycle.NewProbes(checker, log)
	opts.Probes = probes

	h := NewHandler(svc, idempotency.NewManager(idempotency.NewMemoryStore(), log), time.Hour, nil, log)

	return &apiFixture{router: NewRouter(h, opts), store: store, probes: probes}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (f *apiFixture) registerAccounts(t *testing.T) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/accounts", map[string]string{
		"first_name": "Ana", "last_name": "Lee", "phone": anaPhone, "pin": "1234",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/accounts", map[string]string{
		"first_name": "Bo", "last_name": "Ng", "phone": boPhone, "pin": "4321",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAPIFixture(t, RouterOptions{})
	f.registerAccounts(t)

	rec := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"phone": anaPhone, "pin": "1234"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Ana", body["first_name"])
	assert.Equal(t, "100.00", body["balance"])
	assert.Equal(t, "TJS", body["currency"])
	assert.Equal(t, false, body["chat_linked"])
	assert.NotContains(t, body, "pin")
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))

	rec = f.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"phone": anaPhone, "pin": "0000"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "E110", decodeBody(t, rec)["code"])
}

func TestRegisterErrors(t *testing.T) {
	f := newAPIFixture(t, RouterOptions{})
	f.registerAccounts(t)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{
			name:   "phone taken",
			body:   map[string]string{"first_name": "Cy", "last_name": "Ro", "phone": anaPhone, "pin": "1111"},
			status: http.StatusConflict,
			code:   "E101",
		},
		{
			name:   "bad pin",
			body:   map[string]string{"first_name": "Cy", "last_name": "Ro", "phone": "+992900000003", "pin": "12"},
			status: http.StatusBadRequest,
			code:   "E100",
		},
		{
			name:   "unknown field",
			body:   map[string]string{"nickname": "cy"},
			status: http.StatusBadRequest,
			code:   "E100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/accounts", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeBody(t, rec)["code"])
		})
	}
}

func TestTransfer(t *testing.T) {
	f := newAPIFixture(t, RouterOptions{})
	f.registerAccounts(t)

	rec := f.do(t, http.MethodPost, "/api/v1/transfers", map[string]any{
		"phone": anaPhone, "pin": "1234", "to": boPhone, "amount": "25.5",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "25.50", body["amount"])
	assert.Equal(t, "74.50", body["balance"])
	assert.Equal(t, "Bo Ng", body["receiver_name"])
	assert.Equal(t, false, body["notification_queued"])

	rec = f.do(t, http.MethodPost, "/api/v1/history", map[string]string{"phone": boPhone, "pin": "4321"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["history"], "RECEIVED")
}

func TestTransferErrors(t *testing.T) {
	f := newAPIFixture(t, RouterOptions{})
	f.registerAccounts(t)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"insufficient", map[string]any{"phone": anaPhone, "pin": "1234", "to": boPhone, "amount": "1000"}, http.StatusUnprocessableEntity, "E123"},
		{"self", map[string]any{"phone": anaPhone, "pin": "1234", "to": anaPhone, "amount": "1"}, http.StatusUnprocessableEntity, "E121"},
		{"zero", map[string]any{"phone": anaPhone, "pin": "1234", "to": boPhone, "amount": "0"}, http.StatusUnprocessableEntity, "E120"},
		{"numeric amount", map[string]any{"phone": anaPhone, "pin": "1234", "to": "+992999999999", "amount": 5}, http.StatusNotFound, "E122"},
		{"wrong pin", map[string]any{"phone": anaPhone, "pin": "9999", "to": boPhone, "amount": "1"}, http.StatusUnauthorized, "E110"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/transfers", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeBody(t, rec)["code"])
		})
	}

	ana, err := f.store.FindByPhone(context.Background(), anaPhone)
	require.NoError(t, err)
	assert.Equal(t, "100", ana.Balance.String())
}

func TestTransfer_IdempotencyKeyReplays(t *testing.T) {
	f := newAPIFixture(t, RouterOptions{})
	f.registerAccounts(t)

	body := map[string]any{"phone": anaPhone, "pin": "1234", "to": boPhone, "amount": "10"}

	first := f.do(t, http.MethodPost, "/api/v1/transfers", body, IdempotencyHeader, "k-1")
	require.Equal(t, http.StatusOK, first.Code)

	second := f.do(t, http.MethodPost, "/api/v1/transfers", body, IdempotencyHeader, "k-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	ana, err := f.store.FindByPhone(context.Background(), anaPhone)
	require.NoError(t, err)
	assert.Equal(t, "90", ana.Balance.String())
}

func TestLink(t *testing.T) {
	f := newAPIFixture(t, RouterOptions{})
	f.registerAccounts(t)

	rec := f.do(t, http.MethodPost, "/api/v1/accounts/link", map[string]string{"phone": anaPhone, "pin": "0000", "chat_link": "555"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["linked"])

	rec = f.do(t, http.MethodPost, "/api/v1/accounts/link", map[string]string{"phone": anaPhone, "pin": "1234", "chat_link": "555"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["linked"])

	acc, err := f.store.FindByChatLink(context.Background(), "555")
	require.NoError(t, err)
	assert.Equal(t, anaPhone, acc.Phone)

	rec = f.do(t, http.MethodPost, "/api/v1/accounts/link", map[string]string{"phone": anaPhone, "pin": "1234"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProbesAndMetrics(t *testing.T) {
	f := newAPIFixture(t, RouterOptions{})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil).Code)

	rec := f.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", decodeBody(t, rec)["store"])

	require.NoError(t, f.probes.Drain(context.Background()))
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/readyz", nil).Code)

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRateLimit(t *testing.T) {
	log := testLogger()
	rules := ratelimit.NewRules(config.RateLimitConfig{Enabled: true, Limit: 1, Window: time.Minute})
	rl := middleware.NewRateLimitMiddleware(ratelimit.NewMemoryLimiter(log), rules, i18n.MustLoad("en"), log)

	f := newAPIFixture(t, RouterOptions{RateLimit: rl})
	creds := map[string]string{"phone": anaPhone, "pin": "1234"}

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/v1/sessions", creds).Code)

	rec := f.do(t, http.MethodPost, "/api/v1/sessions", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// probes are outside the limited group
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil).Code)
}
