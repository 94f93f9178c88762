package middleware

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/minibank/internal/i18n"
	"github.com/Proton-105/minibank/internal/ratelimit"
)

// RateLimitMiddleware enforces per-actor limits for Telegram updates and
// API requests.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	i18n    *i18n.Manager
	log     *slog.Logger
}

func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, catalog *i18n.Manager, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		i18n:    catalog,
		log:     log,
	}
}

// Handle returns a telebot middleware that enforces per-user rate limits.
// Limiter failures let the update through.
func (m *RateLimitMiddleware) Handle(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if m.limiter == nil || m.rules == nil || sender == nil || m.rules.IsWhitelisted(sender.ID) {
			return next(c)
		}

		retryAfter, allowed := m.allow(context.Background(), ratelimit.ChatKey(sender.ID))
		if allowed {
			return next(c)
		}

		m.log.Warn("rate limit exceeded", slog.Int64("user_id", sender.ID))
		if c.Callback() != nil {
			_ = c.Respond()
		}
		text := m.i18n.Translator(sender.LanguageCode).F("common.rate_limited", map[string]any{
			"RetryAfter": seconds(retryAfter),
		})
		return c.Send(text)
	}
}

// HTTP limits API clients by remote address and answers 429 when exceeded.
func (m *RateLimitMiddleware) HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limiter == nil || m.rules == nil {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter, allowed := m.allow(r.Context(), ratelimit.ClientKey(clientAddr(r)))
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(seconds(retryAfter)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":"E500","error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) allow(ctx context.Context, key string) (time.Duration, bool) {
	limit, window := m.rules.PerActor()

	result, err := m.limiter.Check(ctx, key, limit, window)
	if err != nil && !errors.Is(err, ratelimit.ErrLimitExceeded) {
		m.log.WarnContext(ctx, "rate limiter error", slog.String("key", key), slog.Any("error", err))
		return 0, true
	}
	if result == nil || result.Allowed {
		return 0, true
	}

	return result.RetryAfter(time.Now()), false
}

func seconds(d time.Duration) int {
	return int(math.Max(1, math.Ceil(d.Seconds())))
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
