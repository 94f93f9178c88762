package ratelimit

import (
	"strconv"
	"time"

	"github.com/Proton-105/minibank/pkg/config"
)

// Rules holds the configured limit and the actors exempt from it.
type Rules struct {
	limit     int
	window    time.Duration
	whitelist map[int64]struct{}
}

func NewRules(cfg config.RateLimitConfig) *Rules {
	r := &Rules{
		limit:     cfg.Limit,
		window:    cfg.Window,
		whitelist: make(map[int64]struct{}, len(cfg.Whitelist)),
	}
	if r.window <= 0 {
		r.window = time.Minute
	}
	for _, id := range cfg.Whitelist {
		r.whitelist[id] = struct{}{}
	}
	return r
}

// IsWhitelisted reports whether the chat user bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	_, ok := r.whitelist[userID]
	return ok
}

// PerActor returns the limit applied to one chat user or API client.
func (r *Rules) PerActor() (int, time.Duration) {
	return r.limit, r.window
}

// ChatKey and ClientKey namespace limiter keys per front-end.
func ChatKey(userID int64) string {
	return "chat:" + strconv.FormatInt(userID, 10)
}

func ClientKey(addr string) string {
	return "api:" + addr
}
