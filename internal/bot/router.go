package bot

import (
	"log/slog"
	"strings"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/minibank/internal/bot/handlers"
	"github.com/Proton-105/minibank/internal/bot/keyboard"
)

// Router dispatches commands, callbacks and free text through a shared
// middleware chain.
type Router struct {
	mu             sync.RWMutex
	commands       map[string]handlers.Handler
	callbacks      map[string]handlers.Handler
	defaultHandler handlers.Handler
	middlewares    []handlers.Middleware
	log            *slog.Logger
}

func NewRouter(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		commands:  make(map[string]handlers.Handler),
		callbacks: make(map[string]handlers.Handler),
		log:       log,
	}
}

// RegisterCommand registers a handler for a bot command such as "/start".
func (r *Router) RegisterCommand(cmd string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd] = h
}

// RegisterCallback registers a handler for a callback action.
func (r *Router) RegisterCallback(action string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[action] = h
}

// Use appends a middleware; the first registered runs outermost.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// SetDefault sets the handler for text and callbacks nothing else claims.
func (r *Router) SetDefault(h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultHandler = h
}

// Route directs the incoming update to the appropriate handler.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	handler := r.resolve(c)
	if handler == nil {
		r.log.Debug("no handler for update", slog.Int("update_id", c.Update().ID))
		return nil
	}

	return r.applyMiddlewares(handler)(c)
}

func (r *Router) resolve(c telebot.Context) handlers.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cb := c.Callback(); cb != nil {
		if action, _, err := keyboard.DecodeCallback(strings.TrimSpace(cb.Data)); err == nil {
			if h, ok := r.callbacks[action]; ok {
				return h
			}
		}
		return r.defaultHandler
	}

	text := strings.TrimSpace(c.Text())
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		// Commands in groups arrive as /start@botname.
		cmd, _, _ = strings.Cut(cmd, "@")
		if h, ok := r.commands[cmd]; ok {
			return h
		}
	}

	return r.defaultHandler
}

// applyMiddlewares wraps the handler with all registered middlewares.
func (r *Router) applyMiddlewares(h handlers.Handler) handlers.Handler {
	r.mu.RLock()
	middlewares := make([]handlers.Middleware, len(r.middlewares))
	copy(middlewares, r.middlewares)
	r.mu.RUnlock()

	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}
