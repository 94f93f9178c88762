package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/minibank/internal/lifecycle"
	"github.com/Proton-105/minibank/internal/middleware"
	"github.com/Proton-105/minibank/pkg/logger"
)

// RouterOptions carries the optional collaborators of the router.
type RouterOptions struct {
	Probes    *lifecycle.Probes
	RateLimit *middleware.RateLimitMiddleware
	Timeout   time.Duration
}

// NewRouter builds the chi router serving the desktop API, probes and
// Prometheus metrics.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(logger.Middleware)
	r.Use(middleware.New(h.log))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Probes != nil {
			if err := opts.Probes.Liveness(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Probes == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		status := http.StatusOK
		if err := opts.Probes.Readiness(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, opts.Probes.Report(r.Context()))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(opts.Timeout))
		if opts.RateLimit != nil {
			r.Use(opts.RateLimit.HTTP)
		}

		r.Post("/sessions", h.Login)
		r.Post("/accounts", h.Register)
		r.Post("/accounts/link", h.Link)
		r.Post("/transfers", h.Transfer)
		r.Post("/history", h.History)
	})

	return r
}
