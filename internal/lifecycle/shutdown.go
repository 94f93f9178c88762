package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Shutdown coordinates graceful shutdown hooks.
type Shutdown struct {
	mu    sync.Mutex
	hooks []Hook
	log   *slog.Logger
}

// NewShutdown constructs a new Shutdown coordinator.
func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log.With(slog.String("component", "shutdown"))}
}

// Register adds a named shutdown hook to phase.
func (s *Shutdown) Register(phase Phase, name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, Hook{Name: name, Phase: phase, Fn: fn})
}

// Execute runs the registered hooks phase by phase and returns the joined
// hook errors. A failing hook does not stop later phases.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.mu.Lock()
	hooks := append([]Hook(nil), s.hooks...)
	s.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool { return hooks[i].Phase < hooks[j].Phase })

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("hook_count", len(hooks)))

	var errs []error
	for i := 0; i < len(hooks); {
		j := i
		for j < len(hooks) && hooks[j].Phase == hooks[i].Phase {
			j++
		}
		errs = append(errs, s.runPhase(ctx, hooks[i:j])...)
		i = j
	}

	s.log.Info("shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))

	return errors.Join(errs...)
}

func (s *Shutdown) runPhase(ctx context.Context, hooks []Hook) []error {
	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)

	for _, h := range hooks {
		wg.Add(1)
		go func() {
			defer wg.Done()

			log := s.log.With(slog.String("hook", h.Name), slog.String("phase", h.Phase.String()))
			log.Info("running shutdown hook")

			if err := h.Fn(ctx); err != nil {
				log.Error("shutdown hook failed", slog.Any("error", err))
				errMu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
				errMu.Unlock()
				return
			}

			log.Info("shutdown hook completed")
		}()
	}

	wg.Wait()
	return errs
}
