package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/Proton-105/minibank/internal/health"
)

// ErrShuttingDown is reported by readiness once shutdown has begun.
var ErrShuttingDown = errors.New("shutting down")

// Probes answers liveness and readiness. Readiness runs the component
// checks and turns false as soon as shutdown starts.
type Probes struct {
	checker  *health.Checker
	log      *slog.Logger
	draining atomic.Bool
}

func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

// Liveness fails only when the process should be restarted.
func (p *Probes) Liveness(ctx context.Context) error {
	p.log.DebugContext(ctx, "liveness probe called")
	return nil
}

func (p *Probes) Readiness(ctx context.Context) error {
	if p.draining.Load() {
		return ErrShuttingDown
	}
	if p.checker == nil {
		return nil
	}

	results, healthy := p.checker.Check(ctx)
	if healthy {
		return nil
	}

	failed := make([]string, 0, len(results))
	for name, status := range results {
		if status != "OK" {
			failed = append(failed, fmt.Sprintf("%s: %s", name, status))
		}
	}
	sort.Strings(failed)
	return errors.New(strings.Join(failed, "; "))
}

// Report returns the per-component statuses for diagnostics.
func (p *Probes) Report(ctx context.Context) map[string]string {
	if p.checker == nil {
		return map[string]string{}
	}
	results, _ := p.checker.Check(ctx)
	return results
}

// Drain marks the process as not ready. It is registered as the first
// shutdown hook so load balancers stop routing before listeners close.
func (p *Probes) Drain(context.Context) error {
	p.draining.Store(true)
	return nil
}
