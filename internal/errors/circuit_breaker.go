package errors

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the protected function while
// the breaker is open. It is not retryable: waiting out the open period
// inside one request would only delay the caller.
var ErrCircuitOpen = &AppError{
	Code:        "E301",
	Message:     "circuit breaker is open",
	UserMessage: ErrNotificationFault.UserMessage,
	Severity:    SeverityMedium,
}

// BreakerSettings tunes a CircuitBreaker. Zero fields take the defaults.
type BreakerSettings struct {
	// FailureRatio trips the breaker once at least MinRequests calls were
	// seen and this share of them failed.
	FailureRatio float64
	MinRequests  int
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests successful probes close the breaker again.
	HalfOpenRequests int
	OnStateChange    func(from, to State)
}

func (s *BreakerSettings) applyDefaults() {
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.5
	}
	if s.MinRequests <= 0 {
		s.MinRequests = 10
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.HalfOpenRequests <= 0 {
		s.HalfOpenRequests = 3
	}
}

type CircuitBreaker struct {
	settings BreakerSettings
	now      func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	requests  int
	openedAt  time.Time
}

func NewCircuitBreaker(settings BreakerSettings) *CircuitBreaker {
	settings.applyDefaults()
	return &CircuitBreaker{settings: settings, now: time.Now}
}

// Call runs fn unless the breaker is open or its half-open probe budget is
// used up, and records the outcome.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	if err := cb.admit(); err != nil {
		return err
	}

	err := fn()
	cb.record(err == nil)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.settings.OpenTimeout {
			return ErrCircuitOpen
		}
		cb.setStateLocked(StateHalfOpen)
	}

	if cb.state == StateHalfOpen {
		if cb.requests >= cb.settings.HalfOpenRequests {
			return ErrCircuitOpen
		}
		// probes are counted when admitted so concurrent callers cannot
		// exceed the budget
		cb.requests++
	}
	return nil
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		if !ok {
			cb.setStateLocked(StateOpen)
			return
		}
		cb.successes++
		if cb.successes >= cb.settings.HalfOpenRequests {
			cb.setStateLocked(StateClosed)
		}
		return
	}

	cb.requests++
	if ok {
		cb.successes++
		return
	}
	cb.failures++

	if cb.requests >= cb.settings.MinRequests &&
		float64(cb.failures)/float64(cb.requests) >= cb.settings.FailureRatio {
		cb.setStateLocked(StateOpen)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) setStateLocked(next State) {
	prev := cb.state
	cb.state = next
	cb.failures, cb.successes, cb.requests = 0, 0, 0
	if next == StateOpen {
		cb.openedAt = cb.now()
	}
	if prev != next && cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(prev, next)
	}
}
