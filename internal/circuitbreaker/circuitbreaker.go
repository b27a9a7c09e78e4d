// Package circuitbreaker fails fast when the completion service is
// unhealthy, instead of queueing doomed calls behind long timeouts.
//
// States:
//   - Closed: normal operation, calls pass through
//   - Open: service unhealthy, calls fail immediately
//   - Half-Open: probing recovery, limited calls allowed
//
// The breaker never retries on the caller's behalf; an open circuit surfaces
// as an upstream error for the current request.
package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/mathparenting/tutor-gateway/internal/domain"
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Config struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int
	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration
	// OnStateChange, when set, observes every transition. Called outside
	// the breaker lock.
	OnStateChange func(from, to State)
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

type Breaker struct {
	cfg Config

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	now       func() time.Time
}

func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: StateClosed, now: time.Now}
}

// Allow reports whether a call may proceed. Returns
// domain.ErrCircuitBreakerOpen while the circuit is open.
func (b *Breaker) Allow(ctx context.Context) error {
	b.mu.Lock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
			b.mu.Unlock()
			return domain.ErrCircuitBreakerOpen
		}
		ev := b.transition(StateHalfOpen)
		b.mu.Unlock()
		b.fire(ev)
		return nil
	}

	b.mu.Unlock()
	return nil
}

func (b *Breaker) RecordSuccess(ctx context.Context) {
	b.mu.Lock()

	var ev *transitionEvent
	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			ev = b.transition(StateClosed)
		}
	case StateClosed:
		b.failures = 0
	}

	b.mu.Unlock()
	b.fire(ev)
}

func (b *Breaker) RecordFailure(ctx context.Context) {
	b.mu.Lock()

	var ev *transitionEvent
	switch b.state {
	case StateHalfOpen:
		ev = b.transition(StateOpen)
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			ev = b.transition(StateOpen)
		}
	}

	b.mu.Unlock()
	b.fire(ev)
}

func (b *Breaker) State(ctx context.Context) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

type transitionEvent struct {
	from, to State
}

// transition must be called with the lock held; the caller fires the event
// after unlocking.
func (b *Breaker) transition(to State) *transitionEvent {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
	return &transitionEvent{from: from, to: to}
}

func (b *Breaker) fire(ev *transitionEvent) {
	if ev != nil && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(ev.from, ev.to)
	}
}
