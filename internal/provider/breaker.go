package provider

import (
	"context"
	"errors"
	"sync"
	"time"

	"intraday-scanner/internal/model"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = 0 // Normal operation; requests pass through
	StateOpen     State = 1 // Circuit tripped; requests rejected immediately
	StateHalfOpen State = 2 // Testing; one request allowed through to probe
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker implements a simple circuit breaker pattern.
// After maxFailures consecutive failures, the breaker opens and rejects all
// calls for resetTimeout. After the timeout, it enters half-open state and
// allows one probe call through. If the probe succeeds, the breaker closes;
// if it fails, it reopens. While a probe is in flight other calls are rejected.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time
	probing      bool
	now          func() time.Time

	// Callbacks (optional)
	OnStateChange func(from, to State) // called on state transitions, under the breaker lock
}

// NewCircuitBreaker creates a circuit breaker.
// maxFailures: consecutive failures before opening (e.g., 5)
// resetTimeout: time to wait before half-open probe (e.g., 30s)
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
		now:          time.Now,
	}
}

// Execute runs fn through the circuit breaker.
// Returns ErrCircuitOpen if the breaker is open and the timeout hasn't elapsed.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) <= cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probing = true

	case StateHalfOpen:
		if cb.probing {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.probing = true
	}

	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false

	if err != nil {
		cb.failures++
		cb.lastFailure = cb.now()

		if cb.state == StateHalfOpen {
			// Probe failed; reopen
			cb.transition(StateOpen)
		} else if cb.state == StateClosed && cb.failures >= cb.maxFailures {
			cb.transition(StateOpen)
		}
		return err
	}

	if cb.state == StateHalfOpen {
		cb.transition(StateClosed)
	}
	cb.failures = 0
	return nil
}

// CurrentState returns the current circuit breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if to == StateClosed {
		cb.failures = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}

// Guarded wraps a Provider with a circuit breaker. "No data" answers and
// caller cancellations are not counted as upstream failures.
type Guarded struct {
	inner model.Provider
	cb    *CircuitBreaker
}

// NewGuarded wraps p with cb.
func NewGuarded(p model.Provider, cb *CircuitBreaker) *Guarded {
	return &Guarded{inner: p, cb: cb}
}

func (g *Guarded) Name() string { return g.inner.Name() }

// Breaker exposes the underlying breaker for metrics wiring.
func (g *Guarded) Breaker() *CircuitBreaker { return g.cb }

func (g *Guarded) FetchHistory(ctx context.Context, symbol, lookback, interval string) (model.Series, error) {
	var (
		series model.Series
		benign error
	)
	err := g.cb.Execute(func() error {
		s, err := g.inner.FetchHistory(ctx, symbol, lookback, interval)
		if err != nil {
			if errors.Is(err, model.ErrNoData) || errors.Is(err, context.Canceled) {
				benign = err
				return nil
			}
			return err
		}
		series = s
		return nil
	})
	if err != nil {
		return model.Series{}, err
	}
	if benign != nil {
		return model.Series{}, benign
	}
	return series, nil
}
