// Package retry generalizes the teacher's Redis-store circuit breaker into
// a domain-agnostic resilience primitive, per spec.md §7's Transient error
// kind. The Redis activity store is the one store client that wraps its
// writes through it (via BufferedWriter); the SQLite ledger store and the
// candle/tick/proposal/audit file stores call their backends directly,
// with no circuit breaker and no retry.
package retry

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = 0 // Normal operation — calls pass through
	StateOpen     State = 1 // Circuit tripped — calls rejected immediately
	StateHalfOpen State = 2 // Testing — one call allowed through to probe
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

// ErrCircuitOpen is returned when the circuit breaker is open and the
// reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker implements the standard closed/open/half-open pattern.
// After MaxFailures consecutive failures, the breaker opens and rejects
// calls for ResetTimeout. After the timeout, it enters half-open and
// allows one probe call through; success closes the breaker, failure
// reopens it.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time

	// OnStateChange, if set, is invoked on every state transition.
	OnStateChange func(from, to State)
}

// NewCircuitBreaker creates a circuit breaker. maxFailures is the number
// of consecutive failures before opening; resetTimeout is how long the
// breaker stays open before allowing a half-open probe.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// Execute runs fn through the circuit breaker. Returns ErrCircuitOpen
// without calling fn if the breaker is open and the reset timeout hasn't
// elapsed.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.transition(StateHalfOpen)
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	case StateHalfOpen:
		// one probe at a time, serialized by cb.mu
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.state == StateHalfOpen {
			cb.transition(StateOpen)
		} else if cb.failures >= cb.maxFailures {
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

// Backoff computes capped exponential backoff with full jitter: attempt 0
// returns a duration in [0, base); attempt n returns a duration in
// [0, min(base*2^n, max)). No store client in this module calls it; none
// of them retries a failed write with backoff.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > max {
			d = max
			break
		}
	}
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d)))
}
