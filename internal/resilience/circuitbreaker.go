// Package resilience provides the failure-handling primitives for external
// engines: a circuit breaker, an ordered failover group, and a reconnect
// backoff.
//
// [CircuitBreaker] tracks consecutive failures per engine and stops calling
// an engine that keeps failing. [FallbackGroup] composes several engines of
// the same type behind per-engine breakers so the first healthy one serves
// each call; [TTSFallback] is its synthesis instantiation. [Backoff] paces
// the feed reconnect loop.
//
// All types except [Backoff] are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// refuses calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a limited number of trial calls through to decide
	// whether the engine has recovered.
	StateHalfOpen
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

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker]. The
// defaults suit synthesis engines: a dead VOICEVOX server makes each call
// burn its full synthesis timeout before failing, so the breaker must bench
// the engine after a handful of utterances and retry soon, or the reader
// falls behind the stream by minutes.
type CircuitBreakerConfig struct {
	// Name labels the breaker in log messages, typically the engine name.
	Name string

	// MaxFailures is the consecutive-failure count that opens the breaker.
	// Default: 3.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before trying the
	// engine again. Default: 20s.
	ResetTimeout time.Duration

	// HalfOpenMax is the trial-call budget in the half-open state.
	// Default: 2.
	HalfOpenMax int
}

// CircuitBreaker implements the closed/open/half-open breaker pattern.
// Safe for concurrent use.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu            sync.Mutex
	state         State
	failures      int
	lastFailure   time.Time
	halfOpenCalls int
	halfOpenFails int
}

// NewCircuitBreaker creates a breaker, substituting defaults for zero-value
// config fields.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 20 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 2
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
	}
}

// Execute runs fn unless the breaker refuses the call, and feeds the outcome
// back into the failure accounting.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	trial, err := cb.allow()
	if err != nil {
		return err
	}

	err = fn()
	cb.record(trial, err)
	return err
}

// allow decides whether a call may proceed and reports whether it counts
// against the half-open trial budget.
func (cb *CircuitBreaker) allow() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFailure) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.halfOpenCalls = 0
		cb.halfOpenFails = 0
		slog.Info("resilience: breaker trying engine again", "name", cb.name)
	}

	if cb.state == StateHalfOpen {
		if cb.halfOpenCalls >= cb.halfOpenMax {
			return false, ErrCircuitOpen
		}
		cb.halfOpenCalls++
		return true, nil
	}
	return false, nil
}

// record updates the failure accounting after a call.
func (cb *CircuitBreaker) record(trial bool, callErr error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if callErr == nil {
		if !trial {
			cb.failures = 0
			return
		}
		if cb.halfOpenCalls-cb.halfOpenFails >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failures = 0
			cb.halfOpenCalls = 0
			cb.halfOpenFails = 0
			slog.Info("resilience: breaker closed, engine recovered", "name", cb.name)
		}
		return
	}

	cb.lastFailure = time.Now()
	if trial {
		// One failed trial call is enough evidence the engine is still down.
		cb.halfOpenFails++
		cb.state = StateOpen
		cb.failures = cb.maxFailures
		slog.Warn("resilience: breaker re-opened, engine still failing", "name", cb.name)
		return
	}

	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("resilience: breaker opened",
			"name", cb.name, "consecutive_failures", cb.failures)
	}
}

// State returns the current breaker state. An open breaker whose reset
// timeout has elapsed reports half-open; the transition itself happens on
// the next [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenCalls = 0
	cb.halfOpenFails = 0
	slog.Info("resilience: breaker manually reset", "name", cb.name)
}
