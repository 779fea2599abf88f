package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every engine in a [FallbackGroup] fails or
// has an open breaker.
var ErrAllFailed = errors.New("all engines failed")

// FallbackConfig configures the breaker created for each engine in a
// [FallbackGroup]. The same tuning applies to every engine in the group.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// engineSlot pairs an engine with its dedicated breaker.
type engineSlot[T any] struct {
	name    string
	engine  T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary engine and zero or more fallbacks of the
// same type. Calls go to the engines in registration order; an engine whose
// breaker is open is skipped without being called, so a benched primary
// costs nothing per utterance.
//
// FallbackGroup is safe for concurrent use once registration is done.
type FallbackGroup[T any] struct {
	slots []engineSlot[T]
	cfg   FallbackConfig
}

// NewFallbackGroup creates a group with primary as its first engine. Register
// fallbacks with [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.add(primaryName, primary)
	return fg
}

// AddFallback appends a fallback engine, tried after all earlier ones.
func (fg *FallbackGroup[T]) AddFallback(name string, engine T) {
	fg.add(name, engine)
}

func (fg *FallbackGroup[T]) add(name string, engine T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.slots = append(fg.slots, engineSlot[T]{
		name:    name,
		engine:  engine,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// ExecuteWithResult runs fn against each engine in order until one succeeds.
// Every failure is fed into that engine's breaker. Returns [ErrAllFailed]
// wrapping the last error when no engine produced a result.
//
// A package-level function because Go methods cannot carry their own type
// parameter for the result.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range fg.slots {
		slot := &fg.slots[i]
		var result R
		err := slot.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(slot.engine)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("resilience: skipping benched engine", "engine", slot.name)
		} else {
			slog.Warn("resilience: engine failed, trying next",
				"engine", slot.name, "error", err)
		}
	}
	var zero R
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
