package storyblok

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerConfig holds the configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures required to trip the circuit.
	// Default: 5
	MaxFailures uint32

	// Timeout is the duration the circuit stays open before transitioning to half-open.
	// Default: 30 seconds
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of requests allowed through while half-open.
	// Default: 1
	HalfOpenMaxSuccesses uint32

	// Logger receives state transitions. Nil disables logging.
	Logger *slog.Logger
}

// CircuitBreakerMetrics holds counters about circuit breaker operations.
type CircuitBreakerMetrics struct {
	TotalRequests        uint64
	TotalSuccesses       uint64
	TotalFailures        uint64
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// CircuitBreaker wraps gobreaker to stop hammering the CDN while it is
// failing. Only transport errors and temporary status codes count as
// failures; a 401 because of a bad token or a cancelled request never
// trips the circuit.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	mu      sync.RWMutex
	metrics CircuitBreakerMetrics
}

// NewCircuitBreaker creates a circuit breaker with default configuration.
func NewCircuitBreaker() *CircuitBreaker {
	return NewCircuitBreakerWithConfig(CircuitBreakerConfig{})
}

// NewCircuitBreakerWithConfig creates a circuit breaker with custom
// configuration. Zero fields take their defaults.
func NewCircuitBreakerWithConfig(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HalfOpenMaxSuccesses == 0 {
		config.HalfOpenMaxSuccesses = 1
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	settings := gobreaker.Settings{
		Name:        "storyblok-cdn",
		MaxRequests: config.HalfOpenMaxSuccesses,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &CircuitBreaker{breaker: gobreaker.NewCircuitBreaker(settings)}
}

func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return !netErr.Temporary()
	}
	return false
}

// Execute runs fn through the circuit breaker.
// If the circuit is open, it returns ErrCircuitOpen immediately.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := cb.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})

	if err != nil {
		cb.record(false)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return result, err
	}
	cb.record(true)
	return result, nil
}

// State returns the current state: "closed", "open" or "half-open".
func (cb *CircuitBreaker) State() string {
	switch cb.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Metrics returns the current counters.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	counts := cb.breaker.Counts()
	m := cb.metrics
	m.ConsecutiveSuccesses = counts.ConsecutiveSuccesses
	m.ConsecutiveFailures = counts.ConsecutiveFailures
	return m
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.metrics.TotalRequests++
	if ok {
		cb.metrics.TotalSuccesses++
	} else {
		cb.metrics.TotalFailures++
	}
}
