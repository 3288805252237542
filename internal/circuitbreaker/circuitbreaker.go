package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/onnwee/pagelens/backend/internal/metrics"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// State represents the circuit breaker state
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
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker isolates a consistently failing dependency. After
// FailureThreshold consecutive failures the circuit opens and calls are
// rejected without touching the dependency. Once RecoveryTimeout has
// elapsed, exactly one trial call is let through (half-open); its outcome
// decides whether the circuit closes again or re-opens.
//
// State transitions happen only inside Allow/RecordSuccess/RecordFailure;
// callers never set the state directly.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            State
	failureCount     int
	successCount     int
	openedAt         time.Time
	halfOpenInFlight bool
	name             string

	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration
}

// Config holds circuit breaker configuration
type Config struct {
	Name             string
	FailureThreshold int           // Number of failures before opening
	SuccessThreshold int           // Number of half-open successes needed to close
	RecoveryTimeout  time.Duration // Time to wait before trying half-open
}

// New creates a new circuit breaker
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}

	cb := &CircuitBreaker{
		state:            StateClosed,
		name:             cfg.Name,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		recoveryTimeout:  cfg.RecoveryTimeout,
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	return cb
}

// Call executes fn if the circuit allows it, recording the outcome.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}

	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}

	cb.RecordSuccess()
	return nil
}

// Allow reports whether a call may proceed now. It returns ErrCircuitOpen
// when the circuit is open or a half-open trial is already in flight.
// A caller that receives nil must follow up with RecordSuccess or
// RecordFailure.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.openedAt) > cb.recoveryTimeout {
			cb.setState(StateHalfOpen)
			cb.successCount = 0
			cb.halfOpenInFlight = true
			return nil
		}
		metrics.CircuitBreakerRejections.WithLabelValues(cb.name).Inc()
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenInFlight {
			// Only one trial call probes the dependency at a time.
			metrics.CircuitBreakerRejections.WithLabelValues(cb.name).Inc()
			return ErrCircuitOpen
		}
		cb.halfOpenInFlight = true
		return nil
	default:
		return ErrCircuitOpen
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.successCount = 0

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.trip()
		}
	case StateHalfOpen:
		cb.halfOpenInFlight = false
		cb.failureCount = 0
		cb.trip()
	}
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.halfOpenInFlight = false
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.setState(StateClosed)
			cb.failureCount = 0
			cb.successCount = 0
		}
	}
}

// Reset forces the circuit back to closed with all counters cleared.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	cb.failureCount = 0
	cb.successCount = 0
	cb.halfOpenInFlight = false
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// trip opens the circuit. Caller must hold cb.mu.
func (cb *CircuitBreaker) trip() {
	cb.openedAt = time.Now()
	cb.setState(StateOpen)
	metrics.CircuitBreakerTrips.WithLabelValues(cb.name).Inc()
}

// setState updates the state and its gauge. Caller must hold cb.mu.
func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	metrics.CircuitBreakerState.WithLabelValues(cb.name).Set(float64(s))
}
