package notification

import (
	"sync"
	"time"

	"github.com/tphakala/codescan/internal/errors"
	"github.com/tphakala/codescan/internal/logger"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// StateClosed means alerts flow normally.
	StateClosed CircuitState = iota
	// StateHalfOpen means one trial alert is allowed through.
	StateHalfOpen
	// StateOpen means alerts are rejected until the timeout passes.
	StateOpen
)

func (s CircuitState) String() string {
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

// ErrCircuitOpen is returned while the breaker rejects alerts.
var ErrCircuitOpen = errors.Newf("notification circuit breaker is open").
	Component("notification").
	Category(errors.CategoryLimit).
	Build()

// CircuitBreakerConfig holds configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	MaxFailures int           // consecutive failures before opening
	Timeout     time.Duration // time spent open before a trial alert
}

// DefaultCircuitBreakerConfig returns the default breaker configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
	}
}

// circuitBreaker stops hammering a notification service that keeps failing.
type circuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failures        int
	lastStateChange time.Time
	trialInFlight   bool
}

func newCircuitBreaker(config CircuitBreakerConfig, now func() time.Time) *circuitBreaker {
	if config.MaxFailures < 1 {
		config.MaxFailures = 1
	}
	return &circuitBreaker{
		config:          config,
		now:             now,
		state:           StateClosed,
		lastStateChange: now(),
	}
}

// allow reports whether a call may proceed.
func (cb *circuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.lastStateChange) < cb.config.Timeout {
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.trialInFlight = true
		return nil
	default:
		if cb.trialInFlight {
			return ErrCircuitOpen
		}
		cb.trialInFlight = true
		return nil
	}
}

// record updates the breaker with the result of an allowed call.
func (cb *circuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.trialInFlight = false
	if err == nil {
		cb.failures = 0
		if cb.state != StateClosed {
			cb.setState(StateClosed)
		}
		return
	}

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.config.MaxFailures {
		cb.setState(StateOpen)
	}
}

// release ends an allowed call without a verdict, e.g. when the caller gave up.
func (cb *circuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trialInFlight = false
}

func (cb *circuitBreaker) setState(s CircuitState) {
	if cb.state == s {
		return
	}
	getLogger().Info("notification circuit breaker state changed",
		logger.String("from", cb.state.String()),
		logger.String("to", s.String()),
		logger.Int("failures", cb.failures))
	cb.state = s
	cb.lastStateChange = cb.now()
}

// State returns the current state.
func (cb *circuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
