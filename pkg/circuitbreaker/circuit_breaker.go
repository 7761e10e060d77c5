// Package circuitbreaker stops calling an upstream that keeps failing.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = map[State]string{
	StateClosed:   "CLOSED",
	StateOpen:     "OPEN",
	StateHalfOpen: "HALF_OPEN",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

const defaultHalfOpenMaxCalls = 3

// counts is reset on every state change.
type counts struct {
	admitted    uint32
	failures    uint32
	successes   uint32
	lastFailure time.Time
}

// CircuitBreaker opens after maxFailures consecutive failures and rejects
// calls for timeout. It then admits up to halfOpenMaxCalls probes; that many
// successes close it and any failure reopens it.
//
// Each state change starts a new generation. Results of calls admitted in an
// older generation are dropped.
type CircuitBreaker struct {
	name             string
	maxFailures      uint32
	timeout          time.Duration
	halfOpenMaxCalls uint32
	isFailure        func(error) bool
	now              func() time.Time
	logger           *logrus.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	openedAt   time.Time
	counts     counts
	requests   uint64
	rejected   uint64
}

type Option func(*CircuitBreaker)

func WithLogger(logger *logrus.Logger) Option {
	return func(cb *CircuitBreaker) { cb.logger = logger }
}

// WithFailurePredicate replaces the check for which errors count against
// the upstream. The default ignores context.Canceled.
func WithFailurePredicate(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.isFailure = fn }
}

func WithHalfOpenCalls(n uint32) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.halfOpenMaxCalls = n
		}
	}
}

func New(name string, maxFailures uint32, timeout time.Duration, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		maxFailures:      max(maxFailures, 1),
		timeout:          timeout,
		halfOpenMaxCalls: defaultHalfOpenMaxCalls,
		isFailure:        func(err error) bool { return !errors.Is(err, context.Canceled) },
		now:              time.Now,
		logger:           logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Execute runs fn unless the breaker rejects the call, in which case a
// *CircuitBreakerError is returned and fn is not called.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	generation, err := cb.before()
	if err != nil {
		return err
	}

	callErr := fn(ctx)
	cb.after(generation, callErr)
	return callErr
}

func (cb *CircuitBreaker) before() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.currentState()
	if state == StateOpen || (state == StateHalfOpen && cb.counts.admitted >= cb.halfOpenMaxCalls) {
		cb.rejected++
		return 0, &CircuitBreakerError{Name: cb.name, State: state}
	}

	cb.requests++
	cb.counts.admitted++
	return cb.generation, nil
}

func (cb *CircuitBreaker) after(generation uint64, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if generation != cb.generation {
		return
	}

	if err != nil && cb.isFailure(err) {
		cb.counts.successes = 0
		cb.counts.failures++
		cb.counts.lastFailure = cb.now()
		if cb.state == StateHalfOpen || cb.counts.failures >= cb.maxFailures {
			cb.setState(StateOpen)
		}
		return
	}

	cb.counts.failures = 0
	cb.counts.successes++
	if cb.state == StateHalfOpen && cb.counts.successes >= cb.halfOpenMaxCalls {
		cb.setState(StateClosed)
	}
}

// currentState moves an expired open breaker to half-open. Callers hold mu.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && !cb.now().Before(cb.openedAt.Add(cb.timeout)) {
		cb.setState(StateHalfOpen)
	}
	return cb.state
}

// setState starts a new generation. Callers hold mu.
func (cb *CircuitBreaker) setState(next State) {
	prev := cb.state
	failures := cb.counts.failures
	lastFailure := cb.counts.lastFailure

	cb.state = next
	cb.generation++
	cb.counts = counts{lastFailure: lastFailure}
	if next == StateOpen {
		cb.openedAt = cb.now()
	}

	entry := cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"from":            prev.String(),
		"state":           next.String(),
	})
	switch next {
	case StateOpen:
		entry.WithField("failures", failures).Warn("Circuit breaker opened")
	case StateHalfOpen:
		entry.Info("Circuit breaker probing upstream")
	default:
		entry.Info("Circuit breaker closed")
	}
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

type Stats struct {
	Name            string
	State           State
	Failures        uint32
	Requests        uint64
	Rejected        uint64
	LastFailureTime time.Time
}

func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Stats{
		Name:            cb.name,
		State:           cb.state,
		Failures:        cb.counts.failures,
		Requests:        cb.requests,
		Rejected:        cb.rejected,
		LastFailureTime: cb.counts.lastFailure,
	}
}

// CircuitBreakerError reports a call rejected without reaching the upstream.
type CircuitBreakerError struct {
	Name  string
	State State
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is %s", e.Name, e.State)
}

func IsCircuitBreakerError(err error) bool {
	var cbErr *CircuitBreakerError
	return errors.As(err, &cbErr)
}
