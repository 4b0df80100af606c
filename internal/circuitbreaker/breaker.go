// Package circuitbreaker stops calling a failing upstream for a cool-down period.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without invoking the call while the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config tunes a Breaker. Zero values take the defaults noted per field.
type Config struct {
	// MaxFailures consecutive failures open the breaker. Default 5.
	MaxFailures int
	// Timeout is how long the breaker stays open. Default 30s.
	Timeout time.Duration
	// HalfOpenSuccess trial successes close the breaker again. Default 1.
	HalfOpenSuccess int
	// IsFailure decides whether an error counts against the upstream.
	// Default: every non-nil error.
	IsFailure func(error) bool
	// OnStateChange is invoked with the lock released after each transition.
	OnStateChange func(from, to State)
}

// Breaker guards calls to a single upstream
type Breaker struct {
	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	lastStateChange time.Time

	maxFailures     int
	timeout         time.Duration
	halfOpenSuccess int
	isFailure       func(error) bool
	onStateChange   func(from, to State)
	now             func() time.Time
}

func New(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenSuccess <= 0 {
		cfg.HalfOpenSuccess = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}

	return &Breaker{
		state:           StateClosed,
		maxFailures:     cfg.MaxFailures,
		timeout:         cfg.Timeout,
		halfOpenSuccess: cfg.HalfOpenSuccess,
		isFailure:       cfg.IsFailure,
		onStateChange:   cfg.OnStateChange,
		now:             time.Now,
		lastStateChange: time.Now(),
	}
}

// Call runs fn unless the breaker is open. The error from fn is returned unchanged.
func (b *Breaker) Call(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := fn()
	b.after(err)
	return err
}

// before admits or rejects a call, moving open to half-open once the timeout passed
func (b *Breaker) before() error {
	b.mu.Lock()
	if b.state != StateOpen {
		b.mu.Unlock()
		return nil
	}
	if b.now().Sub(b.lastFailureTime) < b.timeout {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	from := b.transition(StateHalfOpen)
	b.successCount = 0
	b.mu.Unlock()

	b.notify(from, StateHalfOpen)
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	from := b.state
	if err != nil && b.isFailure(err) {
		b.onFailure()
	} else {
		b.onSuccess()
	}
	to := b.state
	b.mu.Unlock()

	if from != to {
		b.notify(from, to)
	}
}

func (b *Breaker) onFailure() {
	b.failureCount++
	b.lastFailureTime = b.now()

	switch {
	case b.state == StateHalfOpen:
		b.transition(StateOpen)
		b.successCount = 0
	case b.failureCount >= b.maxFailures:
		b.transition(StateOpen)
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.halfOpenSuccess {
			b.transition(StateClosed)
			b.failureCount = 0
		}
	case StateClosed:
		b.failureCount = 0
	}
}

// transition must be called with mu held; it returns the previous state
func (b *Breaker) transition(to State) State {
	from := b.state
	if from != to {
		b.state = to
		b.lastStateChange = b.now()
	}
	return from
}

func (b *Breaker) notify(from, to State) {
	if b.onStateChange != nil && from != to {
		b.onStateChange(from, to)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed and clears its counters
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failureCount = 0
	b.successCount = 0
	b.lastStateChange = b.now()
	b.mu.Unlock()

	b.notify(from, StateClosed)
}

// Metrics is a point-in-time view of the breaker counters
type Metrics struct {
	State           State
	FailureCount    int
	SuccessCount    int
	LastFailureTime time.Time
	LastStateChange time.Time
}

func (b *Breaker) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Metrics{
		State:           b.state,
		FailureCount:    b.failureCount,
		SuccessCount:    b.successCount,
		LastFailureTime: b.lastFailureTime,
		LastStateChange: b.lastStateChange,
	}
}
