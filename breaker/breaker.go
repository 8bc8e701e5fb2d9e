// Package breaker implements circuit-breaker failure protection for
// handler invocations, in two variants (count-based and sliding-window)
// behind a common interface, plus an adapter over github.com/sony/gobreaker
// for callers that want that library's battle-tested bookkeeping instead.
package breaker

import (
	"sync"
	"time"
)

// State is the circuit breaker's externally observable state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Stats is a snapshot of a breaker's counters for observability.
type Stats struct {
	State             State
	Requests          int64
	Failures          int64
	Successes         int64
	Rejections        int64
	DurationInState   time.Duration
	lastTransitionRef time.Time
}

// Breaker is the common interface both variants satisfy.
//
// State is a pure, lazily-evaluated read: querying it after the open
// timeout has elapsed reports HalfOpen without mutating any stored
// field. Only CanExecute, RecordSuccess, and RecordFailure actually
// perform the Open -> HalfOpen transition, matching the source
// CircuitBreaker::state()/transition_to() split this was grounded on.
type Breaker interface {
	// CanExecute reports whether a call should be allowed through right
	// now, performing the lazy Open -> HalfOpen transition as a side
	// effect if the timeout has elapsed.
	CanExecute() bool
	RecordSuccess()
	RecordFailure()
	State() State
	Reset()
	Stats() Stats
}

var _ Breaker = (*CountBased)(nil)
var _ Breaker = (*SlidingWindow)(nil)

// CountBasedConfig configures a CountBased breaker.
type CountBasedConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
}

// CountBased opens after FailureThreshold consecutive failures in Closed,
// closes after SuccessThreshold consecutive successes in HalfOpen, and a
// single failure in HalfOpen reopens immediately.
type CountBased struct {
	cfg CountBasedConfig

	mu               sync.Mutex
	state            State
	consecFailures   int
	consecSuccesses  int
	openedAt         time.Time
	lastTransitionAt time.Time

	requests   int64
	failures   int64
	successes  int64
	rejections int64
}

// NewCountBased constructs a CountBased breaker starting Closed.
func NewCountBased(cfg CountBasedConfig) *CountBased {
	return &CountBased{cfg: cfg, lastTransitionAt: time.Now()}
}

// observedState returns the current state as of now, without mutating
// internal state, mirroring the original's read-only state() getter.
func (c *CountBased) observedState(now time.Time) State {
	if c.state == Open && now.Sub(c.openedAt) >= c.cfg.OpenTimeout {
		return HalfOpen
	}
	return c.state
}

func (c *CountBased) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observedState(time.Now())
}

func (c *CountBased) transitionTo(s State, now time.Time) {
	if c.state == s {
		return
	}
	c.state = s
	c.lastTransitionAt = now
	switch s {
	case Open:
		c.openedAt = now
		c.consecSuccesses = 0
	case HalfOpen:
		c.consecFailures = 0
		c.consecSuccesses = 0
	case Closed:
		c.consecFailures = 0
		c.consecSuccesses = 0
	}
}

func (c *CountBased) CanExecute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	observed := c.observedState(now)
	if observed == Open {
		c.rejections++
		return false
	}
	if observed == HalfOpen && c.state == Open {
		c.transitionTo(HalfOpen, now)
	}
	return true
}

func (c *CountBased) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.requests++
	c.successes++
	c.consecFailures = 0
	switch c.observedState(now) {
	case HalfOpen:
		c.transitionTo(HalfOpen, now)
		c.consecSuccesses++
		if c.consecSuccesses >= c.cfg.SuccessThreshold {
			c.transitionTo(Closed, now)
		}
	case Closed:
		c.consecSuccesses++
	}
}

func (c *CountBased) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.requests++
	c.failures++
	c.consecSuccesses = 0
	switch c.observedState(now) {
	case HalfOpen:
		c.transitionTo(HalfOpen, now)
		c.transitionTo(Open, now)
	case Closed:
		c.consecFailures++
		if c.consecFailures >= c.cfg.FailureThreshold {
			c.transitionTo(Open, now)
		}
	}
}

func (c *CountBased) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Closed
	c.consecFailures = 0
	c.consecSuccesses = 0
	c.lastTransitionAt = time.Now()
}

func (c *CountBased) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	return Stats{
		State:           c.observedState(now),
		Requests:        c.requests,
		Failures:        c.failures,
		Successes:       c.successes,
		Rejections:      c.rejections,
		DurationInState: now.Sub(c.lastTransitionAt),
	}
}
