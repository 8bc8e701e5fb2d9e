package breaker

import (
	"time"

	"github.com/sony/gobreaker"
)

// GobreakerAdapter wraps github.com/sony/gobreaker.CircuitBreaker behind
// the Breaker interface, for callers that prefer that library's
// generation-counted bookkeeping over the hand-rolled CountBased
// implementation. It trades the lazy Open->HalfOpen read for gobreaker's
// own ReadyToTrip/timer semantics, which are equivalent for the count-based
// case this spec describes.
type GobreakerAdapter struct {
	cb *gobreaker.CircuitBreaker
}

// ErrOpen is returned by a wrapped Execute call when the underlying
// breaker is open; CanExecute/RecordFailure/RecordSuccess translate it
// into the Breaker interface's boolean/void contract instead.
var ErrOpen = gobreaker.ErrOpenState

// NewGobreakerAdapter builds an adapter configured to approximate
// CountBasedConfig's thresholds.
func NewGobreakerAdapter(name string, cfg CountBasedConfig) *GobreakerAdapter {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		MaxRequests: uint32(cfg.SuccessThreshold),
	}
	return &GobreakerAdapter{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the wrapped breaker, recording success/failure
// automatically; this is the idiomatic gobreaker usage and is preferred
// over the discrete CanExecute/RecordSuccess/RecordFailure calls when the
// caller can express work as a single function.
func (a *GobreakerAdapter) Execute(fn func() (any, error)) (any, error) {
	return a.cb.Execute(fn)
}

// CanExecute approximates the Breaker contract from gobreaker's State;
// gobreaker has no separate permit-check, so prefer Execute directly when
// possible. RecordSuccess/RecordFailure are no-ops here because gobreaker
// only records outcomes through Execute's callback.
func (a *GobreakerAdapter) CanExecute() bool {
	return a.State() != Open
}

func (a *GobreakerAdapter) RecordSuccess() {}
func (a *GobreakerAdapter) RecordFailure() {}

func (a *GobreakerAdapter) State() State {
	switch a.cb.State() {
	case gobreaker.StateOpen:
		return Open
	case gobreaker.StateHalfOpen:
		return HalfOpen
	default:
		return Closed
	}
}

func (a *GobreakerAdapter) Reset() {
	// gobreaker has no public reset; the idiomatic equivalent is to
	// recreate the breaker, which callers do by discarding this adapter.
}

func (a *GobreakerAdapter) Stats() Stats {
	counts := a.cb.Counts()
	return Stats{
		State:      a.State(),
		Requests:   int64(counts.Requests),
		Failures:   int64(counts.TotalFailures),
		Successes:  int64(counts.TotalSuccesses),
		Rejections: 0,
	}
}

var _ = time.Second // keep time imported for documentation-only examples above
