// Package retry computes retry delays and retry/no-retry decisions for
// failed handler invocations.
//
// Delay is a function of the 0-indexed attempt number a < max_attempts,
// per strategy:
//
//	Fixed(d)                         -> d
//	Linear(init, step, cap)          -> min(init + a*step, cap)
//	ExponentialBackoff(base, cap, m) -> min(base * m^a, cap)
//	ExponentialWithJitter(..., j)    -> clamp(base*m^a + U(-j*base*m^a, +j*base*m^a), 0, cap)
//	DecorrelatedJitter(base, cap)    -> min(U(base, prev*3), cap), prev starting at base
//	Custom([d0, d1, ...])            -> d[a] if in range, else 0
package retry

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Strategy computes the delay before the (0-indexed) attempt-th retry.
type Strategy interface {
	Delay(attempt uint32) time.Duration
}

// Fixed always returns the same delay.
type Fixed struct {
	Delay_ time.Duration
}

func (f Fixed) Delay(uint32) time.Duration { return f.Delay_ }

// Linear grows the delay by Step per attempt, capped at Cap.
type Linear struct {
	Init time.Duration
	Step time.Duration
	Cap  time.Duration
}

func (l Linear) Delay(attempt uint32) time.Duration {
	d := l.Init + time.Duration(attempt)*l.Step
	if d > l.Cap {
		return l.Cap
	}
	return d
}

// ExponentialBackoff multiplies Base by Multiplier^attempt, capped at Cap.
type ExponentialBackoff struct {
	Base       time.Duration
	Cap        time.Duration
	Multiplier float64
}

func (e ExponentialBackoff) Delay(attempt uint32) time.Duration {
	d := float64(e.Base) * math.Pow(e.Multiplier, float64(attempt))
	if d > float64(e.Cap) {
		d = float64(e.Cap)
	}
	return time.Duration(d)
}

// ExponentialWithJitter is ExponentialBackoff with a uniform random
// perturbation of +/- Jitter * (current exponential value).
type ExponentialWithJitter struct {
	Base       time.Duration
	Cap        time.Duration
	Multiplier float64
	Jitter     float64
}

func (e ExponentialWithJitter) Delay(attempt uint32) time.Duration {
	base := float64(e.Base) * math.Pow(e.Multiplier, float64(attempt))
	if e.Jitter > 0 && !math.IsInf(base, 0) {
		delta := e.Jitter * base
		base = (base - delta) + rand.Float64()*(2*delta)
	}
	if base < 0 {
		base = 0
	}
	if base > float64(e.Cap) {
		base = float64(e.Cap)
	}
	return time.Duration(base)
}

// DecorrelatedJitter draws the next delay uniformly from [Base, prev*3],
// where prev is the previously computed delay (starting at Base). This
// requires state across calls, so it is safe for concurrent use via an
// internal mutex rather than being a pure function of attempt alone.
type DecorrelatedJitter struct {
	Base time.Duration
	Cap  time.Duration

	mu   sync.Mutex
	prev time.Duration
}

func (d *DecorrelatedJitter) Delay(attempt uint32) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if attempt == 0 || d.prev == 0 {
		d.prev = d.Base
	}
	hi := d.prev * 3
	if hi < d.Base {
		hi = d.Base
	}
	next := d.Base + time.Duration(rand.Float64()*float64(hi-d.Base))
	if next > d.Cap {
		next = d.Cap
	}
	d.prev = next
	return next
}

// Custom returns a fixed table of delays indexed by attempt; out-of-range
// attempts return zero delay.
type Custom struct {
	Delays []time.Duration
}

func (c Custom) Delay(attempt uint32) time.Duration {
	if int(attempt) >= len(c.Delays) {
		return 0
	}
	return c.Delays[attempt]
}
