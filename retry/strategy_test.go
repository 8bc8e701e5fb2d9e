package retry

import (
	"testing"
	"time"
)

func TestExponentialBackoff_Delay(t *testing.T) {
	e := ExponentialBackoff{Base: time.Second, Cap: 10 * time.Second, Multiplier: 2.0}

	cases := []struct {
		attempt uint32
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // capped
	}
	for _, c := range cases {
		if got := e.Delay(c.attempt); got != c.want {
			t.Errorf("Delay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestLinear_Monotonic(t *testing.T) {
	l := Linear{Init: time.Second, Step: 500 * time.Millisecond, Cap: 5 * time.Second}
	var prev time.Duration
	for a := uint32(0); a < 10; a++ {
		d := l.Delay(a)
		if d < prev {
			t.Fatalf("Linear delay not monotonic at attempt %d: %v < %v", a, d, prev)
		}
		prev = d
	}
	if l.Delay(20) != l.Cap {
		t.Errorf("Linear should cap at %v, got %v", l.Cap, l.Delay(20))
	}
}

func TestCustom_OutOfRange(t *testing.T) {
	c := Custom{Delays: []time.Duration{time.Second, 2 * time.Second}}
	if c.Delay(0) != time.Second {
		t.Errorf("Custom.Delay(0) = %v, want 1s", c.Delay(0))
	}
	if c.Delay(5) != 0 {
		t.Errorf("Custom.Delay(5) should be 0 for out-of-range attempt, got %v", c.Delay(5))
	}
}

func TestDecorrelatedJitter_WithinBounds(t *testing.T) {
	d := &DecorrelatedJitter{Base: 100 * time.Millisecond, Cap: 2 * time.Second}
	for a := uint32(0); a < 50; a++ {
		delay := d.Delay(a)
		if delay < d.Base || delay > d.Cap {
			t.Fatalf("attempt %d: delay %v out of [%v, %v]", a, delay, d.Base, d.Cap)
		}
	}
}

func TestPolicy_ShouldRetryAndIsRetryableError(t *testing.T) {
	p := New(3, Fixed{Delay_: time.Second}, nil, []string{"400"})

	if !p.ShouldRetry(0) || !p.ShouldRetry(2) {
		t.Error("expected retry budget to remain for attempts 0 and 2")
	}
	if p.ShouldRetry(3) {
		t.Error("expected no retry budget at attempt == max_attempts")
	}

	if !p.IsRetryableError("500") {
		t.Error("500 should be retryable by default")
	}
	if p.IsRetryableError("400") {
		t.Error("400 is explicitly non-retryable")
	}
}
