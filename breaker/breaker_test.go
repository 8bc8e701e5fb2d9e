package breaker

import (
	"testing"
	"time"
)

func TestCountBased_OpensAndHalfOpens(t *testing.T) {
	cb := NewCountBased(CountBasedConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      50 * time.Millisecond,
	})

	for i := 0; i < 3; i++ {
		if !cb.CanExecute() {
			t.Fatalf("expected closed breaker to permit call %d", i)
		}
		cb.RecordFailure()
	}
	if cb.State() != Open {
		t.Fatalf("expected Open after %d consecutive failures, got %v", 3, cb.State())
	}
	if cb.CanExecute() {
		t.Fatal("expected Open breaker to reject calls before timeout")
	}

	time.Sleep(60 * time.Millisecond)
	if cb.State() != HalfOpen {
		t.Fatalf("expected HalfOpen after timeout elapsed, got %v", cb.State())
	}

	if !cb.CanExecute() {
		t.Fatal("expected HalfOpen to permit a trial call")
	}
	cb.RecordSuccess()
	if cb.State() != HalfOpen {
		t.Fatalf("one success should not close yet, got %v", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != Closed {
		t.Fatalf("two successes should close, got %v", cb.State())
	}
}

func TestCountBased_HalfOpenReopensOnFailure(t *testing.T) {
	cb := NewCountBased(CountBasedConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenTimeout:      10 * time.Millisecond,
	})
	cb.RecordFailure()
	if cb.State() != Open {
		t.Fatal("expected Open after first failure with threshold 1")
	}
	time.Sleep(15 * time.Millisecond)
	if cb.State() != HalfOpen {
		t.Fatal("expected HalfOpen after timeout")
	}
	cb.RecordFailure()
	if cb.State() != Open {
		t.Fatalf("a single HalfOpen failure should reopen, got %v", cb.State())
	}
}

func TestSlidingWindow_OpensOnFailureRate(t *testing.T) {
	sw := NewSlidingWindow(SlidingWindowConfig{
		WindowSize:               time.Second,
		MinimumCalls:             4,
		FailureRateThreshold:     0.5,
		PermittedCallsInHalfOpen: 2,
		OpenTimeout:              20 * time.Millisecond,
	})
	sw.RecordSuccess()
	sw.RecordFailure()
	sw.RecordFailure()
	if sw.State() != Closed {
		t.Fatalf("below MinimumCalls, expected Closed, got %v", sw.State())
	}
	sw.RecordFailure()
	if sw.State() != Open {
		t.Fatalf("3 failures in 4 calls (at or above the 50%% threshold) should open, got %v", sw.State())
	}
}
