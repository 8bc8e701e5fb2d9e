package queue_test

import (
	"testing"

	"github.com/vqmcore/queuecore/queue"
)

func TestState_StringAndParseRoundTrip(t *testing.T) {
	states := []queue.State{queue.Pending, queue.Leased, queue.Succeeded, queue.Failed, queue.Dead, queue.Unknown}
	for _, s := range states {
		parsed, err := queue.ParseState(s.String())
		if err != nil {
			t.Fatalf("unexpected error parsing %q: %v", s.String(), err)
		}
		if parsed != s {
			t.Fatalf("round trip mismatch: %v != %v", parsed, s)
		}
	}
}

func TestParseState_RejectsUnknownString(t *testing.T) {
	if _, err := queue.ParseState("Bogus"); err == nil {
		t.Fatal("expected an error for an unrecognized state string")
	}
}

func TestTerminal(t *testing.T) {
	terminal := map[queue.State]bool{
		queue.Pending:   false,
		queue.Leased:    false,
		queue.Succeeded: true,
		queue.Failed:    false,
		queue.Dead:      true,
		queue.Unknown:   false,
	}
	for s, want := range terminal {
		if got := s.Terminal(); got != want {
			t.Fatalf("%v.Terminal() = %v, want %v", s, got, want)
		}
	}
}
