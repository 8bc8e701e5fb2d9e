package queue_test

import (
	"testing"
	"time"

	"github.com/vqmcore/queuecore/message"
	"github.com/vqmcore/queuecore/queue"
)

func newJob(state queue.State) *queue.Job {
	return &queue.Job{
		Message:     *message.New("orders", "created", nil),
		Attempt:     0,
		MaxAttempts: 3,
		State:       state,
	}
}

func TestReady_PendingAndVisible(t *testing.T) {
	now := time.Now()
	j := newJob(queue.Pending)
	j.VisibleAt = now.Add(-time.Second)
	if !j.Ready(now) {
		t.Fatal("expected a pending, past-visible job to be ready")
	}
}

func TestReady_PendingButNotYetVisible(t *testing.T) {
	now := time.Now()
	j := newJob(queue.Pending)
	j.VisibleAt = now.Add(time.Minute)
	if j.Ready(now) {
		t.Fatal("expected a future-visible job not to be ready")
	}
}

func TestReady_WrongStateNeverReady(t *testing.T) {
	now := time.Now()
	j := newJob(queue.Leased)
	j.VisibleAt = now.Add(-time.Second)
	if j.Ready(now) {
		t.Fatal("expected a leased job not to be ready")
	}
}

func TestLeaseExpired(t *testing.T) {
	now := time.Now()
	j := newJob(queue.Leased)
	past := now.Add(-time.Second)
	j.LeaseUntil = &past
	if !j.LeaseExpired(now) {
		t.Fatal("expected an elapsed lease to be reported as expired")
	}

	future := now.Add(time.Minute)
	j.LeaseUntil = &future
	if j.LeaseExpired(now) {
		t.Fatal("expected a not-yet-elapsed lease not to be expired")
	}
}

func TestLeaseExpired_NilLeaseNeverExpired(t *testing.T) {
	j := newJob(queue.Leased)
	if j.LeaseExpired(time.Now()) {
		t.Fatal("expected a job with no lease deadline not to be reported expired")
	}
}

func TestRetryExhausted(t *testing.T) {
	j := newJob(queue.Pending)
	j.MaxAttempts = 3

	j.Attempt = 1
	if j.RetryExhausted() {
		t.Fatal("expected attempt 1 of 3 max to have budget remaining")
	}

	j.Attempt = 2
	if !j.RetryExhausted() {
		t.Fatal("expected attempt 2 of 3 max (next would be the 3rd) to be exhausted")
	}
}
