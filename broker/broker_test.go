package broker_test

import (
	"context"
	"testing"
	"time"

	"github.com/vqmcore/queuecore/broker"
	"github.com/vqmcore/queuecore/errs"
	"github.com/vqmcore/queuecore/message"
	"github.com/vqmcore/queuecore/queue"
	"github.com/vqmcore/queuecore/retry"
	"github.com/vqmcore/queuecore/store/memory"
)

func newTestBroker() *broker.Broker {
	b := broker.New(broker.Config{Store: memory.New()})
	b.RegisterQueue(queue.Queue{
		Name:              "default",
		MaxConcurrency:    10,
		VisibilityTimeout: time.Second,
	})
	return b
}

func TestBroker_EnqueueLeaseAck(t *testing.T) {
	b := newTestBroker()
	ctx := context.Background()

	id, err := b.Enqueue(ctx, message.New("default", "send_email", []byte("hi")), nil)
	if err != nil {
		t.Fatal(err)
	}

	leased, err := b.Lease(ctx, "default", "worker-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(leased) != 1 || leased[0].Id != id {
		t.Fatalf("expected to lease the enqueued job, got %+v", leased)
	}

	if err := b.Ack(ctx, id); err != nil {
		t.Fatal(err)
	}

	stats, err := b.Stats(ctx, "default")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Succeeded != 1 {
		t.Fatalf("expected 1 succeeded job, got %+v", stats)
	}
}

func TestBroker_Enqueue_UnknownQueue(t *testing.T) {
	b := newTestBroker()
	_, err := b.Enqueue(context.Background(), message.New("missing", "k", nil), nil)
	if err != errs.ErrQueueNotFound {
		t.Fatalf("expected ErrQueueNotFound, got %v", err)
	}
}

func TestBroker_Enqueue_PausedQueueRejected(t *testing.T) {
	b := newTestBroker()
	if err := b.Pause("default"); err != nil {
		t.Fatal(err)
	}
	_, err := b.Enqueue(context.Background(), message.New("default", "k", nil), nil)
	if err != errs.ErrQueuePaused {
		t.Fatalf("expected ErrQueuePaused, got %v", err)
	}
	if err := b.Resume("default"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Enqueue(context.Background(), message.New("default", "k", nil), nil); err != nil {
		t.Fatalf("expected enqueue to succeed after resume, got %v", err)
	}
}

func TestBroker_Lease_RespectsMaxConcurrency(t *testing.T) {
	b := broker.New(broker.Config{Store: memory.New()})
	b.RegisterQueue(queue.Queue{Name: "default", MaxConcurrency: 1, VisibilityTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := b.Enqueue(ctx, message.New("default", "k", nil), nil); err != nil {
			t.Fatal(err)
		}
	}

	first, err := b.Lease(ctx, "default", "w1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatalf("expected max_concurrency to cap the batch at 1, got %d", len(first))
	}

	second, err := b.Lease(ctx, "default", "w2", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Fatalf("expected no capacity left, got %d", len(second))
	}
}

func TestBroker_Nack_RetriesUntilExhaustedThenDies(t *testing.T) {
	b := broker.New(broker.Config{Store: memory.New()})
	b.RegisterPolicy("fast", retry.New(2, retry.Fixed{Delay_: time.Millisecond}, nil, nil))
	b.RegisterQueue(queue.Queue{Name: "default", MaxConcurrency: 10, VisibilityTimeout: time.Second})
	ctx := context.Background()

	msg := message.New("default", "k", nil)
	msg.RetryPolicyRef = "fast"
	id, err := b.Enqueue(ctx, msg, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Job's MaxAttempts comes from the policy (2); two failed attempts
	// exhaust the budget and it should be deadlettered.
	for i := 0; i < 2; i++ {
		leased, err := b.Lease(ctx, "default", "w", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(leased) != 1 {
			t.Fatalf("attempt %d: expected 1 leased job, got %d", i, len(leased))
		}
		if err := b.Nack(ctx, id, "500", "boom"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	stats, err := b.Stats(ctx, "default")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Dead != 1 {
		t.Fatalf("expected job to be deadlettered after exhausting retries, got %+v", stats)
	}
}

func TestBroker_Nack_NonRetryableErrorDiesImmediately(t *testing.T) {
	b := broker.New(broker.Config{Store: memory.New()})
	b.RegisterPolicy("strict", retry.New(5, retry.Fixed{Delay_: time.Millisecond}, nil, []string{"400"}))
	b.RegisterQueue(queue.Queue{Name: "default", MaxConcurrency: 10, VisibilityTimeout: time.Second})
	ctx := context.Background()

	msg := message.New("default", "k", nil)
	msg.RetryPolicyRef = "strict"
	id, err := b.Enqueue(ctx, msg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Lease(ctx, "default", "w", 10); err != nil {
		t.Fatal(err)
	}
	if err := b.Nack(ctx, id, "400", "bad request"); err != nil {
		t.Fatal(err)
	}

	stats, err := b.Stats(ctx, "default")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Dead != 1 {
		t.Fatalf("expected non-retryable error code to deadletter immediately, got %+v", stats)
	}
}

func TestBroker_Ack_WrongStateFails(t *testing.T) {
	b := newTestBroker()
	ctx := context.Background()
	id, err := b.Enqueue(ctx, message.New("default", "k", nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Ack(ctx, id); err != errs.ErrInvalidState {
		t.Fatalf("expected ErrInvalidState acking a Pending job, got %v", err)
	}
}

func TestBroker_Extend(t *testing.T) {
	b := newTestBroker()
	ctx := context.Background()
	id, err := b.Enqueue(ctx, message.New("default", "k", nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Lease(ctx, "default", "w", 10); err != nil {
		t.Fatal(err)
	}
	if err := b.Extend(ctx, id, 5*time.Second); err != nil {
		t.Fatal(err)
	}
}

func TestBroker_VisibilityReclaim(t *testing.T) {
	b := broker.New(broker.Config{Store: memory.New()})
	b.RegisterQueue(queue.Queue{Name: "default", MaxConcurrency: 10, VisibilityTimeout: 20 * time.Millisecond})
	ctx := context.Background()

	if _, err := b.Enqueue(ctx, message.New("default", "k", nil), nil); err != nil {
		t.Fatal(err)
	}
	leased, err := b.Lease(ctx, "default", "w1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(leased) != 1 {
		t.Fatalf("expected 1 leased job, got %d", len(leased))
	}

	time.Sleep(40 * time.Millisecond)

	reclaimed, err := b.Lease(ctx, "default", "w2", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(reclaimed) != 1 {
		t.Fatalf("expected the expired lease to be reclaimed and re-leased, got %d", len(reclaimed))
	}
	if reclaimed[0].Attempt != 0 {
		t.Fatalf("expected attempt to remain 0 on lease-expiry reclaim, got %d", reclaimed[0].Attempt)
	}
}

func TestBroker_PurgeRemovesJobsRegardlessOfState(t *testing.T) {
	b := newTestBroker()
	ctx := context.Background()

	id, err := b.Enqueue(ctx, message.New("default", "k", nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Enqueue(ctx, message.New("default", "k2", nil), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Lease(ctx, "default", "w", 10); err != nil {
		t.Fatal(err)
	}
	if err := b.Ack(ctx, id); err != nil {
		t.Fatal(err)
	}

	// One job is Succeeded (terminal), the other is still Leased
	// (in-flight); Purge must remove both.
	n, err := b.Purge(ctx, "default")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected both jobs purged regardless of state, got %d", n)
	}

	stats, err := b.Stats(ctx, "default")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pending+stats.Leased+stats.Succeeded+stats.Dead != 0 {
		t.Fatalf("expected purge(q) to leave the queue empty, got %+v", stats)
	}
}

func TestBroker_PurgeThenEnqueueLeavesQueueWithOnlyNewJob(t *testing.T) {
	b := newTestBroker()
	ctx := context.Background()

	if _, err := b.Enqueue(ctx, message.New("default", "k", nil), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Purge(ctx, "default"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Enqueue(ctx, message.New("default", "k2", nil), nil); err != nil {
		t.Fatal(err)
	}
	n, err := b.Purge(ctx, "default")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected purge(q); enqueue(m); purge(q) to remove exactly the new job, got %d", n)
	}
}
