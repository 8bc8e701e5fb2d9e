package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vqmcore/queuecore/broker"
	"github.com/vqmcore/queuecore/message"
	"github.com/vqmcore/queuecore/queue"
	"github.com/vqmcore/queuecore/scheduler"
	"github.com/vqmcore/queuecore/store/memory"
)

func newTestBroker() *broker.Broker {
	b := broker.New(broker.Config{Store: memory.New()})
	b.RegisterQueue(queue.Queue{Name: "digest", MaxConcurrency: 10, VisibilityTimeout: time.Minute})
	return b
}

func TestScheduler_TickDispatchesDueTask(t *testing.T) {
	b := newTestBroker()
	s := scheduler.New(b, scheduler.Config{CheckInterval: time.Hour})

	s.Register("send-digest", "digest", scheduler.EverySeconds{N: 0}, func() *message.Message {
		return message.New("digest", "daily_digest", nil)
	})

	s.Tick(context.Background())

	stats, err := b.Stats(context.Background(), "digest")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pending != 1 {
		t.Fatalf("expected the due task to enqueue exactly one job, got %+v", stats)
	}
}

func TestScheduler_TickDispatchesOnceEvenWithZeroInterval(t *testing.T) {
	b := newTestBroker()
	s := scheduler.New(b, scheduler.Config{CheckInterval: time.Hour})

	s.Register("busy", "digest", scheduler.EverySeconds{N: 0}, func() *message.Message {
		return message.New("digest", "k", nil)
	})

	s.Tick(context.Background())
	s.Tick(context.Background())

	stats, err := b.Stats(context.Background(), "digest")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pending != 2 {
		t.Fatalf("expected exactly one dispatch per tick, got %+v", stats)
	}
}

func TestScheduler_DisabledTaskDoesNotDispatch(t *testing.T) {
	b := newTestBroker()
	s := scheduler.New(b, scheduler.Config{CheckInterval: time.Hour})

	s.Register("maybe", "digest", scheduler.EverySeconds{N: 0}, func() *message.Message {
		return message.New("digest", "k", nil)
	})
	if err := s.Disable("maybe"); err != nil {
		t.Fatal(err)
	}

	s.Tick(context.Background())

	stats, err := b.Stats(context.Background(), "digest")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pending != 0 {
		t.Fatalf("expected a disabled task not to dispatch, got %+v", stats)
	}

	if err := s.Enable("maybe"); err != nil {
		t.Fatal(err)
	}
	s.Tick(context.Background())
	stats, err = b.Stats(context.Background(), "digest")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pending != 1 {
		t.Fatalf("expected a re-enabled task to dispatch on the next tick, got %+v", stats)
	}
}

func TestScheduler_UnscheduleRemovesTask(t *testing.T) {
	b := newTestBroker()
	s := scheduler.New(b, scheduler.Config{CheckInterval: time.Hour})
	s.Register("temp", "digest", scheduler.EverySeconds{N: 0}, func() *message.Message {
		return message.New("digest", "k", nil)
	})
	if err := s.Unschedule("temp"); err != nil {
		t.Fatal(err)
	}
	if err := s.Unschedule("temp"); err == nil {
		t.Fatal("expected ErrUnknownTask for an already-removed task")
	}
	if _, ok := s.Task("temp"); ok {
		t.Fatal("expected the task to be gone")
	}
}

func TestScheduler_NotYetDueTaskIsSkipped(t *testing.T) {
	b := newTestBroker()
	s := scheduler.New(b, scheduler.Config{CheckInterval: time.Hour})
	s.Register("future", "digest", scheduler.EveryHours{N: 1}, func() *message.Message {
		return message.New("digest", "k", nil)
	})

	s.Tick(context.Background())

	stats, err := b.Stats(context.Background(), "digest")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pending != 0 {
		t.Fatalf("expected a not-yet-due task to be skipped, got %+v", stats)
	}
}

func TestScheduler_StartStopRunsLoop(t *testing.T) {
	b := newTestBroker()
	s := scheduler.New(b, scheduler.Config{CheckInterval: 10 * time.Millisecond})

	var fired atomic.Int32
	s.Register("ticking", "digest", scheduler.EverySeconds{N: 0}, func() *message.Message {
		fired.Add(1)
		return message.New("digest", "k", nil)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(80 * time.Millisecond)
	if err := s.Stop(time.Second); err != nil {
		t.Fatal(err)
	}
	if fired.Load() < 2 {
		t.Fatalf("expected at least 2 ticks to have fired, got %d", fired.Load())
	}
}
