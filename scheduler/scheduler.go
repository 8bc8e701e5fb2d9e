// Package scheduler dispatches recurring messages on a fixed or
// calendar-based cadence: an EverySeconds/EveryMinutes/EveryHours
// interval, a daily/weekly wall-clock time, or a 5-field cron
// expression, enqueued through a broker.Broker.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vqmcore/queuecore/broker"
	"github.com/vqmcore/queuecore/internal"
	"github.com/vqmcore/queuecore/message"
)

// ErrUnknownTask is returned by Unschedule/Enable/Disable for a name with
// no registered task.
var ErrUnknownTask = errors.New("scheduler: unknown task")

// MessageFactory produces the message to enqueue for a scheduled firing.
// Called once per dispatch while collecting due tasks, with the
// scheduler's registry lock and the task's lock held, so it must not call
// back into the Scheduler.
type MessageFactory func() *message.Message

// ScheduledTask is a named, recurring dispatch target.
type ScheduledTask struct {
	Name     string
	Queue    string
	Schedule Schedule
	Factory  MessageFactory

	mu      sync.Mutex
	enabled bool
	lastRun time.Time
	nextRun time.Time
}

func (t *ScheduledTask) snapshot() (enabled bool, nextRun time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled, t.nextRun
}

// LastRun returns the instant of the task's most recent dispatch, the
// zero time if it has never fired.
func (t *ScheduledTask) LastRun() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

// NextRun returns the task's precomputed next firing instant.
func (t *ScheduledTask) NextRun() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextRun
}

// Enabled reports whether the task currently participates in dispatch.
func (t *ScheduledTask) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// dueDispatch captures what must run for one due task, computed while the
// registry lock is held, executed after it is released.
type dueDispatch struct {
	task *ScheduledTask
	msg  *message.Message
}

// Scheduler holds a registry of ScheduledTask and periodically dispatches
// the ones that have come due to a broker.Broker.
//
// Tick never holds a task's lock across the broker.Enqueue call: due
// tasks are collected and marked with their next_run under the registry
// lock, the lock is released, and only then are they dispatched. An
// earlier version of this shape dispatched while still holding the
// lock and could deadlock; this two-phase split is deliberate and must
// not be collapsed
// back into one critical section.
type Scheduler struct {
	internal.Lifecycle

	broker        *broker.Broker
	checkInterval time.Duration
	log           *slog.Logger

	task internal.TimerTask

	mu      sync.Mutex
	tasks   map[string]*ScheduledTask
	ticking sync.Mutex // serializes Tick so two ticks never overlap
}

// Config configures a Scheduler.
type Config struct {
	// CheckInterval is how often the main loop scans for due tasks.
	// Defaults to 60s, matching the spec's default.
	CheckInterval time.Duration
	Log           *slog.Logger
}

// New constructs a Scheduler dispatching through b.
func New(b *broker.Broker, cfg Config) *Scheduler {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 60 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Scheduler{
		broker:        b,
		checkInterval: cfg.CheckInterval,
		log:           cfg.Log,
		tasks:         make(map[string]*ScheduledTask),
	}
}

// Register adds a task under name, computing its first next_run from
// schedule relative to the current time. Registering a name that already
// exists replaces the prior task.
func (s *Scheduler) Register(name, queueName string, sched Schedule, factory MessageFactory) *ScheduledTask {
	t := &ScheduledTask{
		Name:     name,
		Queue:    queueName,
		Schedule: sched,
		Factory:  factory,
		enabled:  true,
		nextRun:  sched.NextRun(time.Now()),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[name] = t
	return t
}

// Unschedule removes a task entirely.
func (s *Scheduler) Unschedule(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	delete(s.tasks, name)
	return nil
}

// Enable resumes dispatch for a previously disabled task.
func (s *Scheduler) Enable(name string) error {
	return s.setEnabled(name, true)
}

// Disable pauses dispatch for a task without removing it.
func (s *Scheduler) Disable(name string) error {
	return s.setEnabled(name, false)
}

func (s *Scheduler) setEnabled(name string, enabled bool) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
	return nil
}

// Task returns the registered task by name, if any.
func (s *Scheduler) Task(name string) (*ScheduledTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	return t, ok
}

// Start begins the periodic scan-and-dispatch loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.TryStart(); err != nil {
		return err
	}
	s.task.Start(ctx, func(ctx context.Context) { s.Tick(ctx) }, s.checkInterval)
	return nil
}

// Stop terminates the loop, waiting up to timeout for the in-flight tick
// to finish.
func (s *Scheduler) Stop(timeout time.Duration) error {
	return s.TryStop(timeout, func() internal.DoneChan { return s.task.Stop() })
}

// Tick runs one manual pass: collect all due, enabled tasks under the
// registry lock, advance their next_run, release the lock, then dispatch
// each collected message to the broker. A dispatch failure is logged and
// does not roll next_run back — at most one dispatch per tick per task.
//
// Concurrent Tick calls are serialized; a tick already in flight makes a
// second call block until the first completes, matching the "two ticks
// never run concurrently" guarantee.
func (s *Scheduler) Tick(ctx context.Context) {
	s.ticking.Lock()
	defer s.ticking.Unlock()

	now := time.Now()
	due := s.collectDue(now)

	for _, d := range due {
		if _, err := s.broker.Enqueue(ctx, d.msg, nil); err != nil {
			s.log.Error("scheduled dispatch failed", "task", d.task.Name, "queue", d.task.Queue, "error", err)
			continue
		}
		s.log.Debug("scheduled dispatch", "task", d.task.Name, "queue", d.task.Queue)
	}
}

func (s *Scheduler) collectDue(now time.Time) []dueDispatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []dueDispatch
	for _, t := range s.tasks {
		t.mu.Lock()
		if !t.enabled || t.nextRun.After(now) {
			t.mu.Unlock()
			continue
		}
		msg := t.Factory()
		msg.Queue = t.Queue
		t.lastRun = now
		t.nextRun = t.Schedule.NextRun(now)
		t.mu.Unlock()

		due = append(due, dueDispatch{task: t, msg: msg})
	}
	return due
}
