// Package worker implements the worker pool: a set of poller goroutines
// (one per leased queue) that feed leased jobs into a fixed-size,
// bounded-queue dispatch pool, matching the decoupled pull/process shape
// the teacher's Worker used — a stuck handler cannot starve polling, and
// a burst of due jobs cannot outrun the configured concurrency.
//
// Each handler invocation is wrapped by a per-(queue,kind) circuit
// breaker and, optionally, a per-queue rate limiter, matching the
// protection order the overview's data flow describes: breaker first,
// limiter second.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vqmcore/queuecore/breaker"
	"github.com/vqmcore/queuecore/broker"
	"github.com/vqmcore/queuecore/internal"
	"github.com/vqmcore/queuecore/queue"
	"github.com/vqmcore/queuecore/ratelimit"
)

// Handler processes a single leased job. The context is canceled when the
// job's handler timeout elapses or the pool is shutting down; handlers
// must observe it at suspension points to cooperate with cancellation.
//
// Handlers are at-least-once: a job may be redelivered after a crash or a
// missed visibility deadline, so a Handler must be idempotent.
type Handler func(ctx context.Context, job *queue.Job) error

// HandlerKey identifies a registered handler by the queue and message
// kind it processes.
type HandlerKey struct {
	Queue string
	Kind  string
}

// DefaultBreakerConfig is used for any (queue, kind) pair that does not
// have an explicit breaker registered.
var DefaultBreakerConfig = breaker.CountBasedConfig{
	FailureThreshold: 5,
	SuccessThreshold: 2,
	OpenTimeout:      30 * time.Second,
}

// Config configures a Pool.
type Config struct {
	// Queues is the set of queue names this pool leases from, one poller
	// goroutine per entry.
	Queues []string
	// Slots is the number of concurrent dispatch goroutines draining the
	// internal job queue.
	Slots int
	// QueueDepth bounds how many leased-but-not-yet-dispatched jobs may sit
	// in the internal queue before a poller blocks. Defaults to Slots.
	QueueDepth int
	// LeaseBatch is the max jobs requested per Lease call.
	LeaseBatch int
	// LeasePollInterval is how often an idle poller re-leases its queue.
	LeasePollInterval time.Duration
	// VisibilityEpsilon is subtracted from a queue's visibility timeout to
	// derive the handler invocation timeout, leaving headroom for the
	// ack/nack round trip.
	VisibilityEpsilon time.Duration
	// ShutdownTimeout bounds how long Stop waits for in-flight handlers.
	ShutdownTimeout time.Duration
	Log             *slog.Logger
}

// Pool is the worker pool described in the overview: a bounded dispatch
// pool fed by per-queue pollers, reporting outcomes back to a
// broker.Broker.
//
// Pool has a strict lifecycle:
//   - Start may only be called once.
//   - Stop gracefully drains in-flight handlers up to ShutdownTimeout,
//     then force-cancels the rest.
type Pool struct {
	internal.Lifecycle

	broker          *broker.Broker
	queues          []string
	leaseBatch      int
	poll            time.Duration
	epsilon         time.Duration
	shutdownTimeout time.Duration
	log             *slog.Logger

	dispatch *internal.WorkerPool[*queue.Job]

	mu       sync.RWMutex
	handlers map[HandlerKey]Handler
	breakers map[HandlerKey]breaker.Breaker
	limiters map[string]ratelimit.Limiter

	pollCancel context.CancelFunc
	pollWg     sync.WaitGroup
}

// New constructs a Pool bound to b. Register handlers with
// RegisterHandler before calling Start.
func New(b *broker.Broker, cfg Config) *Pool {
	if cfg.Slots <= 0 {
		cfg.Slots = 1
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = cfg.Slots
	}
	if cfg.LeaseBatch <= 0 {
		cfg.LeaseBatch = 1
	}
	if cfg.LeasePollInterval == 0 {
		cfg.LeasePollInterval = 200 * time.Millisecond
	}
	if cfg.VisibilityEpsilon == 0 {
		cfg.VisibilityEpsilon = 500 * time.Millisecond
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Pool{
		broker:          b,
		queues:          cfg.Queues,
		leaseBatch:      cfg.LeaseBatch,
		poll:            cfg.LeasePollInterval,
		epsilon:         cfg.VisibilityEpsilon,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             cfg.Log,
		dispatch:        internal.NewWorkerPool[*queue.Job](cfg.Slots, cfg.QueueDepth, cfg.Log),
		handlers:        make(map[HandlerKey]Handler),
		breakers:        make(map[HandlerKey]breaker.Breaker),
		limiters:        make(map[string]ratelimit.Limiter),
	}
}

// RegisterHandler binds h to (queueName, kind).
func (p *Pool) RegisterHandler(queueName, kind string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[HandlerKey{queueName, kind}] = h
}

// RegisterBreaker overrides the default circuit breaker for (queueName,
// kind). Call before Start; a handler key with no registered breaker gets
// a default one, created on its first use.
func (p *Pool) RegisterBreaker(queueName, kind string, b breaker.Breaker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakers[HandlerKey{queueName, kind}] = b
}

// RegisterLimiter attaches a rate limiter to queueName. Every handler
// invocation for that queue consults it before running.
func (p *Pool) RegisterLimiter(queueName string, l ratelimit.Limiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limiters[queueName] = l
}

func (p *Pool) handlerFor(key HandlerKey) (Handler, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handlers[key]
	return h, ok
}

func (p *Pool) breakerFor(key HandlerKey) breaker.Breaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.breakers[key]
	if !ok {
		b = breaker.NewCountBased(DefaultBreakerConfig)
		p.breakers[key] = b
	}
	return b
}

func (p *Pool) limiterFor(queueName string) ratelimit.Limiter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.limiters[queueName]
}

// Start launches the dispatch pool and one poller goroutine per
// configured queue. Returns ErrDoubleStarted if already running.
func (p *Pool) Start(ctx context.Context) error {
	if err := p.TryStart(); err != nil {
		return err
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.pollCancel = cancel

	p.dispatch.Start(pollCtx, p.handle)

	for _, q := range p.queues {
		p.pollWg.Add(1)
		go p.poll(pollCtx, q)
	}
	return nil
}

func (p *Pool) poll(ctx context.Context, queueName string) {
	defer p.pollWg.Done()
	workerId := fmt.Sprintf("poller-%s", queueName)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		leased, err := p.broker.Lease(ctx, queueName, workerId, p.leaseBatch)
		if err != nil {
			p.log.Error("lease failed", "queue", queueName, "error", err)
			p.sleepOrDone(ctx, p.poll)
			continue
		}
		if len(leased) == 0 {
			p.sleepOrDone(ctx, p.poll)
			continue
		}
		for _, job := range leased {
			if !p.dispatch.Push(job) {
				return
			}
		}
	}
}

func (p *Pool) sleepOrDone(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (p *Pool) handle(ctx context.Context, job *queue.Job) {
	key := HandlerKey{job.Queue, job.Kind}
	h, ok := p.handlerFor(key)
	if !ok {
		p.log.Warn("no handler registered", "queue", job.Queue, "kind", job.Kind)
		if err := p.broker.Nack(ctx, job.Id, "HandlerError", "no handler registered for this (queue, kind)"); err != nil {
			p.log.Error("nack failed", "job_id", job.Id, "error", err)
		}
		return
	}

	cb := p.breakerFor(key)
	if !cb.CanExecute() {
		if err := p.broker.Nack(ctx, job.Id, "CircuitOpen", "circuit breaker open"); err != nil {
			p.log.Error("nack failed", "job_id", job.Id, "error", err)
		}
		return
	}

	if lim := p.limiterFor(job.Queue); lim != nil {
		res, err := lim.Allow(ctx, job.Queue)
		if err == nil && !res.Allowed {
			if err := p.broker.Nack(ctx, job.Id, "RateLimited", fmt.Sprintf("retry after %s", res.RetryAfter)); err != nil {
				p.log.Error("nack failed", "job_id", job.Id, "error", err)
			}
			return
		}
	}

	cfg, _ := p.broker.QueueConfig(job.Queue)
	timeout := cfg.VisibilityTimeout - p.epsilon
	if timeout <= 0 {
		timeout = cfg.VisibilityTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("handler panic: %v", r)
			}
		}()
		errCh <- h(hctx, job)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			cb.RecordSuccess()
			if err := p.broker.Ack(ctx, job.Id); err != nil {
				p.log.Error("ack failed", "job_id", job.Id, "error", err)
			}
			return
		}
		cb.RecordFailure()
		if err := p.broker.Nack(ctx, job.Id, "HandlerError", err.Error()); err != nil {
			p.log.Error("nack failed", "job_id", job.Id, "error", err)
		}
	case <-hctx.Done():
		cb.RecordFailure()
		p.log.Warn("handler did not complete before visibility timeout", "job_id", job.Id, "queue", job.Queue)
		if err := p.broker.Nack(context.Background(), job.Id, "HandlerTimeout", "handler did not complete before visibility timeout"); err != nil {
			p.log.Error("nack failed", "job_id", job.Id, "error", err)
		}
	}
}

// Stop signals every poller to stop leasing new work and waits up to
// ShutdownTimeout for in-flight handlers to finish. Returns
// ErrStopTimeout if the drain does not complete in time, ErrDoubleStopped
// if the pool is not running.
func (p *Pool) Stop(timeout time.Duration) error {
	if timeout == 0 {
		timeout = p.shutdownTimeout
	}
	return p.TryStop(timeout, func() internal.DoneChan {
		p.pollCancel()
		pollersDone := make(internal.DoneChan)
		go func() {
			p.pollWg.Wait()
			close(pollersDone)
		}()
		return internal.Combine(pollersDone, p.dispatch.Stop())
	})
}
