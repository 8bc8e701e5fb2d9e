// Package broker implements the queue engine: enqueue, lease, ack, nack,
// and the administrative operations (purge, pause, resume, stats) that
// sit on top of a ports.MessageStore.
//
// Broker composes the cross-cutting concerns named in the data-flow
// overview — encryption, tenant quota gating, and audit logging — as
// optional dependencies: a nil crypt.EncryptionService, tenant.Gate, or
// audit.Ring simply disables that concern rather than requiring a stub.
// Circuit breaking and rate limiting are owned by the worker pool, not
// the broker, since they protect handler invocation rather than storage.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vqmcore/queuecore/audit"
	"github.com/vqmcore/queuecore/clock"
	"github.com/vqmcore/queuecore/crypt"
	"github.com/vqmcore/queuecore/errs"
	"github.com/vqmcore/queuecore/message"
	"github.com/vqmcore/queuecore/metrics"
	"github.com/vqmcore/queuecore/ports"
	"github.com/vqmcore/queuecore/queue"
	"github.com/vqmcore/queuecore/retry"
	"github.com/vqmcore/queuecore/tenant"
)

// DefaultMaxAttempts is assigned to a job when neither its retry policy
// reference resolves nor a default policy is configured.
const DefaultMaxAttempts = 5

// Config bundles a Broker's dependencies. Store is the only required
// field; the rest default to no-ops/disabled when left zero.
type Config struct {
	Store         ports.MessageStore
	Clock         ports.Clock
	IdGen         ports.IdGen
	Metrics       ports.Metrics
	Encryption    *crypt.EncryptionService
	Gate          *tenant.Gate
	Audit         *audit.Ring
	DefaultPolicy *retry.Policy
}

type queueState struct {
	mu  sync.Mutex
	cfg queue.Queue
}

// Broker is the queue engine described in the overview's data-flow: the
// single point producers and the scheduler enqueue through, and the
// worker pool leases from.
type Broker struct {
	store         ports.MessageStore
	clock         ports.Clock
	idgen         ports.IdGen
	metrics       ports.Metrics
	crypto        *crypt.EncryptionService
	gate          *tenant.Gate
	auditRing     *audit.Ring
	defaultPolicy *retry.Policy

	mu       sync.RWMutex
	queues   map[string]*queueState
	policies map[string]*retry.Policy
}

// New constructs a Broker. cfg.Store must be non-nil.
func New(cfg Config) *Broker {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.IdGen == nil {
		cfg.IdGen = clock.UUIDGen{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	if cfg.DefaultPolicy == nil {
		cfg.DefaultPolicy = retry.New(DefaultMaxAttempts, retry.ExponentialBackoff{
			Base:       time.Second,
			Cap:        time.Minute,
			Multiplier: 2,
		}, nil, nil)
	}
	return &Broker{
		store:         cfg.Store,
		clock:         cfg.Clock,
		idgen:         cfg.IdGen,
		metrics:       cfg.Metrics,
		crypto:        cfg.Encryption,
		gate:          cfg.Gate,
		auditRing:     cfg.Audit,
		defaultPolicy: cfg.DefaultPolicy,
		queues:        make(map[string]*queueState),
		policies:      make(map[string]*retry.Policy),
	}
}

// RegisterQueue adds or replaces a queue's configuration.
func (b *Broker) RegisterQueue(cfg queue.Queue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues[cfg.Name] = &queueState{cfg: cfg}
}

// RegisterPolicy names a retry policy so messages can reference it via
// RetryPolicyRef.
func (b *Broker) RegisterPolicy(name string, p *retry.Policy) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.policies[name] = p
}

func (b *Broker) queueByName(name string) (*queueState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	qs, ok := b.queues[name]
	return qs, ok
}

// QueueConfig returns a copy of a registered queue's configuration, for
// callers (notably the worker pool) that need its visibility timeout or
// rate-limit tier without reaching into Broker internals.
func (b *Broker) QueueConfig(name string) (queue.Queue, bool) {
	qs, ok := b.queueByName(name)
	if !ok {
		return queue.Queue{}, false
	}
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return qs.cfg, true
}

func (b *Broker) policyFor(ref string) *retry.Policy {
	if ref != "" {
		b.mu.RLock()
		p, ok := b.policies[ref]
		b.mu.RUnlock()
		if ok {
			return p
		}
	}
	return b.defaultPolicy
}

func (b *Broker) recordAudit(ctx context.Context, event audit.Event, sev audit.Severity, details map[string]any) {
	if b.auditRing == nil {
		return
	}
	b.auditRing.Record(ctx, audit.Record{
		Event:    event,
		Severity: sev,
		Context:  details,
	})
}

type payloadEnvelope struct {
	Ciphertext []byte `json:"ciphertext"`
	KeyId      string `json:"key_id"`
	Algorithm  string `json:"algorithm"`
	Iv         []byte `json:"iv"`
}

func (b *Broker) sealPayload(ctx context.Context, payload []byte) ([]byte, error) {
	data, err := b.crypto.Encrypt(ctx, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(payloadEnvelope{
		Ciphertext: data.Ciphertext,
		KeyId:      data.KeyId,
		Algorithm:  string(data.Algorithm),
		Iv:         data.Iv,
	})
}

// OpenPayload reverses sealPayload, for callers (typically handlers) that
// need the plaintext of an encrypted message.
func (b *Broker) OpenPayload(ctx context.Context, sealed []byte) ([]byte, error) {
	if b.crypto == nil {
		return nil, errs.New(errs.KindEncryptionFailed, "no encryption service configured")
	}
	var env payloadEnvelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, errs.Wrap(errs.KindEncryptionFailed, "parsing payload envelope", err)
	}
	return b.crypto.Decrypt(ctx, crypt.EncryptedData{
		Ciphertext: env.Ciphertext,
		KeyId:      env.KeyId,
		Algorithm:  crypt.Algorithm(env.Algorithm),
		Iv:         env.Iv,
	})
}

// Enqueue validates, optionally encrypts, and durably inserts msg. t is
// the producer's tenant record; pass nil for system-internal enqueues
// (e.g. the scheduler) that are not tenant-scoped.
func (b *Broker) Enqueue(ctx context.Context, msg *message.Message, t *tenant.Tenant) (uuid.UUID, error) {
	if msg.Id == uuid.Nil {
		msg.Id = b.idgen.Next()
	}
	if err := msg.Validate(); err != nil {
		return uuid.Nil, errs.Wrap(errs.KindValidation, "invalid message", err)
	}

	qs, ok := b.queueByName(msg.Queue)
	if !ok {
		return uuid.Nil, errs.ErrQueueNotFound
	}

	now := b.clock.Now()

	qs.mu.Lock()
	cfg := qs.cfg
	qs.mu.Unlock()
	if cfg.Paused {
		return uuid.Nil, errs.ErrQueuePaused
	}

	if b.gate != nil && t != nil {
		if err := b.gate.CheckEnqueueQuota(ctx, t, now); err != nil {
			b.recordAudit(ctx, audit.EventBlockedRequest, audit.Medium, map[string]any{
				"tenant_id": t.Id.String(),
				"queue":     msg.Queue,
				"error":     err.Error(),
			})
			return uuid.Nil, err
		}
	}

	payload := msg.Payload
	if cfg.EncryptionRequired {
		if b.crypto == nil {
			return uuid.Nil, errs.New(errs.KindEncryptionFailed, "queue requires encryption but no encryption service is configured")
		}
		sealed, err := b.sealPayload(ctx, payload)
		if err != nil {
			return uuid.Nil, err
		}
		payload = sealed
	}

	maxAttempts := b.policyFor(msg.RetryPolicyRef).MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}

	j := &queue.Job{
		Message:     *msg,
		MaxAttempts: maxAttempts,
		VisibleAt:   now,
		State:       queue.Pending,
		UpdatedAt:   now,
	}
	j.Payload = payload

	if err := b.store.Insert(ctx, j); err != nil {
		return uuid.Nil, fmt.Errorf("enqueueing job: %w", err)
	}

	if b.gate != nil && t != nil {
		if err := b.gate.RecordEnqueue(ctx, t.Id); err != nil {
			return j.Id, err
		}
	}

	b.metrics.RecordEvent("broker.enqueue", map[string]string{"queue": msg.Queue}, 1)
	return j.Id, nil
}

// Lease returns up to maxBatch Pending messages eligible for lease in
// queueName, transitioning each to Leased. Backpressure from the queue's
// max_concurrency may return fewer than maxBatch, including zero; this is
// not an error.
func (b *Broker) Lease(ctx context.Context, queueName, workerId string, maxBatch int) ([]*queue.Job, error) {
	qs, ok := b.queueByName(queueName)
	if !ok {
		return nil, errs.ErrQueueNotFound
	}

	qs.mu.Lock()
	defer qs.mu.Unlock()
	cfg := qs.cfg
	if cfg.Paused {
		return nil, nil
	}

	now := b.clock.Now()
	if _, err := b.store.ReclaimExpiredLeases(ctx, now); err != nil {
		return nil, fmt.Errorf("reclaiming expired leases: %w", err)
	}

	stats, err := b.store.Stats(ctx, queueName)
	if err != nil {
		return nil, fmt.Errorf("reading queue stats: %w", err)
	}
	capacity := cfg.MaxConcurrency - int(stats.Leased)
	if capacity <= 0 {
		return nil, nil
	}
	batch := maxBatch
	if capacity < batch {
		batch = capacity
	}
	if batch <= 0 {
		return nil, nil
	}

	ready, err := b.store.ListReady(ctx, queueName, batch, now)
	if err != nil {
		return nil, fmt.Errorf("listing ready jobs: %w", err)
	}

	leaseUntil := now.Add(cfg.VisibilityTimeout)
	leased := make([]*queue.Job, 0, len(ready))
	for _, j := range ready {
		updated, err := b.store.UpdateState(ctx, j.Id, queue.Pending, queue.Leased, ports.StatePatch{
			Attempt:    j.Attempt,
			LeaseUntil: &leaseUntil,
			UpdatedAt:  now,
		})
		if err != nil {
			if errors.Is(err, errs.ErrInvalidState) {
				continue // raced with a concurrent lease or reclaim
			}
			return nil, fmt.Errorf("leasing job %s: %w", j.Id, err)
		}
		leased = append(leased, updated)
	}

	b.metrics.RecordEvent("broker.lease", map[string]string{"queue": queueName, "worker": workerId}, float64(len(leased)))
	return leased, nil
}

// Ack marks a Leased message Succeeded. A lease that has logically
// expired (lease_until already elapsed) but has not yet been reclaimed is
// still accepted; the broker records a LateAck audit entry instead of
// rejecting it.
func (b *Broker) Ack(ctx context.Context, id uuid.UUID) error {
	j, err := b.store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", id, err)
	}
	if j == nil {
		return errs.ErrNotFound
	}
	if j.State != queue.Leased {
		return errs.ErrInvalidState
	}

	now := b.clock.Now()
	late := j.LeaseUntil != nil && j.LeaseUntil.Before(now)

	_, err = b.store.UpdateState(ctx, id, queue.Leased, queue.Succeeded, ports.StatePatch{
		Attempt:   j.Attempt,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("acking job %s: %w", id, err)
	}

	if late {
		b.recordAudit(ctx, audit.EventLateAck, audit.Low, map[string]any{
			"job_id":    id.String(),
			"tenant_id": j.TenantId,
		})
	}
	b.metrics.RecordEvent("broker.ack", map[string]string{"queue": j.Queue}, 1)
	return nil
}

// Nack reports a failed attempt. If the job's retry budget is exhausted
// or errorCode is non-retryable, it transitions to Dead (copying to the
// queue's DLQ if configured); otherwise it is rescheduled to Pending
// after a delay computed by the job's retry policy.
func (b *Broker) Nack(ctx context.Context, id uuid.UUID, errorCode, errorMessage string) error {
	j, err := b.store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", id, err)
	}
	if j == nil {
		return errs.ErrNotFound
	}
	if j.State != queue.Leased {
		return errs.ErrInvalidState
	}

	now := b.clock.Now()
	policy := b.policyFor(j.RetryPolicyRef)
	final := j.RetryExhausted() || !policy.IsRetryableError(errorCode)

	if final {
		qs, ok := b.queueByName(j.Queue)
		if ok {
			qs.mu.Lock()
			dlq := qs.cfg.DlqName
			qs.mu.Unlock()
			if dlq != "" {
				if err := b.store.MoveToDLQ(ctx, id, dlq); err != nil {
					return fmt.Errorf("moving job %s to dlq: %w", id, err)
				}
			}
		}
		if _, err := b.store.UpdateState(ctx, id, queue.Leased, queue.Dead, ports.StatePatch{
			Attempt:   j.Attempt,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("deadlettering job %s: %w", id, err)
		}
		b.metrics.RecordEvent("broker.nack.dead", map[string]string{"queue": j.Queue, "error_code": errorCode}, 1)
		return nil
	}

	delay := policy.NextDelay(j.Attempt)
	visibleAt := now.Add(delay)
	if _, err := b.store.UpdateState(ctx, id, queue.Leased, queue.Pending, ports.StatePatch{
		Attempt:   j.Attempt + 1,
		VisibleAt: &visibleAt,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("rescheduling job %s: %w", id, err)
	}
	b.metrics.RecordEvent("broker.nack.retry", map[string]string{"queue": j.Queue, "error_code": errorCode}, 1)
	_ = errorMessage
	return nil
}

// Extend lengthens a Leased message's lease by dur. It fails if the
// lease has already elapsed; workers racing a reclaim sweep should treat
// that failure as having lost the job.
func (b *Broker) Extend(ctx context.Context, id uuid.UUID, dur time.Duration) error {
	j, err := b.store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", id, err)
	}
	if j == nil {
		return errs.ErrNotFound
	}
	now := b.clock.Now()
	if j.State != queue.Leased {
		return errs.ErrInvalidState
	}
	if j.LeaseUntil == nil || !j.LeaseUntil.After(now) {
		return errs.New(errs.KindInvalidState, "lease already expired")
	}
	newLeaseUntil := j.LeaseUntil.Add(dur)
	_, err = b.store.UpdateState(ctx, id, queue.Leased, queue.Leased, ports.StatePatch{
		Attempt:    j.Attempt,
		LeaseUntil: &newLeaseUntil,
		UpdatedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("extending job %s: %w", id, err)
	}
	return nil
}

// Purge deletes every job in queueName, whatever its state.
func (b *Broker) Purge(ctx context.Context, queueName string) (int64, error) {
	if _, ok := b.queueByName(queueName); !ok {
		return 0, errs.ErrQueueNotFound
	}
	return b.store.Purge(ctx, queueName)
}

// Pause marks a queue paused: Lease returns no messages and Enqueue is
// rejected until Resume.
func (b *Broker) Pause(queueName string) error {
	qs, ok := b.queueByName(queueName)
	if !ok {
		return errs.ErrQueueNotFound
	}
	qs.mu.Lock()
	qs.cfg.Paused = true
	qs.mu.Unlock()
	return nil
}

// Resume clears a queue's paused flag.
func (b *Broker) Resume(queueName string) error {
	qs, ok := b.queueByName(queueName)
	if !ok {
		return errs.ErrQueueNotFound
	}
	qs.mu.Lock()
	qs.cfg.Paused = false
	qs.mu.Unlock()
	return nil
}

// Stats returns a point-in-time snapshot of queueName's counters.
func (b *Broker) Stats(ctx context.Context, queueName string) (queue.Stats, error) {
	if _, ok := b.queueByName(queueName); !ok {
		return queue.Stats{}, errs.ErrQueueNotFound
	}
	return b.store.Stats(ctx, queueName)
}
