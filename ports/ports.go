// Package ports defines the external interfaces the core depends on but
// does not implement on its own: durable storage, key storage, time, ID
// generation, and metrics emission. Concrete adapters live in store/,
// crypt/, clock/, and metrics/.
//
// Two ports named in the distilled spec's design notes — a CSRF token
// store and a session token store — are not defined here: they belong to
// the HTTP-facing auth surface, which this core does not implement (see
// SPEC_FULL.md §6, Open Question 3). A consuming application wires those
// against its own session layer, not against this package.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vqmcore/queuecore/queue"
)

// MessageStore is the durable persistence port. Implementations must
// provide the atomicity the broker relies on: ListReady and
// ReclaimExpiredLeases race-free against concurrent Lease calls, and
// UpdateState performs a compare-and-swap on the prior state.
type MessageStore interface {
	// Insert durably records a new job in Pending state.
	Insert(ctx context.Context, j *queue.Job) error

	// ListReady returns up to limit jobs eligible for lease in a queue,
	// ordered by (priority, visible_at, id) as required by §4.2.
	ListReady(ctx context.Context, queueName string, limit int, now time.Time) ([]*queue.Job, error)

	// UpdateState performs a compare-and-swap transition: the job at id
	// must currently be in the `from` state, or ErrInvalidState-class
	// errors are returned. patch contains the fields to persist alongside
	// the new state (attempt, visible_at, lease_until, updated_at).
	UpdateState(ctx context.Context, id uuid.UUID, from, to queue.State, patch StatePatch) (*queue.Job, error)

	// ReclaimExpiredLeases transitions Leased jobs whose LeaseUntil has
	// elapsed back to Pending, without incrementing Attempt, and reports
	// how many were reclaimed.
	ReclaimExpiredLeases(ctx context.Context, now time.Time) (int64, error)

	// MoveToDLQ rewrites a job's queue to dlqName, leaving its identity
	// and payload intact, typically paired with a Dead transition.
	MoveToDLQ(ctx context.Context, id uuid.UUID, dlqName string) error

	// Purge deletes every job in a queue, whatever its state, and
	// returns the count removed.
	Purge(ctx context.Context, queueName string) (int64, error)

	// Load retrieves a single job snapshot by id, or nil if absent.
	Load(ctx context.Context, id uuid.UUID) (*queue.Job, error)

	// List returns up to limit jobs in a queue, optionally filtered by
	// state (queue.Unknown means no filter).
	List(ctx context.Context, queueName string, state queue.State, limit int) ([]*queue.Job, error)

	// Stats computes a point-in-time snapshot of a queue's counters.
	Stats(ctx context.Context, queueName string) (queue.Stats, error)
}

// StatePatch carries the field updates that accompany a state transition.
// Zero-value fields left unset are indicated via the pointer fields being
// nil; Attempt and UpdatedAt are always applied.
type StatePatch struct {
	Attempt    uint32
	VisibleAt  *time.Time
	LeaseUntil *time.Time
	UpdatedAt  time.Time
}

// KeyStore is the persistence port for encryption key material and
// metadata. The core never materializes external KMS-backed key bytes
// through this interface in production deployments; Get is expected to be
// backed by envelope-unwrapped local material or a provider stub.
type KeyStore interface {
	Put(ctx context.Context, id string, metadata KeyMetadata, material []byte) error
	Get(ctx context.Context, id string) (material []byte, metadata KeyMetadata, found bool, err error)
	List(ctx context.Context) ([]KeyMetadata, error)
	SetStatus(ctx context.Context, id string, status KeyStatus) error
}

// KeyStatus mirrors crypt.KeyStatus without importing crypt, to avoid a
// ports -> crypt -> ports cycle; crypt.KeyStatus values convert 1:1.
type KeyStatus int

const (
	KeyStatusActive KeyStatus = iota
	KeyStatusPendingRotation
	KeyStatusDisabled
	KeyStatusDestroyed
)

// KeyMetadata is the non-secret record the store tracks per key.
type KeyMetadata struct {
	Id        string
	Algorithm string
	Status    KeyStatus
	CreatedAt time.Time
	ExpiresAt *time.Time
	Version   int
}

// Clock abstracts wall and monotonic time so tests can control both.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IdGen produces time-ordered unique identifiers.
type IdGen interface {
	Next() uuid.UUID
}

// Metrics is the sink every component emits named observations to. A
// no-op implementation is the default; metrics.PrometheusSink adapts to
// github.com/prometheus/client_golang.
type Metrics interface {
	RecordEvent(name string, labels map[string]string, value float64)
}
