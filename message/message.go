// Package message defines the transport-level envelope used throughout
// queuecore.
//
// Message represents a producer's payload together with the routing and
// scoping fields the broker needs to place it on a queue. It intentionally
// does not carry delivery state (attempt counters, leases, terminal state);
// those concerns belong to queue.Job, which wraps a Message once it enters
// the broker.
//
// A Message is designed to be:
//   - storage-agnostic
//   - lightweight
//   - safe to pass to user handlers
//
// Message does not enforce immutability. Callers should treat Message
// instances as immutable once they are submitted to a queue to avoid
// unintended data races or side effects.
package message

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// QueuePattern is the validation pattern for queue names.
var QueuePattern = regexp.MustCompile(`^[a-z0-9_.:-]{1,64}$`)

// DefaultPriority is assigned to messages that do not specify one.
const DefaultPriority = 5

// Message is the unit of work accepted by the broker.
type Message struct {
	Id       uuid.UUID `bun:"id,pk,type:uuid" validate:"required"`
	Queue    string    `bun:"queue,notnull" validate:"required,max=64"`
	Kind     string    `bun:"kind,notnull" validate:"required"`
	Payload  []byte    `bun:"payload,type:blob"`
	Priority int       `bun:"priority,notnull,default:5" validate:"gte=0,lte=9"`

	TenantId       string `bun:"tenant_id,nullzero"`
	EnqueuedBy     string `bun:"enqueued_by,nullzero"`
	TraceId        string `bun:"trace_id,nullzero"`
	RetryPolicyRef string `bun:"retry_policy_ref,nullzero"`

	// Metadata carries arbitrary structured data alongside Payload. It is
	// not interpreted by the broker.
	Metadata map[string]any `bun:"metadata,type:jsonb"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// New creates a Message with default priority and the given
// queue/kind/payload. Id is left as uuid.Nil: Broker.Enqueue assigns a
// time-ordered id on insert, so construction here never forces a random
// one that would break the lease ordering's same-timestamp tie-break.
func New(queue, kind string, payload []byte) *Message {
	return &Message{
		Queue:    queue,
		Kind:     kind,
		Payload:  payload,
		Priority: DefaultPriority,
	}
}

// Get returns the metadata value associated with the given key.
//
// If the key does not exist or Metadata is nil, Get returns nil.
func (m *Message) Get(key string) any {
	ret, ok := m.Metadata[key]
	if !ok {
		return nil
	}
	return ret
}

// Set stores the given key-value pair in the message metadata.
//
// If Metadata is nil, it is initialized automatically.
func (m *Message) Set(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// Get retrieves a metadata value associated with the given key and
// attempts to cast it to type T.
//
// If the key does not exist or the stored value is not of type T,
// Get returns the zero value of T and false.
func Get[T any](m *Message, key string) (T, bool) {
	raw, ok := m.Metadata[key]
	if !ok {
		var t T
		return t, false
	}
	ret, ok := raw.(T)
	if !ok {
		var t T
		return t, false
	}
	return ret, true
}

// Set stores the given key-value pair in the message metadata using a
// type-safe generic helper.
func Set[T any](m *Message, key string, value T) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}
