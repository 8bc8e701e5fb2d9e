// Package queue defines the stateful representation of a message within
// the broker's lifecycle, and the queue configuration entity.
//
// A Job embeds message.Message and augments it with delivery state:
// attempt counters, lease information, and scheduling timestamps. These
// fields are owned and maintained by the broker and its MessageStore, not
// by producers or handlers.
//
// Job values are typically returned by Broker.Lease and passed back for
// state transitions (Ack, Nack, Extend). Job is not intended to be
// constructed directly by user code; use message.New and Broker.Enqueue.
package queue

import (
	"time"

	"github.com/vqmcore/queuecore/message"
)

// Job is a message as tracked by the broker: the immutable envelope plus
// mutable delivery state.
//
// Mutating fields directly does not change the underlying store state;
// transitions must be performed through Broker (Ack/Nack/Extend), which
// delegates to the MessageStore port under a state-guarded update.
type Job struct {
	message.Message

	Attempt     uint32
	MaxAttempts uint32
	VisibleAt   time.Time
	LeaseUntil  *time.Time
	State       State

	UpdatedAt time.Time
}

// Ready reports whether the job is eligible for lease at instant now:
// Pending and its visibility delay has elapsed.
func (j *Job) Ready(now time.Time) bool {
	return j.State == Pending && !j.VisibleAt.After(now)
}

// LeaseExpired reports whether a Leased job's lease has elapsed as of now.
func (j *Job) LeaseExpired(now time.Time) bool {
	return j.State == Leased && j.LeaseUntil != nil && !j.LeaseUntil.After(now)
}

// RetryExhausted reports whether the job has no more attempts budgeted
// after the current one, per the §3 invariant attempt ≤ max_attempts.
func (j *Job) RetryExhausted() bool {
	return j.Attempt+1 >= j.MaxAttempts
}
