// Package audit implements a bounded in-memory security event ring
// buffer. Unlike a durable audit log, entries here are best-effort and
// process-local: capacity is fixed, oldest entries are evicted first,
// and nothing survives a restart. Grounded on the buffered-writer shape
// used elsewhere in the stack for async event recording, but backed by a
// ring instead of a database sink.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity classifies an event for min-severity filtering.
type Severity int

const (
	Low Severity = iota
	Medium
	High
	Critical
)

func (s Severity) String() string {
	switch s {
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "low"
	}
}

// Event names a recorded occurrence, e.g. "BlockedRequest", "IpBlocked",
// "LateAck", "AuthFailed".
type Event string

const (
	EventBlockedRequest Event = "BlockedRequest"
	EventIpBlocked       Event = "IpBlocked"
	EventLateAck         Event = "LateAck"
	EventAuthFailed      Event = "AuthFailed"
	EventQuotaExceeded   Event = "QuotaExceeded"
)

// Record is a single ring-buffer entry.
type Record struct {
	Id        uuid.UUID
	Timestamp time.Time
	Event     Event
	Severity  Severity
	RequestId string
	ClientIp  string
	Path      string
	Method    string
	Context   map[string]any
}

// Ring is a fixed-capacity, severity-filtered security event buffer.
// Safe for concurrent use.
type Ring struct {
	mu          sync.Mutex
	capacity    int
	minSeverity Severity
	buf         []Record
	next        int // write cursor; buf wraps once full
	size        int // number of valid entries, ≤ capacity
	seq         uint64
}

const DefaultCapacity = 10000

// NewRing constructs a Ring. capacity ≤ 0 uses DefaultCapacity.
func NewRing(capacity int, minSeverity Severity) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		capacity:    capacity,
		minSeverity: minSeverity,
		buf:         make([]Record, capacity),
	}
}

// Record appends an event, dropping it silently if below minSeverity.
func (r *Ring) Record(ctx context.Context, rec Record) {
	if rec.Severity < r.minSeverity {
		return
	}
	if rec.Id == uuid.Nil {
		if id, err := uuid.NewV7(); err == nil {
			rec.Id = id
		} else {
			rec.Id = uuid.New()
		}
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = rec
	r.next = (r.next + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
	r.seq++
}

// snapshot returns entries oldest-to-newest under lock.
func (r *Ring) snapshot() []Record {
	out := make([]Record, r.size)
	start := r.next - r.size
	if start < 0 {
		start += r.capacity
	}
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(start+i)%r.capacity]
	}
	return out
}

// GetEvents returns up to limit most-recent entries, newest first.
// limit ≤ 0 returns all buffered entries.
func (r *Ring) GetEvents(limit int) []Record {
	r.mu.Lock()
	all := r.snapshot()
	r.mu.Unlock()

	reversed := make([]Record, len(all))
	for i, rec := range all {
		reversed[len(all)-1-i] = rec
	}
	if limit > 0 && limit < len(reversed) {
		reversed = reversed[:limit]
	}
	return reversed
}

func (r *Ring) GetEventsByType(event Event) []Record {
	r.mu.Lock()
	all := r.snapshot()
	r.mu.Unlock()
	var out []Record
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Event == event {
			out = append(out, all[i])
		}
	}
	return out
}

func (r *Ring) GetEventsBySeverity(min Severity) []Record {
	r.mu.Lock()
	all := r.snapshot()
	r.mu.Unlock()
	var out []Record
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Severity >= min {
			out = append(out, all[i])
		}
	}
	return out
}

func (r *Ring) GetEventsByIp(ip string) []Record {
	r.mu.Lock()
	all := r.snapshot()
	r.mu.Unlock()
	var out []Record
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].ClientIp == ip {
			out = append(out, all[i])
		}
	}
	return out
}

func (r *Ring) CountEventsSince(since time.Time) int {
	r.mu.Lock()
	all := r.snapshot()
	r.mu.Unlock()
	count := 0
	for _, rec := range all {
		if rec.Timestamp.After(since) {
			count++
		}
	}
	return count
}

// ExportJSON serializes every buffered entry, oldest first.
func (r *Ring) ExportJSON() ([]byte, error) {
	r.mu.Lock()
	all := r.snapshot()
	r.mu.Unlock()
	return json.Marshal(all)
}

// Clear discards all buffered entries.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = 0
	r.size = 0
}
