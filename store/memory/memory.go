// Package memory implements ports.MessageStore entirely in process
// memory, for tests and single-process deployments that don't need
// durability across restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vqmcore/queuecore/errs"
	"github.com/vqmcore/queuecore/ports"
	"github.com/vqmcore/queuecore/queue"
)

// Store implements ports.MessageStore with a mutex-protected map. All
// operations take a single lock; fine for the moderate job volumes a
// single process is expected to handle, not intended to scale the way
// store/sql does.
type Store struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*queue.Job
}

// New returns an empty Store.
func New() *Store {
	return &Store{jobs: make(map[uuid.UUID]*queue.Job)}
}

func clone(j *queue.Job) *queue.Job {
	cp := *j
	if j.LeaseUntil != nil {
		lu := *j.LeaseUntil
		cp.LeaseUntil = &lu
	}
	if j.Metadata != nil {
		cp.Metadata = make(map[string]any, len(j.Metadata))
		for k, v := range j.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

func (s *Store) Insert(ctx context.Context, j *queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.Id] = clone(j)
	return nil
}

func (s *Store) ListReady(ctx context.Context, queueName string, limit int, now time.Time) ([]*queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []*queue.Job
	for _, j := range s.jobs {
		if j.Queue != queueName || j.State != queue.Pending {
			continue
		}
		if j.VisibleAt.After(now) {
			continue
		}
		ready = append(ready, j)
	}
	sort.Slice(ready, func(a, b int) bool {
		if ready[a].Priority != ready[b].Priority {
			return ready[a].Priority < ready[b].Priority
		}
		if !ready[a].VisibleAt.Equal(ready[b].VisibleAt) {
			return ready[a].VisibleAt.Before(ready[b].VisibleAt)
		}
		return ready[a].Id.String() < ready[b].Id.String()
	})
	if limit > 0 && len(ready) > limit {
		ready = ready[:limit]
	}
	out := make([]*queue.Job, len(ready))
	for i, j := range ready {
		out[i] = clone(j)
	}
	return out, nil
}

func (s *Store) UpdateState(ctx context.Context, id uuid.UUID, from, to queue.State, patch ports.StatePatch) (*queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.State != from {
		return nil, errs.ErrInvalidState
	}
	j.State = to
	j.Attempt = patch.Attempt
	j.UpdatedAt = patch.UpdatedAt
	if patch.VisibleAt != nil {
		j.VisibleAt = *patch.VisibleAt
	}
	j.LeaseUntil = patch.LeaseUntil
	return clone(j), nil
}

func (s *Store) ReclaimExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, j := range s.jobs {
		if j.State != queue.Leased || j.LeaseUntil == nil || j.LeaseUntil.After(now) {
			continue
		}
		j.State = queue.Pending
		j.LeaseUntil = nil
		j.UpdatedAt = now
		n++
	}
	return n, nil
}

func (s *Store) MoveToDLQ(ctx context.Context, id uuid.UUID, dlqName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return errs.ErrNotFound
	}
	j.Queue = dlqName
	j.UpdatedAt = time.Now()
	return nil
}

func (s *Store) Purge(ctx context.Context, queueName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, j := range s.jobs {
		if j.Queue != queueName {
			continue
		}
		delete(s.jobs, id)
		n++
	}
	return n, nil
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return clone(j), nil
}

func (s *Store) List(ctx context.Context, queueName string, state queue.State, limit int) ([]*queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*queue.Job
	for _, j := range s.jobs {
		if j.Queue != queueName {
			continue
		}
		if state != queue.Unknown && j.State != state {
			continue
		}
		out = append(out, clone(j))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (s *Store) Stats(ctx context.Context, queueName string) (queue.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := queue.Stats{Name: queueName}
	for _, j := range s.jobs {
		if j.Queue != queueName {
			continue
		}
		switch j.State {
		case queue.Pending:
			stats.Pending++
		case queue.Leased:
			stats.Leased++
		case queue.Succeeded:
			stats.Succeeded++
		case queue.Dead:
			stats.Dead++
		}
	}
	stats.InFlight = stats.Leased
	return stats, nil
}

var _ ports.MessageStore = (*Store)(nil)
