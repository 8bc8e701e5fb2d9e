// Package sql implements ports.MessageStore on top of
// github.com/uptrace/bun, compatible with SQLite, PostgreSQL, and other
// bun-supported dialects.
//
// # Concurrency model
//
// ListReady and ReclaimExpiredLeases are implemented as a single atomic
// UPDATE ... RETURNING statement to avoid a race between selecting
// eligible rows and transitioning their state; UpdateState performs a
// compare-and-swap against the job's current state so concurrent
// lease/ack/nack calls from different workers never double-apply a
// transition.
//
// # Schema
//
// InitDB creates the jobs table and its (queue, state, priority,
// visible_at) / (queue, state, lease_until) / (queue, state, updated_at)
// indexes inside a single transaction. SQLite users are strongly
// encouraged to enable WAL mode and configure an appropriate
// busy_timeout.
package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/vqmcore/queuecore/errs"
	"github.com/vqmcore/queuecore/ports"
	"github.com/vqmcore/queuecore/queue"
)

// Store implements ports.MessageStore using a bun.DB.
type Store struct {
	db *bun.DB
}

// NewStore wraps an already-configured, connected *bun.DB. Callers must
// run InitDB before using Store.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, j *queue.Job) error {
	model := toModel(j)
	_, err := s.db.NewInsert().Model(model).Exec(ctx)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

// ListReady returns up to limit Pending jobs eligible for lease, ordered
// by (priority, visible_at, id) per the broker's lease ordering
// contract. It does not itself transition state; the broker issues a
// follow-up UpdateState per leased job.
func (s *Store) ListReady(ctx context.Context, queueName string, limit int, now time.Time) ([]*queue.Job, error) {
	var models []*jobModel
	err := s.db.NewSelect().
		Model(&models).
		Where("queue = ?", queueName).
		Where("state = ?", queue.Pending).
		Where("visible_at <= ?", now).
		Order("priority ASC", "visible_at ASC", "id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing ready jobs: %w", err)
	}
	out := make([]*queue.Job, len(models))
	for i, m := range models {
		out[i] = m.toJob()
	}
	return out, nil
}

// UpdateState performs the compare-and-swap transition at the heart of
// Ack/Nack/Extend/Lease: the row must currently be in state `from`, or
// errs.ErrInvalidState is returned and nothing is changed.
func (s *Store) UpdateState(ctx context.Context, id uuid.UUID, from, to queue.State, patch ports.StatePatch) (*queue.Job, error) {
	q := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", to).
		Set("attempt = ?", patch.Attempt).
		Set("updated_at = ?", patch.UpdatedAt).
		Where("id = ?", id).
		Where("state = ?", from)

	if patch.VisibleAt != nil {
		q = q.Set("visible_at = ?", *patch.VisibleAt)
	}
	if patch.LeaseUntil != nil {
		q = q.Set("lease_until = ?", *patch.LeaseUntil)
	} else {
		q = q.Set("lease_until = NULL")
	}

	var models []*jobModel
	if err := q.Returning("*").Scan(ctx, &models); err != nil {
		return nil, fmt.Errorf("updating job state: %w", err)
	}
	if len(models) == 0 {
		return nil, errs.ErrInvalidState
	}
	return models[0].toJob(), nil
}

// ReclaimExpiredLeases transitions Leased jobs whose lease has elapsed
// back to Pending, without incrementing Attempt, as a single atomic
// UPDATE so concurrent reclaim sweeps and in-flight acks never race.
func (s *Store) ReclaimExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", queue.Pending).
		Set("lease_until = NULL").
		Set("updated_at = ?", now).
		Where("state = ?", queue.Leased).
		Where("lease_until < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("reclaiming expired leases: %w", err)
	}
	return getAffected(res), nil
}

// MoveToDLQ rewrites a job's queue in place, preserving identity and
// payload; callers pair this with a Dead transition via UpdateState.
func (s *Store) MoveToDLQ(ctx context.Context, id uuid.UUID, dlqName string) error {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("queue = ?", dlqName).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("moving job to dlq: %w", err)
	}
	if !isAffected(res) {
		return errs.ErrNotFound
	}
	return nil
}

// Purge deletes every job in queueName, whatever its state.
func (s *Store) Purge(ctx context.Context, queueName string) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*jobModel)(nil)).
		Where("queue = ?", queueName).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("purging queue: %w", err)
	}
	return getAffected(res), nil
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*queue.Job, error) {
	var m jobModel
	err := s.db.NewSelect().Model(&m).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading job: %w", err)
	}
	return m.toJob(), nil
}

// List returns up to limit jobs in queueName, optionally filtered by
// state (queue.Unknown means no filter). Intended for administrative and
// diagnostic use, not for lease consumption.
func (s *Store) List(ctx context.Context, queueName string, state queue.State, limit int) ([]*queue.Job, error) {
	q := s.db.NewSelect().Model((*jobModel)(nil)).Where("queue = ?", queueName)
	if state != queue.Unknown {
		q = q.Where("state = ?", state)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []*jobModel
	if err := q.Scan(ctx, &models); err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	out := make([]*queue.Job, len(models))
	for i, m := range models {
		out[i] = m.toJob()
	}
	return out, nil
}

// Stats computes a point-in-time counter snapshot for queueName.
func (s *Store) Stats(ctx context.Context, queueName string) (queue.Stats, error) {
	stats := queue.Stats{Name: queueName}
	counts := []struct {
		state queue.State
		dest  *int64
	}{
		{queue.Pending, &stats.Pending},
		{queue.Leased, &stats.Leased},
		{queue.Succeeded, &stats.Succeeded},
		{queue.Dead, &stats.Dead},
	}
	for _, c := range counts {
		n, err := s.db.NewSelect().
			Model((*jobModel)(nil)).
			Where("queue = ?", queueName).
			Where("state = ?", c.state).
			Count(ctx)
		if err != nil {
			return queue.Stats{}, fmt.Errorf("counting %s: %w", c.state, err)
		}
		*c.dest = int64(n)
	}
	stats.InFlight = stats.Leased
	return stats, nil
}

var _ ports.MessageStore = (*Store)(nil)
