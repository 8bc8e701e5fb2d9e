package sql_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"github.com/vqmcore/queuecore/message"
	"github.com/vqmcore/queuecore/ports"
	"github.com/vqmcore/queuecore/queue"
	qsql "github.com/vqmcore/queuecore/store/sql"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := qsql.InitDB(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	return db
}

func newTestJob(q, kind string) *queue.Job {
	now := time.Now()
	j := &queue.Job{
		Message:     *message.New(q, kind, []byte("payload")),
		MaxAttempts: 3,
		VisibleAt:   now,
		State:       queue.Pending,
		UpdatedAt:   now,
	}
	j.Id = uuid.New()
	return j
}

func TestStore_InsertAndLoad(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	job := newTestJob("default", "send_email")
	if err := store.Insert(ctx, job); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load(ctx, job.Id)
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil || loaded.Kind != "send_email" {
		t.Fatalf("expected loaded job, got %+v", loaded)
	}
}

func TestStore_ListReady_OrdersByPriorityThenVisibleAt(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()
	now := time.Now()

	low := newTestJob("default", "a")
	low.Priority = 5
	low.VisibleAt = now

	high := newTestJob("default", "b")
	high.Priority = 1
	high.VisibleAt = now

	for _, j := range []*queue.Job{low, high} {
		if err := store.Insert(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	ready, err := store.ListReady(ctx, "default", 10, now.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 2 {
		t.Fatalf("expected 2 ready jobs, got %d", len(ready))
	}
	if ready[0].Id != high.Id {
		t.Errorf("expected higher-priority (lower number) job first, got %s", ready[0].Kind)
	}
}

func TestStore_UpdateState_CompareAndSwap(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	job := newTestJob("default", "a")
	if err := store.Insert(ctx, job); err != nil {
		t.Fatal(err)
	}

	leaseUntil := time.Now().Add(30 * time.Second)
	updated, err := store.UpdateState(ctx, job.Id, queue.Pending, queue.Leased, ports.StatePatch{
		Attempt:    1,
		LeaseUntil: &leaseUntil,
		UpdatedAt:  time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.State != queue.Leased || updated.Attempt != 1 {
		t.Fatalf("unexpected state after transition: %+v", updated)
	}

	// Wrong `from` state must fail without mutating the row.
	_, err = store.UpdateState(ctx, job.Id, queue.Pending, queue.Succeeded, ports.StatePatch{UpdatedAt: time.Now()})
	if err == nil {
		t.Fatal("expected compare-and-swap failure on stale from-state")
	}
}

func TestStore_ReclaimExpiredLeases(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	job := newTestJob("default", "a")
	if err := store.Insert(ctx, job); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Second)
	_, err := store.UpdateState(ctx, job.Id, queue.Pending, queue.Leased, ports.StatePatch{
		Attempt:    1,
		LeaseUntil: &past,
		UpdatedAt:  time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := store.ReclaimExpiredLeases(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reclaimed lease, got %d", n)
	}

	loaded, err := store.Load(ctx, job.Id)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.State != queue.Pending {
		t.Errorf("expected reclaimed job back in Pending, got %s", loaded.State)
	}
}

func TestStore_MoveToDLQAndPurge(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	job := newTestJob("default", "a")
	if err := store.Insert(ctx, job); err != nil {
		t.Fatal(err)
	}
	if err := store.MoveToDLQ(ctx, job.Id, "default.dlq"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpdateState(ctx, job.Id, queue.Pending, queue.Dead, ports.StatePatch{UpdatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	n, err := store.Purge(ctx, "default.dlq")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged job, got %d", n)
	}
}

func TestStore_Stats(t *testing.T) {
	db := newTestDB(t)
	store := qsql.NewStore(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Insert(ctx, newTestJob("default", "a")); err != nil {
			t.Fatal(err)
		}
	}
	stats, err := store.Stats(ctx, "default")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pending != 3 {
		t.Errorf("expected 3 pending, got %d", stats.Pending)
	}
}
