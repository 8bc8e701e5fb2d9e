package broker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vqmcore/queuecore/internal"
	"github.com/vqmcore/queuecore/ports"
)

// ReclaimLoop periodically sweeps a ports.MessageStore for Leased
// messages whose lease has elapsed, returning them to Pending. Broker's
// own Lease call already reclaims opportunistically for the queue being
// leased; this loop gives forward progress to queues nobody is currently
// leasing from.
//
// ReclaimLoop has a strict lifecycle:
//   - Start may only be called once.
//   - Stop must be called to terminate the background sweep.
//   - Stop waits for the current sweep to finish or until the timeout
//     expires.
type ReclaimLoop struct {
	internal.Lifecycle
	store    ports.MessageStore
	task     internal.TimerTask
	log      *slog.Logger
	interval time.Duration
}

// NewReclaimLoop constructs a ReclaimLoop sweeping store every interval.
func NewReclaimLoop(store ports.MessageStore, interval time.Duration, log *slog.Logger) *ReclaimLoop {
	return &ReclaimLoop{store: store, interval: interval, log: log}
}

func (r *ReclaimLoop) sweep(ctx context.Context) {
	n, err := r.store.ReclaimExpiredLeases(ctx, time.Now())
	if err != nil {
		r.log.Error("lease reclaim sweep failed", "error", err)
		return
	}
	if n > 0 {
		r.log.Info("reclaimed expired leases", "count", n)
	}
}

// Start begins the periodic reclaim sweep. Returns ErrDoubleStarted if
// already running.
func (r *ReclaimLoop) Start(ctx context.Context) error {
	if err := r.TryStart(); err != nil {
		return err
	}
	r.task.Start(ctx, r.sweep, r.interval)
	return nil
}

// Stop terminates the sweep, waiting up to timeout for the in-flight
// sweep to finish. Returns ErrStopTimeout if it does not, ErrDoubleStopped
// if the loop was not running.
func (r *ReclaimLoop) Stop(timeout time.Duration) error {
	return r.TryStop(timeout, func() internal.DoneChan { return r.task.Stop() })
}
