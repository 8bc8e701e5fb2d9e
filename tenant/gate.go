package tenant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vqmcore/queuecore/errs"
	"github.com/vqmcore/queuecore/ratelimit"
)

// UsageProvider supplies a tenant's durable usage counters (users,
// storage, posts, ...); enqueue-rate is tracked separately, as soft
// fixed-window state, since it is the one quota dimension the core
// itself produces on every request.
type UsageProvider interface {
	Usage(ctx context.Context, tenantId uuid.UUID) (Usage, error)
}

// Gate is the broker's per-enqueue checkpoint: tenant access and quota
// enforcement.
type Gate struct {
	usage   UsageProvider
	rate    ratelimit.Store
	enforce bool
}

func NewGate(usage UsageProvider, rate ratelimit.Store, enforceQuotas bool) *Gate {
	return &Gate{usage: usage, rate: rate, enforce: enforceQuotas}
}

func enqueueCounterKey(tenantId uuid.UUID) string {
	return fmt.Sprintf("tenant:%s:enqueues", tenantId)
}

// CheckAccess rejects tenants that cannot access the platform at all,
// independent of quota enforcement.
func (g *Gate) CheckAccess(t *Tenant, now time.Time) error {
	if !t.CanAccess(now) {
		return errs.New(errs.KindTenantSuspended, fmt.Sprintf("tenant %s cannot access (status=%s)", t.Slug, t.Status))
	}
	return nil
}

// CheckEnqueueQuota verifies access and quota before an enqueue, folding
// in the live per-minute enqueue count. It does not itself increment the
// counter — call RecordEnqueue after a successful insert.
func (g *Gate) CheckEnqueueQuota(ctx context.Context, t *Tenant, now time.Time) error {
	if err := g.CheckAccess(t, now); err != nil {
		return err
	}
	if !g.enforce {
		return nil
	}
	usage, err := g.usage.Usage(ctx, t.Id)
	if err != nil {
		return errs.Wrap(errs.KindQuotaExceeded, "loading tenant usage", err)
	}
	count, _, found, err := g.rate.PeekFixed(ctx, enqueueCounterKey(t.Id))
	if err != nil {
		return errs.Wrap(errs.KindQuotaExceeded, "reading enqueue rate", err)
	}
	if found {
		usage.EnqueuesThisMinute = uint32(count)
	}
	if !usage.IsWithinQuota(t.Quotas) {
		violations := usage.QuotaViolations(t.Quotas)
		return errs.New(errs.KindQuotaExceeded, fmt.Sprintf("tenant %s over quota: %v", t.Slug, violations)).
			WithDetails(map[string]any{"violations": violations})
	}
	return nil
}

// RecordEnqueue increments the tenant's per-minute enqueue counter. Call
// this after CheckEnqueueQuota passes and the message is durably queued.
func (g *Gate) RecordEnqueue(ctx context.Context, tenantId uuid.UUID) error {
	_, _, err := g.rate.Increment(ctx, enqueueCounterKey(tenantId), time.Minute)
	if err != nil {
		return errs.Wrap(errs.KindQuotaExceeded, "recording enqueue", err)
	}
	return nil
}
