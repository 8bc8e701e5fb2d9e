// Package tenant implements the multi-tenancy gate: tenant status,
// subscription/trial windows, and quota enforcement consulted by the
// broker on every enqueue.
package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks a tenant's subscription lifecycle.
type Status int

const (
	Pending Status = iota
	Active
	Trial
	Suspended
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Trial:
		return "trial"
	case Suspended:
		return "suspended"
	case Cancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

// Plan names a subscription tier; Custom carries an arbitrary label for
// negotiated plans outside the standard tiers.
type Plan struct {
	Name   string // "free", "starter", "professional", "enterprise", or "custom"
	Custom string
}

var (
	PlanFree         = Plan{Name: "free"}
	PlanStarter      = Plan{Name: "starter"}
	PlanProfessional = Plan{Name: "professional"}
	PlanEnterprise   = Plan{Name: "enterprise"}
)

// Tenant is a SaaS tenant scoping queues, quotas, and billing state.
type Tenant struct {
	Id                 uuid.UUID
	Slug               string
	Name               string
	Status             Status
	Plan               Plan
	Quotas             Quotas
	TrialEndsAt        *time.Time
	SubscriptionEndsAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Metadata           map[string]any
}

// New constructs a Tenant on the free plan with DefaultQuotas and Pending
// status.
func New(slug, name string) *Tenant {
	now := time.Now()
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &Tenant{
		Id:        id,
		Slug:      slug,
		Name:      name,
		Status:    Pending,
		Plan:      PlanFree,
		Quotas:    DefaultQuotas(),
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]any{},
	}
}

func (t *Tenant) isActiveStatus() bool {
	return t.Status == Active || t.Status == Trial
}

func (t *Tenant) isTrialExpired(now time.Time) bool {
	if t.TrialEndsAt == nil || t.Status != Trial {
		return false
	}
	return now.After(*t.TrialEndsAt)
}

func (t *Tenant) isSubscriptionExpired(now time.Time) bool {
	if t.SubscriptionEndsAt == nil {
		return false
	}
	return now.After(*t.SubscriptionEndsAt)
}

// CanAccess reports whether the tenant may use the platform at time now:
// status is Active or Trial, the trial window (if any) hasn't lapsed, and
// the subscription window (if any) hasn't lapsed.
func (t *Tenant) CanAccess(now time.Time) bool {
	return t.isActiveStatus() && !t.isTrialExpired(now) && !t.isSubscriptionExpired(now)
}
