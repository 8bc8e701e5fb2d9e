package sql

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/vqmcore/queuecore/message"
	"github.com/vqmcore/queuecore/queue"
)

// jobModel is the bun-mapped row shape backing queue.Job. Fields are
// flattened rather than embedding message.Message directly so that bun's
// column tags stay explicit and independent of the in-memory struct
// shape.
type jobModel struct {
	bun.BaseModel `bun:"table:jobs"`

	Id uuid.UUID `bun:"id,pk,type:uuid"`

	Queue   string `bun:"queue,notnull"`
	Kind    string `bun:"kind,notnull"`
	Payload []byte `bun:"payload,type:blob"`

	Priority    int            `bun:"priority,notnull,default:5"`
	TenantId    string         `bun:"tenant_id,nullzero"`
	EnqueuedBy  string         `bun:"enqueued_by,nullzero"`
	TraceId     string         `bun:"trace_id,nullzero"`
	RetryPolicy string         `bun:"retry_policy_ref,nullzero"`
	Metadata    map[string]any `bun:"metadata,type:jsonb"`

	Attempt     uint32      `bun:"attempt,notnull,default:0"`
	MaxAttempts uint32      `bun:"max_attempts,notnull,default:5"`
	VisibleAt   time.Time   `bun:"visible_at,notnull"`
	LeaseUntil  *time.Time  `bun:"lease_until,nullzero"`
	State       queue.State `bun:"state,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func toModel(j *queue.Job) *jobModel {
	return &jobModel{
		Id:          j.Id,
		Queue:       j.Queue,
		Kind:        j.Kind,
		Payload:     j.Payload,
		Priority:    j.Priority,
		TenantId:    j.TenantId,
		EnqueuedBy:  j.EnqueuedBy,
		TraceId:     j.TraceId,
		RetryPolicy: j.RetryPolicyRef,
		Metadata:    j.Metadata,
		Attempt:     j.Attempt,
		MaxAttempts: j.MaxAttempts,
		VisibleAt:   j.VisibleAt,
		LeaseUntil:  j.LeaseUntil,
		State:       j.State,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

func (m *jobModel) toJob() *queue.Job {
	return &queue.Job{
		Message: message.Message{
			Id:             m.Id,
			Queue:          m.Queue,
			Kind:           m.Kind,
			Payload:        m.Payload,
			Priority:       m.Priority,
			TenantId:       m.TenantId,
			EnqueuedBy:     m.EnqueuedBy,
			TraceId:        m.TraceId,
			RetryPolicyRef: m.RetryPolicy,
			Metadata:       m.Metadata,
			CreatedAt:      m.CreatedAt,
		},
		Attempt:     m.Attempt,
		MaxAttempts: m.MaxAttempts,
		VisibleAt:   m.VisibleAt,
		LeaseUntil:  m.LeaseUntil,
		State:       m.State,
		UpdatedAt:   m.UpdatedAt,
	}
}
