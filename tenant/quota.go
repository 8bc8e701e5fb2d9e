package tenant

import "fmt"

// Quotas bounds a tenant's resource consumption. A nil pointer means
// unlimited for that dimension.
type Quotas struct {
	MaxUsers              *uint32
	MaxStorageBytes       *uint64
	MaxPosts              *uint32
	MaxPages              *uint32
	MaxMedia              *uint32
	MaxApiRequestsPerDay  *uint32
	MaxPlugins            *uint32
	MaxEnqueuesPerMinute  *uint32 // broker-specific: enqueues per tenant per minute
}

func u32(v uint32) *uint32 { return &v }
func u64(v uint64) *uint64 { return &v }

// DefaultQuotas mirrors the platform's default tier.
func DefaultQuotas() Quotas {
	return Quotas{
		MaxUsers:             u32(5),
		MaxStorageBytes:      u64(1024 * 1024 * 1024),
		MaxPosts:             u32(1000),
		MaxPages:             u32(100),
		MaxMedia:             u32(500),
		MaxApiRequestsPerDay: u32(10000),
		MaxPlugins:           u32(10),
		MaxEnqueuesPerMinute: u32(600),
	}
}

// Unlimited has every dimension uncapped.
func Unlimited() Quotas { return Quotas{} }

// FreeTier, StarterTier, ProfessionalTier, EnterpriseTier are the named
// plan quota presets.
func FreeTier() Quotas {
	return Quotas{
		MaxUsers:             u32(2),
		MaxStorageBytes:      u64(100 * 1024 * 1024),
		MaxPosts:             u32(50),
		MaxPages:             u32(10),
		MaxMedia:             u32(50),
		MaxApiRequestsPerDay: u32(1000),
		MaxPlugins:           u32(3),
		MaxEnqueuesPerMinute: u32(60),
	}
}

func StarterTier() Quotas {
	return Quotas{
		MaxUsers:             u32(10),
		MaxStorageBytes:      u64(5 * 1024 * 1024 * 1024),
		MaxPosts:             u32(1000),
		MaxPages:             u32(100),
		MaxMedia:             u32(1000),
		MaxApiRequestsPerDay: u32(50000),
		MaxPlugins:           u32(10),
		MaxEnqueuesPerMinute: u32(600),
	}
}

func ProfessionalTier() Quotas {
	return Quotas{
		MaxUsers:             u32(50),
		MaxStorageBytes:      u64(50 * 1024 * 1024 * 1024),
		MaxMedia:             u32(10000),
		MaxApiRequestsPerDay: u32(500000),
		MaxPlugins:           u32(50),
		MaxEnqueuesPerMinute: u32(6000),
	}
}

func EnterpriseTier() Quotas { return Unlimited() }

// Usage is a tenant's point-in-time resource consumption.
type Usage struct {
	UserCount          uint32
	StorageBytes       uint64
	PostCount          uint32
	PageCount          uint32
	MediaCount         uint32
	ApiRequestsToday   uint32
	PluginCount        uint32
	EnqueuesThisMinute uint32
}

func within32(usage uint32, quota *uint32) bool {
	return quota == nil || usage < *quota
}

func within64(usage uint64, quota *uint64) bool {
	return quota == nil || usage < *quota
}

// IsWithinQuota reports whether every usage dimension is strictly under
// its quota (nil quota dimensions are always satisfied).
func (u Usage) IsWithinQuota(q Quotas) bool {
	return within32(u.UserCount, q.MaxUsers) &&
		within64(u.StorageBytes, q.MaxStorageBytes) &&
		within32(u.PostCount, q.MaxPosts) &&
		within32(u.PageCount, q.MaxPages) &&
		within32(u.MediaCount, q.MaxMedia) &&
		within32(u.ApiRequestsToday, q.MaxApiRequestsPerDay) &&
		within32(u.PluginCount, q.MaxPlugins) &&
		within32(u.EnqueuesThisMinute, q.MaxEnqueuesPerMinute)
}

// Violation names one exceeded dimension for reporting.
type Violation struct {
	Kind    string
	Current uint64
	Max     uint64
}

func (v Violation) String() string {
	return fmt.Sprintf("%s quota exceeded: %d of %d", v.Kind, v.Current, v.Max)
}

// QuotaViolations lists every dimension at or above its quota; a usage
// equal to the quota counts as a violation (the boundary belongs to the
// quota, not the tenant).
func (u Usage) QuotaViolations(q Quotas) []Violation {
	var out []Violation
	if q.MaxUsers != nil && u.UserCount >= *q.MaxUsers {
		out = append(out, Violation{"users", uint64(u.UserCount), uint64(*q.MaxUsers)})
	}
	if q.MaxStorageBytes != nil && u.StorageBytes >= *q.MaxStorageBytes {
		out = append(out, Violation{"storage", u.StorageBytes, *q.MaxStorageBytes})
	}
	if q.MaxPosts != nil && u.PostCount >= *q.MaxPosts {
		out = append(out, Violation{"posts", uint64(u.PostCount), uint64(*q.MaxPosts)})
	}
	if q.MaxPages != nil && u.PageCount >= *q.MaxPages {
		out = append(out, Violation{"pages", uint64(u.PageCount), uint64(*q.MaxPages)})
	}
	if q.MaxMedia != nil && u.MediaCount >= *q.MaxMedia {
		out = append(out, Violation{"media", uint64(u.MediaCount), uint64(*q.MaxMedia)})
	}
	if q.MaxApiRequestsPerDay != nil && u.ApiRequestsToday >= *q.MaxApiRequestsPerDay {
		out = append(out, Violation{"api_requests", uint64(u.ApiRequestsToday), uint64(*q.MaxApiRequestsPerDay)})
	}
	if q.MaxPlugins != nil && u.PluginCount >= *q.MaxPlugins {
		out = append(out, Violation{"plugins", uint64(u.PluginCount), uint64(*q.MaxPlugins)})
	}
	if q.MaxEnqueuesPerMinute != nil && u.EnqueuesThisMinute >= *q.MaxEnqueuesPerMinute {
		out = append(out, Violation{"enqueues_per_minute", uint64(u.EnqueuesThisMinute), uint64(*q.MaxEnqueuesPerMinute)})
	}
	return out
}
