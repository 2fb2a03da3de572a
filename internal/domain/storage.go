package domain

import "fmt"

// UnknownFreeSpace is reported by a free-space probe that could not
// measure its root.
const UnknownFreeSpace int64 = -1

// TierKind identifies a storage location.
type TierKind int

const (
	TierInternal TierKind = iota
	TierExternal
)

// String returns the tier name used in logs, metrics and JSON.
func (k TierKind) String() string {
	switch k {
	case TierInternal:
		return "internal"
	case TierExternal:
		return "external"
	default:
		return fmt.Sprintf("tier(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k TierKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// StorageTier is a snapshot of one storage location's mount state.
type StorageTier struct {
	Kind      TierKind `json:"kind"`
	RootPath  string   `json:"root_path"`
	Available bool     `json:"available"`
	Writable  bool     `json:"writable"`
}

// Usable reports whether a cache may be placed on the tier.
func (t StorageTier) Usable() bool {
	return t.Available && t.Writable
}

// CapacityPlan is the decided disk cache location and byte budget.
// The zero value is NoCache.
type CapacityPlan struct {
	Tier           StorageTier `json:"tier"`
	RequestedBytes int64       `json:"requested_bytes"`
}

// NoCache is the plan returned when no tier has a positive budget.
var NoCache = CapacityPlan{}

// IsNoCache reports whether disk caching is disabled by this plan.
func (p CapacityPlan) IsNoCache() bool {
	return p.RequestedBytes <= 0
}

// SameTarget reports whether two plans place the cache on the same root
// with the same budget.
func (p CapacityPlan) SameTarget(other CapacityPlan) bool {
	if p.IsNoCache() || other.IsNoCache() {
		return p.IsNoCache() == other.IsNoCache()
	}
	return p.Tier.Kind == other.Tier.Kind &&
		p.Tier.RootPath == other.Tier.RootPath &&
		p.RequestedBytes == other.RequestedBytes
}

// String returns a compact description for logs.
func (p CapacityPlan) String() string {
	if p.IsNoCache() {
		return "no-cache"
	}
	return fmt.Sprintf("%s:%s (%d bytes)", p.Tier.Kind, p.Tier.RootPath, p.RequestedBytes)
}

// CacheBudget holds the configured disk cache sizes for each tier and the
// headroom always left free.
type CacheBudget struct {
	ExternalBytes int64
	InternalBytes int64
	MarginBytes   int64
}
