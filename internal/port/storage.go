package port

import (
	"github.com/vertextoedge/picture-cache/internal/domain"
)

// MountStateQuery reports the OS-level mount state of external media.
// Implementations must query the system on every call; mount state can
// change at any time.
type MountStateQuery interface {
	// IsExternalMediaAvailable returns true if external media is mounted
	IsExternalMediaAvailable() bool

	// IsExternalMediaWritable returns true if external media is mounted read-write
	IsExternalMediaWritable() bool
}

// FreeSpaceQuery measures free space on a filesystem.
type FreeSpaceQuery interface {
	// FreeBytes returns bytes available to unprivileged writers on the
	// filesystem containing path. On failure it returns
	// domain.UnknownFreeSpace together with a non-nil error.
	FreeBytes(path string) (int64, error)
}

// PathProvider resolves the cache directories of each tier.
type PathProvider interface {
	ExternalCacheRoot() string
	InternalCacheRoot() string
}

// CapacityPlanner decides where the disk cache lives and how large it may be
type CapacityPlanner interface {
	// Plan returns the tier and byte budget for the disk cache, or
	// domain.NoCache when no tier has room
	Plan(preferredExternalCap, fallbackInternalCap, margin int64) (domain.CapacityPlan, error)

	// PreferDiskCache reports whether external media is usable right now
	PreferDiskCache() bool
}
