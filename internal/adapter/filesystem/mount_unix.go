//go:build linux || darwin || freebsd

package filesystem

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/vertextoedge/picture-cache/internal/port"
)

// MountState inspects the external media mount point on every call
type MountState struct {
	mountPoint        string
	requireMountPoint bool
}

var _ port.MountStateQuery = (*MountState)(nil)

// NewMountState creates a MountState for mountPoint. When requireMountPoint
// is set, the directory only counts as available if a separate filesystem
// is mounted on it, so an empty directory left behind after media removal
// is not mistaken for the media.
func NewMountState(mountPoint string, requireMountPoint bool) *MountState {
	return &MountState{
		mountPoint:        mountPoint,
		requireMountPoint: requireMountPoint,
	}
}

// IsExternalMediaAvailable returns true if the mount point is present
func (m *MountState) IsExternalMediaAvailable() bool {
	if m.mountPoint == "" {
		return false
	}
	info, err := os.Stat(m.mountPoint)
	if err != nil || !info.IsDir() {
		return false
	}
	if !m.requireMountPoint {
		return true
	}
	return isMountPoint(m.mountPoint)
}

// IsExternalMediaWritable returns true if the media is mounted read-write
// and the process may create files on it. access(2) reports EROFS for
// read-only mounts.
func (m *MountState) IsExternalMediaWritable() bool {
	if !m.IsExternalMediaAvailable() {
		return false
	}
	return unix.Access(m.mountPoint, unix.W_OK) == nil
}

func isMountPoint(dir string) bool {
	var self, parent unix.Stat_t
	if err := unix.Stat(dir, &self); err != nil {
		return false
	}
	if err := unix.Stat(filepath.Dir(dir), &parent); err != nil {
		return false
	}
	return self.Dev != parent.Dev
}
