//go:build !linux && !darwin && !freebsd

package filesystem

import (
	"os"

	"github.com/vertextoedge/picture-cache/internal/port"
)

// MountState inspects the external media mount point on every call
type MountState struct {
	mountPoint string
}

var _ port.MountStateQuery = (*MountState)(nil)

// NewMountState creates a MountState. Mount point detection is not
// supported on this platform, so requireMountPoint is ignored.
func NewMountState(mountPoint string, requireMountPoint bool) *MountState {
	return &MountState{mountPoint: mountPoint}
}

// IsExternalMediaAvailable returns true if the mount point is present
func (m *MountState) IsExternalMediaAvailable() bool {
	if m.mountPoint == "" {
		return false
	}
	info, err := os.Stat(m.mountPoint)
	return err == nil && info.IsDir()
}

// IsExternalMediaWritable probes writability by creating a scratch file
func (m *MountState) IsExternalMediaWritable() bool {
	if !m.IsExternalMediaAvailable() {
		return false
	}
	f, err := os.CreateTemp(m.mountPoint, ".probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
