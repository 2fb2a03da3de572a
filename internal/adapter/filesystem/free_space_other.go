//go:build !linux && !darwin && !freebsd

package filesystem

import (
	"fmt"

	"github.com/vertextoedge/picture-cache/internal/domain"
	"github.com/vertextoedge/picture-cache/internal/port"
)

// FreeSpace reports unknown free space on platforms without statfs, which
// the planner treats as a full disk.
type FreeSpace struct{}

var _ port.FreeSpaceQuery = FreeSpace{}

// FreeBytes always fails on this platform
func (FreeSpace) FreeBytes(path string) (int64, error) {
	return domain.UnknownFreeSpace, fmt.Errorf("%w: statfs unsupported for %s", domain.ErrMeasurementUnavailable, path)
}
