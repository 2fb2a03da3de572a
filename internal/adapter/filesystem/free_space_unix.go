//go:build linux || darwin || freebsd

package filesystem

import (
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/vertextoedge/picture-cache/internal/domain"
	"github.com/vertextoedge/picture-cache/internal/port"
)

// FreeSpace measures free space with statfs(2)
type FreeSpace struct{}

var _ port.FreeSpaceQuery = FreeSpace{}

// FreeBytes returns Bavail * Bsize for the filesystem holding path. A cache
// root that does not exist yet is measured on its nearest existing ancestor.
func (FreeSpace) FreeBytes(path string) (int64, error) {
	dir := filepath.Clean(path)
	for {
		var stat unix.Statfs_t
		err := unix.Statfs(dir, &stat)
		if err == nil {
			return int64(stat.Bavail) * int64(stat.Bsize), nil
		}
		parent := filepath.Dir(dir)
		if !errors.Is(err, unix.ENOENT) || parent == dir {
			return domain.UnknownFreeSpace, fmt.Errorf("%w: statfs %s: %v", domain.ErrMeasurementUnavailable, dir, err)
		}
		dir = parent
	}
}
