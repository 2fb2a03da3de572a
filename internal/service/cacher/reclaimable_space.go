package cacher

import (
	"github.com/vertextoedge/picture-cache/internal/port"
)

// IndexedSize reports how many bytes the disk cache holds on a root
type IndexedSize interface {
	TotalSize(root string) (int64, error)
}

// ReclaimableSpace measures free space as the planner should see it: the
// bytes the disk cache already occupies on a root count as available to
// the cache. Without this every replan would shrink the budget by the
// cache's own size, evict, and grow it back on the next pass.
type ReclaimableSpace struct {
	space  port.FreeSpaceQuery
	images IndexedSize
}

var _ port.FreeSpaceQuery = (*ReclaimableSpace)(nil)

// NewReclaimableSpace wraps space, adding back the indexed size of a root
func NewReclaimableSpace(space port.FreeSpaceQuery, images IndexedSize) *ReclaimableSpace {
	return &ReclaimableSpace{space: space, images: images}
}

// FreeBytes returns free bytes on path plus the cache bytes indexed under
// it. A failed measurement is passed through unchanged; a failed index
// lookup falls back to the measured value.
func (s *ReclaimableSpace) FreeBytes(path string) (int64, error) {
	free, err := s.space.FreeBytes(path)
	if err != nil || free < 0 {
		return free, err
	}

	held, err := s.images.TotalSize(path)
	if err != nil || held <= 0 {
		return free, nil
	}
	return free + held, nil
}
