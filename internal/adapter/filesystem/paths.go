package filesystem

import (
	"github.com/vertextoedge/picture-cache/internal/port"
)

// Paths resolves tier cache roots from configuration
type Paths struct {
	External string
	Internal string
}

var _ port.PathProvider = Paths{}

// ExternalCacheRoot returns the cache directory on external media
func (p Paths) ExternalCacheRoot() string {
	return p.External
}

// InternalCacheRoot returns the app-private cache directory
func (p Paths) InternalCacheRoot() string {
	return p.Internal
}
