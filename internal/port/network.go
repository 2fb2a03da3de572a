package port

import (
	"context"

	"github.com/vertextoedge/picture-cache/internal/domain"
)

// Fetcher downloads images from their source
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*domain.Image, error)
}

// ConnectivityChecker reports whether the network is reachable
type ConnectivityChecker interface {
	Check(ctx context.Context) bool
}

// MemoryCache is the in-process image cache tier
type MemoryCache interface {
	Get(key string) (*domain.Image, bool)
	Set(key string, img *domain.Image) bool
	Clear()
	Stats() (hits, misses uint64, bytes int64)
}
