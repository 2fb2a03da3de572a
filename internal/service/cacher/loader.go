package cacher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vertextoedge/picture-cache/internal/domain"
	"github.com/vertextoedge/picture-cache/internal/metrics"
	"github.com/vertextoedge/picture-cache/internal/port"
)

// Executor runs a download job and waits for it
type Executor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Loader serves images from memory, then disk, then the network. Concurrent
// loads of the same URL share one download.
type Loader struct {
	memory       port.MemoryCache
	disk         *DiskCache
	planner      port.CapacityPlanner
	fetcher      port.Fetcher
	connectivity port.ConnectivityChecker
	executor     Executor
	metrics      metrics.Metrics
	logger       *zap.Logger

	group singleflight.Group
}

// NewLoader creates a new Loader. m may be nil.
func NewLoader(
	memory port.MemoryCache,
	disk *DiskCache,
	planner port.CapacityPlanner,
	fetcher port.Fetcher,
	connectivity port.ConnectivityChecker,
	executor Executor,
	m metrics.Metrics,
	logger *zap.Logger,
) *Loader {
	return &Loader{
		memory:       memory,
		disk:         disk,
		planner:      planner,
		fetcher:      fetcher,
		connectivity: connectivity,
		executor:     executor,
		metrics:      m,
		logger:       logger,
	}
}

// KeyFor returns the cache key of a source URL
func KeyFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Profile returns the cache profile for the current mount state. It is
// evaluated on every call because media can be ejected at any time.
func (l *Loader) Profile() Profile {
	if l.planner.PreferDiskCache() {
		return ProfileWithDiskCache
	}
	return ProfileMemoryOnly
}

// Load returns the image at url
func (l *Loader) Load(ctx context.Context, url string) (*domain.Image, error) {
	if url == "" {
		return nil, domain.ErrInvalidInput
	}

	key := KeyFor(url)
	profile := l.Profile()

	if profile.CacheInMemory {
		img, ok := l.memory.Get(key)
		l.recordLookup("memory", ok)
		if ok {
			return img, nil
		}
	}

	if profile.CacheOnDisk {
		img, err := l.disk.Get(key)
		switch {
		case err == nil:
			if profile.CacheInMemory {
				l.memory.Set(key, img)
			}
			return img, nil
		case errors.Is(err, domain.ErrCacheMiss), errors.Is(err, domain.ErrCacheDisabled):
		default:
			l.logger.Warn("disk cache lookup failed", zap.String("url", url), zap.Error(err))
		}
	}

	// The download is shared by every waiter, so one caller going away
	// must not cancel it for the rest. The fetch timeout still bounds it.
	shared := context.WithoutCancel(ctx)
	v, err, joined := l.group.Do(key, func() (interface{}, error) {
		return l.download(shared, key, url, profile)
	})
	if err != nil {
		return nil, err
	}
	if joined {
		l.logger.Debug("joined in-flight download", zap.String("url", url))
	}
	return v.(*domain.Image), nil
}

// ClearMemory drops every image from the memory tier
func (l *Loader) ClearMemory() {
	l.memory.Clear()
}

func (l *Loader) download(ctx context.Context, key, url string, profile Profile) (*domain.Image, error) {
	if !l.connectivity.Check(ctx) {
		return nil, domain.ErrOffline
	}

	var img *domain.Image
	start := time.Now()
	err := l.executor.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		img, fetchErr = l.fetcher.Fetch(ctx, url)
		return fetchErr
	})
	if l.metrics != nil {
		var n int64
		if img != nil {
			n = img.Size()
		}
		l.metrics.RecordDownload(time.Since(start).Seconds(), n, err)
	}
	if err != nil {
		return nil, err
	}

	if profile.CacheInMemory {
		l.memory.Set(key, img)
	}
	if profile.CacheOnDisk {
		if err := l.disk.Put(key, img); err != nil && !errors.Is(err, domain.ErrCacheDisabled) {
			l.logger.Warn("failed to store image on disk",
				zap.String("url", url),
				zap.Int64("size", img.Size()),
				zap.Error(err))
		}
	}

	l.logger.Debug("image downloaded",
		zap.String("url", url),
		zap.Int64("size", img.Size()),
		zap.Duration("took", time.Since(start)))
	return img, nil
}

func (l *Loader) recordLookup(tier string, hit bool) {
	if l.metrics != nil {
		l.metrics.RecordLookup(tier, hit)
	}
}
