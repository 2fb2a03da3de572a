package cacher

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/picture-cache/internal/domain"
	"github.com/vertextoedge/picture-cache/internal/domain/vo"
	"github.com/vertextoedge/picture-cache/internal/metrics"
	"github.com/vertextoedge/picture-cache/internal/port"
)

const evictionBatchSize = 16

// FileSystemFactory opens the cache file store for a root directory
type FileSystemFactory func(root string) (port.FileSystem, error)

// DiskCache is a total-size-limited disk cache placed by a CapacityPlan.
// Index rows are kept per root, so switching tiers and back finds the
// earlier entries again.
type DiskCache struct {
	images  port.ImageRepository
	openFS  FileSystemFactory
	metrics metrics.Metrics
	logger  *zap.Logger

	mu        sync.RWMutex
	plan      domain.CapacityPlan
	fs        port.FileSystem
	evictions int64
}

// NewDiskCache creates a disabled disk cache; call Reconfigure with a plan
// to enable it. m may be nil.
func NewDiskCache(images port.ImageRepository, openFS FileSystemFactory, m metrics.Metrics, logger *zap.Logger) *DiskCache {
	return &DiskCache{
		images:  images,
		openFS:  openFS,
		metrics: m,
		logger:  logger,
		plan:    domain.NoCache,
	}
}

// Reconfigure points the cache at the plan's tier and budget, evicting
// entries beyond the new budget. A NoCache plan disables the cache.
func (c *DiskCache) Reconfigure(plan domain.CapacityPlan) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if plan.IsNoCache() {
		c.plan = domain.NoCache
		c.fs = nil
		c.logger.Info("disk cache disabled")
		return nil
	}

	fs, err := c.openFS(plan.Tier.RootPath)
	if err != nil {
		c.plan = domain.NoCache
		c.fs = nil
		return fmt.Errorf("failed to open cache root %s: %w", plan.Tier.RootPath, err)
	}

	c.plan = plan
	c.fs = fs
	c.logger.Info("disk cache configured",
		zap.Stringer("tier", plan.Tier.Kind),
		zap.String("root", plan.Tier.RootPath),
		zap.String("limit", vo.HumanBytes(plan.RequestedBytes)))

	if err := c.sweepOrphansLocked(); err != nil {
		c.logger.Warn("failed to sweep unindexed files", zap.String("root", plan.Tier.RootPath), zap.Error(err))
	}
	return c.evictLocked()
}

// sweepOrphansLocked deletes files under the root that have no index row.
// They are left behind by crashes between write and upsert or by an index
// rebuilt from scratch, and would otherwise hold space outside the budget.
// The caller holds c.mu.
func (c *DiskCache) sweepOrphansLocked() error {
	root := c.plan.Tier.RootPath

	onDisk, err := c.fs.GetCacheSize()
	if err != nil {
		return err
	}
	indexed, err := c.images.TotalSize(root)
	if err != nil {
		return err
	}
	if onDisk <= indexed {
		return nil
	}

	keys, err := c.fs.Keys()
	if err != nil {
		return err
	}
	swept := 0
	for _, key := range keys {
		entry, err := c.images.Get(root, key)
		if err != nil {
			return err
		}
		if entry != nil {
			continue
		}
		if err := c.fs.DeleteFile(c.fs.CachePath(key)); err != nil {
			c.logger.Warn("failed to delete unindexed file", zap.String("key", key), zap.Error(err))
			continue
		}
		swept++
	}
	if swept > 0 {
		c.logger.Info("swept unindexed cache files",
			zap.String("root", root),
			zap.Int("count", swept),
			zap.String("unindexed", vo.HumanBytes(onDisk-indexed)))
	}
	return nil
}

// Plan returns the plan the cache is currently configured with
func (c *DiskCache) Plan() domain.CapacityPlan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.plan
}

// Enabled reports whether the cache has a positive budget
func (c *DiskCache) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fs != nil
}

// Get returns the cached image for key
func (c *DiskCache) Get(key string) (*domain.Image, error) {
	c.mu.RLock()
	fs, root := c.fs, c.plan.Tier.RootPath
	c.mu.RUnlock()

	if fs == nil {
		return nil, domain.ErrCacheDisabled
	}

	entry, err := c.images.Get(root, key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		c.record(false)
		return nil, domain.ErrCacheMiss
	}

	data, err := fs.ReadFile(entry.CachePath)
	if err != nil {
		c.logger.Warn("cached file unreadable, dropping entry",
			zap.String("key", key),
			zap.String("path", entry.CachePath),
			zap.Error(err))
		if delErr := c.images.Delete(root, key); delErr != nil {
			c.logger.Error("failed to delete index entry", zap.String("key", key), zap.Error(delErr))
		}
		c.record(false)
		return nil, domain.ErrCacheMiss
	}

	if err := c.images.Touch(root, key); err != nil {
		c.logger.Warn("failed to update access time", zap.String("key", key), zap.Error(err))
	}
	c.record(true)

	return &domain.Image{
		SourceURL:   entry.SourceURL,
		ContentType: entry.ContentType,
		Data:        data,
	}, nil
}

// Put stores img under key and evicts least recently used entries until
// the cache fits its budget again.
func (c *DiskCache) Put(key string, img *domain.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fs == nil {
		return domain.ErrCacheDisabled
	}
	if img.Size() > c.plan.RequestedBytes {
		return fmt.Errorf("%w: %d > %d bytes", domain.ErrEntryTooLarge, img.Size(), c.plan.RequestedBytes)
	}

	cachePath, written, err := c.fs.WriteFile(key, bytes.NewReader(img.Data))
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	now := time.Now()
	entry := &domain.CachedImage{
		Key:            key,
		SourceURL:      img.SourceURL,
		ContentType:    img.ContentType,
		Size:           written,
		CachePath:      cachePath,
		Root:           c.plan.Tier.RootPath,
		Tier:           c.plan.Tier.Kind,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	if err := c.images.Upsert(entry); err != nil {
		c.fs.DeleteFile(cachePath)
		return fmt.Errorf("db update failed: %w", err)
	}

	return c.evictLocked()
}

// Clear removes every cached file on the current root, indexed or not,
// and returns the number of index entries dropped.
func (c *DiskCache) Clear() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fs == nil {
		return 0, nil
	}

	keys, err := c.fs.Keys()
	if err != nil {
		return 0, fmt.Errorf("failed to list cache files: %w", err)
	}
	for _, key := range keys {
		if err := c.fs.DeleteFile(c.fs.CachePath(key)); err != nil {
			c.logger.Warn("failed to delete cached file", zap.String("key", key), zap.Error(err))
		}
	}

	removed, err := c.images.DeleteByRoot(c.plan.Tier.RootPath)
	if err != nil {
		return 0, err
	}

	if c.metrics != nil {
		c.metrics.SetDiskUsage(0)
	}
	return int(removed), nil
}

// Stats returns disk cache statistics
func (c *DiskCache) Stats() (*domain.CacheStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := &domain.CacheStats{
		Enabled:    c.fs != nil,
		LimitBytes: c.plan.RequestedBytes,
		Evictions:  c.evictions,
	}
	if c.fs == nil {
		return stats, nil
	}

	stats.Tier = c.plan.Tier.Kind.String()
	stats.RootPath = c.fs.RootDir()

	var err error
	if stats.Entries, err = c.images.Count(stats.RootPath); err != nil {
		return nil, err
	}
	if stats.TotalBytes, err = c.images.TotalSize(stats.RootPath); err != nil {
		return nil, err
	}
	if stats.DiskBytes, err = c.fs.GetCacheSize(); err != nil {
		return nil, err
	}
	return stats, nil
}

// CleanTempFiles removes partial writes older than maxAge
func (c *DiskCache) CleanTempFiles(maxAge time.Duration) (int, error) {
	c.mu.RLock()
	fs := c.fs
	c.mu.RUnlock()

	if fs == nil {
		return 0, nil
	}
	return fs.CleanOldTempFiles(maxAge)
}

// evictLocked removes least recently accessed entries until the total size
// fits the budget. The caller holds c.mu.
func (c *DiskCache) evictLocked() error {
	root, limit := c.plan.Tier.RootPath, c.plan.RequestedBytes

	total, err := c.images.TotalSize(root)
	if err != nil {
		return fmt.Errorf("failed to read cache size: %w", err)
	}

	evictedCount := 0
	evictedBytes := int64(0)
	for total > limit {
		candidates, err := c.images.EvictionCandidates(root, evictionBatchSize)
		if err != nil {
			return fmt.Errorf("failed to get eviction candidates: %w", err)
		}
		if len(candidates) == 0 {
			break
		}
		for _, entry := range candidates {
			if total <= limit {
				break
			}
			// Files already gone (media swapped) are just unindexed.
			if err := c.fs.DeleteFile(entry.CachePath); err != nil {
				c.logger.Warn("failed to delete cached file",
					zap.String("path", entry.CachePath),
					zap.Error(err))
			}
			if err := c.images.Delete(root, entry.Key); err != nil {
				return err
			}
			total -= entry.Size
			evictedCount++
			evictedBytes += entry.Size
		}
	}

	if evictedCount > 0 {
		c.evictions += int64(evictedCount)
		c.logger.Debug("disk cache eviction",
			zap.Int("evicted_count", evictedCount),
			zap.Int64("evicted_bytes", evictedBytes),
			zap.Int64("cache_bytes", total))
	}
	if c.metrics != nil {
		if evictedCount > 0 {
			c.metrics.RecordEviction(evictedCount, evictedBytes)
		}
		c.metrics.SetDiskUsage(total)
	}
	return nil
}

func (c *DiskCache) record(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordLookup("disk", hit)
	}
}
