// Package planner decides where the disk cache lives and how many bytes it
// may occupy. External media is preferred when mounted read-write; the
// internal cache directory is the fallback. A budget never exceeds the
// measured free space minus the margin, and a root whose free space cannot
// be measured is treated as full.
package planner

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vertextoedge/picture-cache/internal/domain"
	"github.com/vertextoedge/picture-cache/internal/domain/vo"
	"github.com/vertextoedge/picture-cache/internal/metrics"
	"github.com/vertextoedge/picture-cache/internal/port"
)

// Planner is stateless apart from its collaborators and is safe for
// concurrent use. Every call re-queries mount state and free space.
type Planner struct {
	mounts  port.MountStateQuery
	space   port.FreeSpaceQuery
	paths   port.PathProvider
	metrics metrics.Metrics
	logger  *zap.Logger
}

var _ port.CapacityPlanner = (*Planner)(nil)

// New creates a Planner. m may be nil.
func New(mounts port.MountStateQuery, space port.FreeSpaceQuery, paths port.PathProvider, m metrics.Metrics, logger *zap.Logger) *Planner {
	return &Planner{
		mounts:  mounts,
		space:   space,
		paths:   paths,
		metrics: m,
		logger:  logger,
	}
}

// Plan returns the disk cache placement. Storage failures never surface as
// errors; the only error is invalid input.
func (p *Planner) Plan(preferredExternalCap, fallbackInternalCap, margin int64) (domain.CapacityPlan, error) {
	if preferredExternalCap <= 0 || fallbackInternalCap <= 0 {
		return domain.NoCache, fmt.Errorf("%w: cache caps must be positive", domain.ErrInvalidInput)
	}
	if margin < 0 {
		return domain.NoCache, fmt.Errorf("%w: margin must not be negative", domain.ErrInvalidInput)
	}

	external := p.externalTier()
	if external.Usable() {
		external.RootPath = p.paths.ExternalCacheRoot()
		if size := p.budget(external.RootPath, preferredExternalCap, margin); size > 0 {
			return p.decided(domain.CapacityPlan{Tier: external, RequestedBytes: size}), nil
		}
		p.logger.Info("external storage has no room for a cache, falling back to internal",
			zap.String("root", external.RootPath))
	}

	internal := domain.StorageTier{
		Kind:      domain.TierInternal,
		RootPath:  p.paths.InternalCacheRoot(),
		Available: true,
		Writable:  true,
	}
	if size := p.budget(internal.RootPath, fallbackInternalCap, margin); size > 0 {
		return p.decided(domain.CapacityPlan{Tier: internal, RequestedBytes: size}), nil
	}

	p.logger.Warn("disk cache disabled", zap.Error(domain.ErrNoUsableTier))
	return p.decided(domain.NoCache), nil
}

// PreferDiskCache reports whether external media is mounted read-write.
func (p *Planner) PreferDiskCache() bool {
	return p.externalTier().Usable()
}

func (p *Planner) externalTier() domain.StorageTier {
	available := p.mounts.IsExternalMediaAvailable()
	return domain.StorageTier{
		Kind:      domain.TierExternal,
		Available: available,
		Writable:  available && p.mounts.IsExternalMediaWritable(),
	}
}

// budget clamps want to free-margin on root. Unknown free space counts as
// zero so an unmeasurable root never receives a cache.
func (p *Planner) budget(root string, want, margin int64) int64 {
	free, err := p.space.FreeBytes(root)
	if err != nil || free < 0 {
		p.logger.Warn("free space unknown, treating root as full",
			zap.String("root", root),
			zap.Error(err))
		free = 0
	}

	if avail := free - margin; want > avail {
		want = avail
	}
	if want < 0 {
		want = 0
	}

	p.logger.Debug("measured storage tier",
		zap.String("root", root),
		zap.String("free", vo.HumanBytes(free)),
		zap.String("granted", vo.HumanBytes(want)))
	return want
}

func (p *Planner) decided(plan domain.CapacityPlan) domain.CapacityPlan {
	outcome := "no_cache"
	if !plan.IsNoCache() {
		outcome = plan.Tier.Kind.String()
		p.logger.Info("disk cache planned",
			zap.Stringer("tier", plan.Tier.Kind),
			zap.String("root", plan.Tier.RootPath),
			zap.String("budget", vo.HumanBytes(plan.RequestedBytes)))
	}
	if p.metrics != nil {
		p.metrics.RecordPlan(outcome, plan.RequestedBytes)
	}
	return plan
}
