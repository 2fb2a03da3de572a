package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/picture-cache/internal/domain"
	"github.com/vertextoedge/picture-cache/internal/domain/vo"
	"github.com/vertextoedge/picture-cache/internal/port"
)

// Config contains maintenance service configuration
type Config struct {
	// Budget is the configured disk cache size per tier
	Budget domain.CacheBudget

	// ReplanInterval is how often storage is re-planned to follow media
	// being mounted, ejected or filled up
	ReplanInterval time.Duration

	// CleanupInterval is how often to run cleanup tasks
	CleanupInterval time.Duration

	// TempFileMaxAge is the maximum age of temp files before cleanup
	TempFileMaxAge time.Duration
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		ReplanInterval:  time.Minute,
		CleanupInterval: time.Hour,
		TempFileMaxAge:  24 * time.Hour,
	}
}

// DiskCache is the part of the disk cache maintenance drives
type DiskCache interface {
	Plan() domain.CapacityPlan
	Reconfigure(plan domain.CapacityPlan) error
	CleanTempFiles(maxAge time.Duration) (int, error)
}

// Service handles periodic maintenance tasks
type Service struct {
	config  *Config
	planner port.CapacityPlanner
	cache   DiskCache
	logger  *zap.Logger

	// replanMu serializes plan and reconfigure so a reset request and the
	// ticker cannot interleave.
	replanMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service
func New(cfg *Config, planner port.CapacityPlanner, cache DiskCache, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ReplanInterval == 0 {
		cfg.ReplanInterval = time.Minute
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.TempFileMaxAge == 0 {
		cfg.TempFileMaxAge = 24 * time.Hour
	}

	return &Service{
		config:  cfg,
		planner: planner,
		cache:   cache,
		logger:  logger,
	}
}

// Start runs the maintenance loop until ctx is cancelled or Stop is called
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started",
		zap.Duration("replan_interval", s.config.ReplanInterval),
		zap.Duration("cleanup_interval", s.config.CleanupInterval))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

// Replan asks the planner for a fresh plan and re-targets the disk cache
// when the tier, root or budget differs from the current one. It reports
// whether the cache was reconfigured.
func (s *Service) Replan() (domain.CapacityPlan, bool, error) {
	s.replanMu.Lock()
	defer s.replanMu.Unlock()

	b := s.config.Budget
	plan, err := s.planner.Plan(b.ExternalBytes, b.InternalBytes, b.MarginBytes)
	if err != nil {
		return domain.NoCache, false, fmt.Errorf("capacity planning failed: %w", err)
	}

	current := s.cache.Plan()
	if plan.SameTarget(current) {
		return plan, false, nil
	}

	s.logger.Info("storage plan changed",
		zap.Stringer("from", current),
		zap.Stringer("to", plan),
		zap.String("budget", vo.HumanBytes(plan.RequestedBytes)))

	if err := s.cache.Reconfigure(plan); err != nil {
		return plan, false, fmt.Errorf("failed to reconfigure disk cache: %w", err)
	}
	return plan, true, nil
}

// maintenanceLoop handles periodic maintenance tasks
func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	replanTicker := time.NewTicker(s.config.ReplanInterval)
	defer replanTicker.Stop()

	cleanupTicker := time.NewTicker(s.config.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-replanTicker.C:
			if _, _, err := s.Replan(); err != nil {
				s.logger.Error("failed to replan storage", zap.Error(err))
			}
		case <-cleanupTicker.C:
			s.cleanupTempFiles()
		}
	}
}

// cleanupTempFiles removes old temporary files from the cache root
func (s *Service) cleanupTempFiles() {
	fileCount, err := s.cache.CleanTempFiles(s.config.TempFileMaxAge)
	if err != nil {
		s.logger.Error("failed to cleanup old temp files", zap.Error(err))
	} else if fileCount > 0 {
		s.logger.Info("cleaned up old temp files from filesystem", zap.Int("count", fileCount))
	}
}
