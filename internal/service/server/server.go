package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vertextoedge/picture-cache/internal/domain"
	"github.com/vertextoedge/picture-cache/internal/port"
	"github.com/vertextoedge/picture-cache/internal/service/cacher"
)

// Config contains HTTP server configuration
type Config struct {
	BindAddr      string
	AdminUsername string
	AdminPassword string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		BindAddr:     "0.0.0.0:8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// ImageLoader loads images through the cache tiers
type ImageLoader interface {
	Load(ctx context.Context, url string) (*domain.Image, error)
	Profile() cacher.Profile
	ClearMemory()
}

// DiskCache is the disk cache surface exposed over HTTP
type DiskCache interface {
	Stats() (*domain.CacheStats, error)
	Clear() (int, error)
}

// Replanner re-runs capacity planning and re-targets the disk cache
type Replanner interface {
	Replan() (domain.CapacityPlan, bool, error)
}

// DownloadQueue reports the download backlog
type DownloadQueue interface {
	Len() int
}

// Deps bundles the services the HTTP handlers call into
type Deps struct {
	Store     port.Store
	Loader    ImageLoader
	Disk      DiskCache
	Memory    port.MemoryCache
	Planner   port.CapacityPlanner
	Replanner Replanner
	Downloads DownloadQueue
	Budget    domain.CacheBudget

	// Gatherer serves /metrics; nil disables the endpoint
	Gatherer prometheus.Gatherer
}

// Server represents the HTTP API server
type Server struct {
	config       *Config
	store        port.Store
	logger       *zap.Logger
	server       *http.Server
	imageHandler *ImageHandler
	adminHandler *AdminHandler
	debugHandler *DebugHandler
}

// New creates a new HTTP server
func New(cfg *Config, deps Deps, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		config: cfg,
		store:  deps.Store,
		logger: logger,
	}

	s.imageHandler = NewImageHandler(deps.Loader, logger)
	s.adminHandler = NewAdminHandler(deps.Loader, deps.Disk, deps.Replanner, logger)
	s.debugHandler = NewDebugHandler(deps.Planner, deps.Budget, deps.Disk, deps.Memory, deps.Downloads, logger)

	s.server = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      LoggingMiddleware(logger)(s.routes(deps.Gatherer)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func (s *Server) routes(gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Image endpoint
	mux.HandleFunc("/images", s.imageHandler.HandleImage)

	// Admin endpoints
	if s.config.AdminPassword != "" {
		adminAuth := BasicAuthMiddleware(s.config.AdminUsername, s.config.AdminPassword, s.logger)
		mux.HandleFunc("/admin/cache/reset", adminAuth(s.adminHandler.HandleReset))
	}

	// Debug endpoints
	mux.HandleFunc("/debug/plan", s.debugHandler.HandlePlan)
	mux.HandleFunc("/debug/stats", s.debugHandler.HandleStats)

	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.store.Ping(); err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		http.Error(w, "Database connection failed", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy","time":"` + time.Now().Format(time.RFC3339) + `"}`))
}
