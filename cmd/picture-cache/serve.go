package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vertextoedge/picture-cache/internal/adapter/filesystem"
	"github.com/vertextoedge/picture-cache/internal/adapter/httpfetch"
	"github.com/vertextoedge/picture-cache/internal/adapter/memcache"
	"github.com/vertextoedge/picture-cache/internal/adapter/sqlite"
	"github.com/vertextoedge/picture-cache/internal/config"
	"github.com/vertextoedge/picture-cache/internal/logger"
	"github.com/vertextoedge/picture-cache/internal/port"
	"github.com/vertextoedge/picture-cache/internal/service/cacher"
	"github.com/vertextoedge/picture-cache/internal/service/maintenance"
	"github.com/vertextoedge/picture-cache/internal/service/queue"
	"github.com/vertextoedge/picture-cache/internal/service/server"
)

// newServeCommand creates the serve command
func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the image cache daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, zapLogger, err := setup(configPath)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting picture-cache",
		zap.String("version", version),
		zap.String("config", configPath),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Open database
	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		zapLogger.Error("failed to open database", zap.Error(err), zap.String("path", cfg.Database.Path))
		return err
	}
	defer store.Close()

	p, m := newPlanner(cfg, store, reg, zapLogger)

	// Memory tier
	memory, err := memcache.New(cfg.Memory.GetMaxSize(), cfg.Memory.GetExpectedItemSize())
	if err != nil {
		return err
	}
	defer memory.Close()

	// Disk tier starts disabled; the first replan places it
	disk := cacher.NewDiskCache(store, func(root string) (port.FileSystem, error) {
		return filesystem.NewManager(root)
	}, m, logger.Named(zapLogger, "disk_cache"))

	maintenanceService := maintenance.New(&maintenance.Config{
		Budget:         cfg.Storage.GetBudget(),
		ReplanInterval: cfg.Storage.GetReplanInterval(),
		TempFileMaxAge: cfg.Storage.GetTempFileMaxAge(),
	}, p, disk, logger.Named(zapLogger, "maintenance"))

	plan, _, err := maintenanceService.Replan()
	if err != nil {
		// Serving from memory is still useful without a disk tier
		zapLogger.Error("initial storage plan failed", zap.Error(err))
	}

	downloads, err := newDownloadQueue(cfg, zapLogger)
	if err != nil {
		return err
	}

	fetcher := httpfetch.NewFetcher(&httpfetch.Config{
		Timeout:      cfg.Download.GetTimeout(),
		MaxBodyBytes: cfg.Download.GetMaxBodySize(),
		UserAgent:    cfg.Download.UserAgent,
		AllowedHosts: cfg.Download.AllowedHosts,
	}, nil)
	if len(cfg.Download.AllowedHosts) == 0 {
		zapLogger.Warn("download.allowed_hosts is empty, images are fetched from any host")
	}
	connectivity := httpfetch.NewConnectivity(cfg.Download.ConnectivityURL, cfg.Download.GetConnectivityTimeout(), zapLogger).
		WithProbeInterval(cfg.Download.GetConnectivityInterval())

	loader := cacher.NewLoader(memory, disk, p, fetcher, connectivity, downloads, m, logger.Named(zapLogger, "loader"))

	httpServer := server.New(&server.Config{
		BindAddr:      cfg.HTTP.BindAddr,
		AdminUsername: cfg.HTTP.AdminUsername,
		AdminPassword: cfg.HTTP.AdminPassword,
		ReadTimeout:   cfg.HTTP.GetReadTimeout(),
		WriteTimeout:  cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:   cfg.HTTP.GetIdleTimeout(),
	}, server.Deps{
		Store:     store,
		Loader:    loader,
		Disk:      disk,
		Memory:    memory,
		Planner:   p,
		Replanner: maintenanceService,
		Downloads: downloads,
		Budget:    cfg.Storage.GetBudget(),
		Gatherer:  reg,
	}, logger.Named(zapLogger, "http"))

	g, ctx := errgroup.WithContext(ctx)

	if err := downloads.Start(ctx); err != nil {
		return err
	}
	defer downloads.Stop()

	g.Go(func() error {
		return maintenanceService.Start(ctx)
	})

	g.Go(func() error {
		return httpServer.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		maintenanceService.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Stop(shutdownCtx)
	})

	zapLogger.Info("application started successfully",
		zap.String("http_addr", cfg.HTTP.BindAddr),
		zap.Stringer("disk_plan", plan),
		zap.String("profile", loader.Profile().Name),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zapLogger.Error("service stopped with error", zap.Error(err))
		return err
	}

	zapLogger.Info("application stopped successfully")
	return nil
}

func newDownloadQueue(cfg *config.Config, zapLogger *zap.Logger) (*queue.Queue, error) {
	order, err := queue.ParseOrder(cfg.Download.Order)
	if err != nil {
		return nil, err
	}
	return queue.New(&queue.Config{
		Workers:  cfg.Download.Workers,
		Capacity: cfg.Download.QueueSize,
		Order:    order,
	}, logger.Named(zapLogger, "downloads")), nil
}
