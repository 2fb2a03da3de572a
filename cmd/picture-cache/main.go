package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/picture-cache/internal/adapter/filesystem"
	"github.com/vertextoedge/picture-cache/internal/config"
	"github.com/vertextoedge/picture-cache/internal/logger"
	"github.com/vertextoedge/picture-cache/internal/metrics"
	"github.com/vertextoedge/picture-cache/internal/port"
	"github.com/vertextoedge/picture-cache/internal/service/cacher"
	"github.com/vertextoedge/picture-cache/internal/service/planner"
)

const version = "0.3.0"

const metricsPrefix = "picture_cache"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "picture-cache",
		Short:         "Image cache daemon with adaptive disk placement",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	serve := newServeCommand(&configPath)
	root.AddCommand(serve, newPlanCommand(&configPath))

	// Running without a subcommand starts the daemon
	root.RunE = serve.RunE

	return root
}

// setup loads configuration and builds the logger shared by every command
func setup(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, zapLogger, nil
}

// newPlanner wires the storage probes for the configured tiers. With an
// index, bytes the disk cache already holds count as free for it.
func newPlanner(cfg *config.Config, images cacher.IndexedSize, reg prometheus.Registerer, zapLogger *zap.Logger) (*planner.Planner, metrics.Metrics) {
	m := metrics.NewPromMetrics(reg, metricsPrefix)
	mounts := filesystem.NewMountState(cfg.Storage.ExternalMountPoint, cfg.Storage.RequireMountPoint)
	paths := filesystem.Paths{
		External: cfg.Storage.ExternalCacheDir,
		Internal: cfg.Storage.InternalCacheDir,
	}

	var space port.FreeSpaceQuery = filesystem.FreeSpace{}
	if images != nil {
		space = cacher.NewReclaimableSpace(space, images)
	}
	return planner.New(mounts, space, paths, m, logger.Named(zapLogger, "planner")), m
}
