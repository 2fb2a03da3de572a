package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vertextoedge/picture-cache/internal/adapter/sqlite"
	"github.com/vertextoedge/picture-cache/internal/domain/vo"
	"github.com/vertextoedge/picture-cache/internal/service/cacher"
)

// newPlanCommand creates the plan command
func newPlanCommand(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the disk cache placement for this machine",
		Long: `Query the current mount state and free space and print where the
disk cache would be placed and how large it may grow.

Examples:
  picture-cache plan
  picture-cache plan --json --config /etc/picture-cache.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, *configPath, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the plan as JSON")

	return cmd
}

func runPlan(cmd *cobra.Command, configPath string, asJSON bool) error {
	cfg, zapLogger, err := setup(configPath)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	// A running daemon's index makes the answer match what it plans.
	var images cacher.IndexedSize
	if _, err := os.Stat(cfg.Database.Path); err == nil {
		store, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		images = store
	}

	p, _ := newPlanner(cfg, images, prometheus.NewRegistry(), zapLogger)
	budget := cfg.Storage.GetBudget()

	plan, err := p.Plan(budget.ExternalBytes, budget.InternalBytes, budget.MarginBytes)
	if err != nil {
		return err
	}
	prefer := p.PreferDiskCache()

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"tier":              tierName(plan.IsNoCache(), plan.Tier.Kind.String()),
			"root_path":         plan.Tier.RootPath,
			"requested_bytes":   plan.RequestedBytes,
			"prefer_disk_cache": prefer,
		})
	}

	if plan.IsNoCache() {
		fmt.Fprintln(out, "disk cache: disabled (no tier has room)")
	} else {
		fmt.Fprintf(out, "disk cache: %s tier at %s, %s\n",
			plan.Tier.Kind, plan.Tier.RootPath, vo.HumanBytes(plan.RequestedBytes))
	}
	fmt.Fprintf(out, "configured: external %s, internal %s, margin %s\n",
		vo.HumanBytes(budget.ExternalBytes),
		vo.HumanBytes(budget.InternalBytes),
		vo.HumanBytes(budget.MarginBytes))
	fmt.Fprintf(out, "prefer disk cache: %t\n", prefer)
	return nil
}

func tierName(noCache bool, name string) string {
	if noCache {
		return "none"
	}
	return name
}
