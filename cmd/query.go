package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/shipmetrics/prism/core"
	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/internal/iocache"
	"github.com/shipmetrics/prism/internal/outwriter"
	"github.com/shipmetrics/prism/internal/snapshot"
	"github.com/shipmetrics/prism/schema"
	"github.com/spf13/cobra"
)

// buildEngine loads the snapshot and wires the engine with the durable stores
// from the global manager. The in-memory store covers the sprint mapping
// dimension only when no durable sprint store is configured.
func buildEngine(cfg *contract.Config) (*core.Engine, error) {
	store, err := snapshot.Load(cfg.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %q: %w", cfg.SnapshotPath, err)
	}

	opts := []core.Option{
		core.WithTeamResolver(store),
		core.WithTimelineReader(store),
		core.WithMilestoneReader(store),
	}
	if sprints := iocache.Manager.GetSprintStore(); sprints != nil {
		opts = append(opts, core.WithSprintMappingStore(sprints))
	} else {
		opts = append(opts, core.WithSprintMappingStore(store))
	}
	if cache := iocache.Manager.GetResultCache(); cache != nil {
		opts = append(opts, core.WithResultCache(cache))
	}
	return core.NewEngine(store, opts...), nil
}

// runAggregate executes the aggregation query and writes the results.
func runAggregate(ctx context.Context, cfg *contract.Config) error {
	start := time.Now()
	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	var result schema.AggregateResult
	if len(cfg.StackAcross) > 0 {
		result, err = eng.StackedGroupBy(ctx, cfg.FilterSpec(), cfg.StackAcross)
	} else {
		result, err = eng.GroupByAndCalculate(ctx, cfg.FilterSpec())
	}
	if err != nil {
		return err
	}

	return outwriter.NewOutWriter().WriteAggregation(result, cfg, time.Since(start))
}

// runList executes the listing query and writes the results.
func runList(ctx context.Context, cfg *contract.Config) error {
	start := time.Now()
	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	result, err := eng.List(ctx, cfg.FilterSpec())
	if err != nil {
		return err
	}

	return outwriter.NewOutWriter().WriteList(result, cfg, time.Since(start))
}

// aggregateCmd groups records along a dimension and computes a metric per group.
var aggregateCmd = &cobra.Command{
	Use:   "aggregate [snapshot-path]",
	Short: "Group records along a dimension and compute a metric per group.",
	Long: `Filter a snapshot's records, group them along a dimension and compute an
aggregate metric for every group.

Dimensions cover stored fields (status, assignee, project), time fields
bucketed by --interval (created_at, closed_at) and the derived sprint_mapping
dimension. Metrics range from plain counts to duration spreads and story
point reports.

Examples:
  # Count open issues per assignee
  prism aggregate ./snapshot --equals status=OPEN --across assignee

  # Resolution time per project, nested by priority
  prism aggregate ./snapshot --across project --stack priority --calculation resolution_time

  # Weekly created-issue counts for one team
  prism aggregate ./snapshot --across created_at --interval week --equals "assignee=team_id:platform"

  # Export a sprint delivery report to CSV
  prism aggregate ./snapshot --across sprint_mapping --calculation story_point_report --output csv --output-file sprints.csv`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := runAggregate(rootCtx, cfg); err != nil {
			contract.LogFatal("Cannot run aggregation", err)
		}
	},
}

// listCmd lists the raw records matching a filter.
var listCmd = &cobra.Command{
	Use:   "list [snapshot-path]",
	Short: "List the raw records matching a filter, paginated.",
	Long: `Filter a snapshot's records and print the matching raw records page by page.

Useful for inspecting exactly which records feed an aggregation, or for
exporting filtered record sets to CSV/JSON.

Examples:
  # First page of open issues
  prism list ./snapshot --equals status=OPEN

  # Page through a large result set
  prism list ./snapshot --equals project=api --page 2 --page-size 100

  # Export matching records as JSON
  prism list ./snapshot --equals status=OPEN --output json --output-file open.json`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := runList(rootCtx, cfg); err != nil {
			contract.LogFatal("Cannot run listing", err)
		}
	},
}
