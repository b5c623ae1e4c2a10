package cmd

import (
	"context"
	"fmt"

	"github.com/shipmetrics/prism/core/timeline"
	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/internal/iocache"
	"github.com/shipmetrics/prism/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// sprintsSetup loads minimal configuration needed for sprint store operations.
func sprintsSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	// Get sprint-related config values
	backend := schema.DatabaseBackend(viper.GetString("sprint-backend"))
	connStr := viper.GetString("sprint-db-connect")

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	// Initialize stores with the loaded config (no result cache for sprint commands)
	if err := iocache.InitStores("", "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize sprint store: %w", err)
	}

	cfg.SprintBackend = backend
	cfg.SprintDBConnect = connStr

	return nil
}

// sprintsSetupWrapper wraps sprintsSetup to provide PreRunE for sprint commands.
func sprintsSetupWrapper(_ *cobra.Command, _ []string) error {
	return sprintsSetup()
}

// sprintsMigrateSetup loads minimal configuration needed for migrate operations.
// This is a specialized setup that does NOT initialize stores or create tables,
// allowing migrations to run on a fresh database.
func sprintsMigrateSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend := schema.DatabaseBackend(viper.GetString("sprint-backend"))
	connStr := viper.GetString("sprint-db-connect")

	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	// For SQLite backend with empty connection string, use default path
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = iocache.GetSprintDBFilePath()
	}

	cfg.SprintBackend = backend
	cfg.SprintDBConnect = connStr

	return nil
}

// sprintsMigrateSetupWrapper wraps sprintsMigrateSetup to provide PreRunE for migrate command.
func sprintsMigrateSetupWrapper(_ *cobra.Command, _ []string) error {
	return sprintsMigrateSetup()
}

// runReclassify recomputes sprint mappings for the selected records.
func runReclassify(ctx context.Context, cfg *contract.Config, recordID string, milestoneIDs []string) error {
	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	recordIDs := []string{recordID}
	if recordID == "" {
		// Reclassify every record matching the filter, page by page.
		recordIDs = recordIDs[:0]
		spec := cfg.FilterSpec()
		spec.PageSize = contract.MaxPageSize
		for page := 0; ; page++ {
			spec.Page = page
			result, err := eng.List(ctx, spec)
			if err != nil {
				return err
			}
			for _, r := range result.Records {
				recordIDs = append(recordIDs, r.ID)
			}
			if result.Count < spec.PageSize {
				break
			}
		}
	}

	total := 0
	for _, id := range recordIDs {
		rows, err := eng.ReclassifySprints(ctx, id, milestoneIDs, timeline.DefaultSprintFields, timeline.DefaultTerminalStatuses)
		if err != nil {
			return fmt.Errorf("failed to reclassify record %q: %w", id, err)
		}
		for _, row := range rows {
			fmt.Printf("%s → %s planned=%t delivered=%t points=%.1f\n",
				row.RecordID, row.MilestoneID, row.Planned, row.Delivered, row.PointsPlanned)
		}
		total += len(rows)
	}
	fmt.Printf("Upserted %d sprint mappings for %d records.\n", total, len(recordIDs))
	return nil
}

// sprintsCmd focused on sprint mapping management.
var sprintsCmd = &cobra.Command{
	Use:   "sprints",
	Short: "Manage derived sprint classifications",
	Long: `Manage the derived sprint classifications that power the sprint_mapping
dimension.

Classification replays a record's field history against each milestone window
to decide whether the record was planned into the sprint and whether it was
delivered inside it, capturing the story points at those moments.

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  reclassify - Recompute classifications from record history
  status     - Show sprint store statistics
  clear      - Remove all sprint mappings
  migrate    - Run database schema migrations

Examples:
  # Reclassify one record against two sprints
  prism sprints reclassify ./snapshot --record-id PROJ-1 --milestone-ids sprint-8,sprint-9

  # Check sprint store status
  prism sprints status`,
}

// sprintsReclassifyCmd recomputes sprint mappings.
var sprintsReclassifyCmd = &cobra.Command{
	Use:   "reclassify [snapshot-path]",
	Short: "Recompute sprint classifications from record history",
	Long: `Replay record field history against milestone windows and upsert the
resulting sprint mappings.

The pass is idempotent: re-running it on unchanged history produces identical
rows. With --record-id it classifies a single record; without it, every record
matching the filter flags is classified.

Examples:
  # Reclassify one record
  prism sprints reclassify ./snapshot --record-id PROJ-1 --milestone-ids sprint-9

  # Reclassify all open issues against the current sprint
  prism sprints reclassify ./snapshot --equals status=OPEN --milestone-ids sprint-9`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		recordID := viper.GetString("record-id")
		milestoneIDs := viper.GetStringSlice("milestone-ids")
		if len(milestoneIDs) == 0 {
			contract.LogFatal("Cannot reclassify", fmt.Errorf("--milestone-ids is required"))
		}
		if err := runReclassify(rootCtx, cfg, recordID, milestoneIDs); err != nil {
			contract.LogFatal("Cannot reclassify sprints", err)
		}
	},
}

// sprintsStatusCmd shows sprint store status.
var sprintsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display sprint store statistics and connection details",
	Long: `Show detailed information about the sprint mapping store.

Displays:
- Backend type and connection status
- Total number of stored mappings

Examples:
  # Check sprint store status
  prism sprints status`,
	PreRunE: sprintsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		reporter, ok := iocache.Manager.GetSprintStore().(iocache.StatusReporter)
		if !ok {
			contract.LogFatal("Failed to get sprint store status", fmt.Errorf("store does not report status"))
		}
		status, err := reporter.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get sprint store status", err)
		}
		iocache.PrintStoreStatus("Sprint Mappings", status)
	},
}

// sprintsClearCmd clears the sprint mappings.
var sprintsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored sprint mappings",
	Long: `Delete all derived sprint classifications from the configured backend.

Mappings can always be recomputed from record history with 'sprints
reclassify', so clearing is safe but may be slow to rebuild for large
snapshots.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the sprint mappings table

Examples:
  # Clear and rebuild
  prism sprints clear
  prism sprints reclassify ./snapshot --milestone-ids sprint-9`,
	PreRunE: sprintsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearSprints(cfg.SprintBackend, iocache.GetSprintDBFilePath(), cfg.SprintDBConnect); err != nil {
			contract.LogFatal("Failed to clear sprint mappings", err)
		}
		fmt.Println("Sprint mappings cleared successfully.")
	},
}

// sprintsMigrateCmd runs database migrations for the sprint store.
var sprintsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the sprint mapping store.

By default, migrates to the latest version. Use --target-version for specific
versions.

Examples:
  # Migrate to latest version (default)
  prism sprints migrate

  # Migrate to specific version
  prism sprints migrate --target-version 1

  # Rollback to initial state
  prism sprints migrate --target-version 0`,
	PreRunE: sprintsMigrateSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := iocache.MigrateSprints(cfg.SprintBackend, cfg.SprintDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
