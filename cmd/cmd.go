// Package cmd defines the command-line interface for prism.
package cmd

import (
	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(sprintsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the sprints subcommands to the parent sprints command
	sprintsCmd.AddCommand(sprintsReclassifyCmd)
	sprintsCmd.AddCommand(sprintsStatusCmd)
	sprintsCmd.AddCommand(sprintsClearCmd)
	sprintsCmd.AddCommand(sprintsMigrateCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().StringP("kind", "k", string(schema.IssueKind), "Record kind: issue, pull_request, commit, build or case")
	rootCmd.PersistentFlags().StringP("across", "a", "", "Dimension to group by (empty collapses everything into one group)")
	rootCmd.PersistentFlags().StringP("calculation", "c", string(schema.CountCalculation), "Metric to compute per group")
	rootCmd.PersistentFlags().StringSlice("stack", nil, "Secondary dimensions to nest under each group (repeatable)")
	rootCmd.PersistentFlags().String("interval", string(schema.DayInterval), "Bucket size for temporal dimensions: day, week, month, quarter or year")
	rootCmd.PersistentFlags().String("group-label", "", "Label for the collapsed group when no dimension is given")
	rootCmd.PersistentFlags().StringArray("equals", nil, "Field constraint as field=value[,value...] (repeatable)")
	rootCmd.PersistentFlags().StringArray("excludes", nil, "Field exclusion as field=value[,value...] (repeatable)")
	rootCmd.PersistentFlags().String("from", "", "Only include records created at or after this RFC 3339 timestamp")
	rootCmd.PersistentFlags().String("to", "", "Only include records created before this RFC 3339 timestamp")
	rootCmd.PersistentFlags().Int("page", 0, "Zero-based page number for listings")
	rootCmd.PersistentFlags().Int("page-size", contract.DefaultPageSize, "Records per page for listings")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.SQLiteBackend), "Cache backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("sprint-backend", string(schema.SQLiteBackend), "Sprint mapping backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("sprint-db-connect", "", "Database connection string for sprint mappings (must differ from cache-db-connect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of sprintsReclassifyCmd to Viper
	sprintsReclassifyCmd.Flags().String("record-id", "", "Record to reclassify (empty reclassifies every matching record)")
	sprintsReclassifyCmd.Flags().StringSlice("milestone-ids", nil, "Milestone ids to classify against")
	if err := viper.BindPFlags(sprintsReclassifyCmd.Flags()); err != nil {
		contract.LogFatal("Error binding sprints reclassify flags", err)
	}

	// Bind all flags of sprintsMigrateCmd to Viper
	sprintsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(sprintsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding sprints migrate flags", err)
	}
}
