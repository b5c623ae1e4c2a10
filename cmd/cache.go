package cmd

import (
	"fmt"

	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/internal/iocache"
	"github.com/shipmetrics/prism/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cacheSetup loads minimal configuration needed for cache operations.
// This is used by commands that need cache access without full shared setup.
func cacheSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	// Get cache-related config values
	backend := schema.DatabaseBackend(viper.GetString("cache-backend"))
	connStr := viper.GetString("cache-db-connect")

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	// Initialize caching with the loaded config (no sprint store for cache commands)
	if err := iocache.InitStores(backend, connStr, "", ""); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	cfg.CacheBackend = backend
	cfg.CacheDBConnect = connStr

	return nil
}

// cacheSetupWrapper wraps cacheSetup to provide PreRunE for cache commands.
func cacheSetupWrapper(_ *cobra.Command, _ []string) error {
	return cacheSetup()
}

// cacheCmd focused on cache management.
//
// Note: Cache subcommands use minimal initialization (cacheSetup) instead of
// the full sharedSetup used by query commands. This avoids snapshot loading
// and query validation for simple cache operations.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the aggregation result cache (improves performance)",
	Long: `Manage the result cache that speeds up repeated aggregation queries.

Prism caches aggregation results keyed by the canonical filter hash, so
re-running the same query against the same snapshot skips the whole
group-and-calculate pass. Entries expire after 24 hours.

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status - Show cache statistics and connection info
  clear  - Remove all cached results

Examples:
  # Check cache status
  prism cache status

  # Clear cache after re-ingesting a snapshot
  prism cache clear`,
}

// cacheClearCmd clears the cache.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached aggregation results",
	Long: `Delete all cached aggregation results from the configured backend.

Use this when:
- The snapshot was re-ingested with corrected data
- Cache may be stale or corrupted
- Testing query performance without cache

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the cache table

Examples:
  # Clear SQLite cache (default)
  prism cache clear

  # Clear MySQL cache (set connection string via env variable)
  PRISM_CACHE_BACKEND=mysql PRISM_CACHE_DB_CONNECT="..." prism cache clear`,
	PreRunE: cacheSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearCache(cfg.CacheBackend, iocache.GetCacheDBFilePath(), cfg.CacheDBConnect); err != nil {
			contract.LogFatal("Failed to clear cache", err)
		}
		fmt.Println("Cache cleared successfully.")
	},
}

// cacheStatusCmd shows cache status.
var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display cache statistics and connection details",
	Long: `Show detailed information about the aggregation result cache.

Displays:
- Backend type and connection status
- Total number of cached entries
- Last and oldest cache entry timestamps
- Cache table size

Examples:
  # Check cache status
  prism cache status`,
	PreRunE: cacheSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := iocache.Manager.GetResultCache().GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get cache status", err)
		}
		iocache.PrintStoreStatus("Result Cache", status)
	},
}
