// Package iocache holds the durable SQL-backed stores: the aggregation
// result cache and the sprint-mapping store. Both support SQLite, MySQL and
// PostgreSQL backends plus a no-op "none" backend.
package iocache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/schema"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// resultsTable is the name of the table for aggregation result caching.
const resultsTable = "prism_result_cache"

// Global Manager instance for main logic.
var (
	Manager   = &StoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// StoreManager manages the durable store instances.
type StoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	results      contract.ResultCache
	sprints      contract.SprintMappingStore
}

// GetResultCache returns the aggregation result cache.
func (mgr *StoreManager) GetResultCache() contract.ResultCache {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.results
}

// GetSprintStore returns the sprint-mapping store.
func (mgr *StoreManager) GetSprintStore() contract.SprintMappingStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.sprints
}

// GetCacheDBFilePath returns the path to the SQLite DB file for result caching.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".prism_cache.db"
	}
	return filepath.Join(homeDir, ".prism_cache.db")
}

// GetSprintDBFilePath returns the path to the SQLite DB file for sprint mappings.
func GetSprintDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".prism_sprints.db"
	}
	return filepath.Join(homeDir, ".prism_sprints.db")
}

// InitStores initializes the global store manager.
// cacheBackend and sprintBackend can be empty to skip the respective store.
func InitStores(cacheBackend schema.DatabaseBackend, cacheConnStr string, sprintBackend schema.DatabaseBackend, sprintConnStr string) error {
	var initErr error

	initOnce.Do(func() {
		// This function body runs exactly once, even with concurrent calls.
		var err error

		var results contract.ResultCache
		if cacheBackend != "" {
			results, err = NewResultCache(resultsTable, cacheBackend, cacheConnStr)
			if err != nil {
				initErr = fmt.Errorf("failed to initialize result cache: %w", err)
				return
			}
		}

		var sprints contract.SprintMappingStore
		if sprintBackend != "" {
			sprints, err = NewSprintStore(sprintBackend, sprintConnStr)
			if err != nil {
				if results != nil {
					_ = results.Close()
				}
				initErr = fmt.Errorf("failed to initialize sprint store: %w", err)
				return
			}
		}

		Manager.results = results
		Manager.sprints = sprints
	})

	return initErr
}

// CloseStores should be called on application shutdown.
func CloseStores() { // called in main defer
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.results != nil {
			_ = Manager.results.Close()
		}
		if Manager.sprints != nil {
			_ = Manager.sprints.Close()
		}
	})
}

// ClearCache clears the result cache for the specified backend.
// For SQLite, it deletes the database file.
// For SQL backends (MySQL/PostgreSQL), it drops the table.
// For NoneBackend, it does nothing.
func ClearCache(backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		if dbFilePath == "" {
			return fmt.Errorf("dbFilePath cannot be empty for SQLite backend")
		}
		// Remove the file; ignore if it doesn't exist
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbFilePath, err)
		}
		return nil

	case schema.MySQLBackend:
		return clearSQLTable("mysql", connStr, resultsTable)

	case schema.PostgreSQLBackend:
		return clearSQLTable("pgx", connStr, resultsTable)

	case schema.NoneBackend:
		return nil

	default:
		return fmt.Errorf("unsupported cache backend for clearing: %s", backend)
	}
}

// ClearSprints clears the sprint-mapping store for the specified backend.
// For SQLite, it deletes the database file.
// For SQL backends (MySQL/PostgreSQL), it drops the table.
// For NoneBackend, it does nothing.
func ClearSprints(backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		if dbFilePath == "" {
			return fmt.Errorf("dbFilePath cannot be empty for SQLite backend")
		}
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbFilePath, err)
		}
		return nil

	case schema.MySQLBackend:
		return clearSQLTable("mysql", connStr, sprintMappingsTable)

	case schema.PostgreSQLBackend:
		return clearSQLTable("pgx", connStr, sprintMappingsTable)

	case schema.NoneBackend:
		return nil

	default:
		return fmt.Errorf("unsupported sprint backend for clearing: %s", backend)
	}
}

// clearSQLTable connects to the SQL database and drops the table if it exists.
func clearSQLTable(driverName, connStr, tableName string) error {
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s database: %w", driverName, err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping %s database: %w", driverName, err)
	}

	query := fmt.Sprintf("DROP TABLE IF EXISTS %s", tableName)
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", tableName, err)
	}

	return nil
}

// validateTableName validates that the table name is a safe SQL identifier.
// It ensures the name consists only of alphanumeric characters and underscores,
// starting with a letter or underscore, to prevent SQL injection.
func validateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	matched, err := regexp.MatchString(`^[a-zA-Z_][a-zA-Z0-9_]*$`, name)
	if err != nil {
		return fmt.Errorf("error validating table name: %w", err)
	}
	if !matched {
		return fmt.Errorf("invalid table name: %s (must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$)", name)
	}
	return nil
}

// quoteTableName returns the properly quoted table name for the given backend.
func quoteTableName(name string, backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf("`%s`", name)
	default: // SQLite and PostgreSQL
		return fmt.Sprintf("\"%s\"", name)
	}
}

// openBackend opens and pings a database connection for the given backend.
func openBackend(backend schema.DatabaseBackend, connStr, defaultPath string) (*sql.DB, string, error) {
	var db *sql.DB
	var err error
	var driverName string

	switch backend {
	case schema.SQLiteBackend:
		driverName = "sqlite"
		dbPath := connStr
		if dbPath == "" {
			dbPath = defaultPath
		}
		db, err = sql.Open(driverName, dbPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)

	case schema.MySQLBackend:
		// connStr should be:
		// user:password@tcp(host:port)/dbname
		driverName = "mysql"
		db, err = sql.Open(driverName, connStr)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open MySQL database: %w. Check connection string format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLBackend:
		// connStr should be:
		// host=localhost port=5432 user=postgres password=secret dbname=prism
		driverName = "pgx"
		db, err = sql.Open(driverName, connStr)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open PostgreSQL database: %w. Check connection string format: host=localhost port=5432 user=postgres dbname=mydb", err)
		}

	default:
		return nil, "", fmt.Errorf("unsupported backend: %s. Must be sqlite, mysql, postgresql, or none", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("failed to connect to %s database. Check that the server is running and connection parameters are valid: %w", backend, err)
	}
	return db, driverName, nil
}
