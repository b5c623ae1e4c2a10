package iocache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/schema"
)

// ResultCacheImpl handles durable result caching using various database backends.
type ResultCacheImpl struct {
	db        *sql.DB
	tableName string
	backend   schema.DatabaseBackend
	connStr   string
}

var _ contract.ResultCache = &ResultCacheImpl{} // Compile-time check

// NewResultCache initializes and returns a new ResultCache based on the backend type.
func NewResultCache(tableName string, backend schema.DatabaseBackend, connStr string) (contract.ResultCache, error) {
	// Validate table name to prevent SQL injection
	if err := validateTableName(tableName); err != nil {
		return nil, err
	}

	if backend == schema.NoneBackend {
		// Return a no-op store for disabled caching
		return &ResultCacheImpl{
			db:        nil,
			tableName: tableName,
			backend:   backend,
			connStr:   connStr,
		}, nil
	}

	db, _, err := openBackend(backend, connStr, GetCacheDBFilePath())
	if err != nil {
		return nil, err
	}

	// Create the table schema
	query := getCreateTableQuery(tableName, backend)
	if _, err := db.Exec(query); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	return &ResultCacheImpl{
		db:        db,
		tableName: tableName,
		backend:   backend,
		connStr:   connStr,
	}, nil
}

// getCreateTableQuery returns the CREATE TABLE query for the given backend.
func getCreateTableQuery(tableName string, backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(tableName, backend)
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				cache_key VARCHAR(255) PRIMARY KEY,
				cache_value BLOB NOT NULL,
				cache_version INT NOT NULL,
				cache_timestamp BIGINT NOT NULL
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				cache_key TEXT PRIMARY KEY,
				cache_value BYTEA NOT NULL,
				cache_version INTEGER NOT NULL,
				cache_timestamp BIGINT NOT NULL
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				cache_key TEXT PRIMARY KEY,
				cache_value BLOB NOT NULL,
				cache_version INTEGER NOT NULL,
				cache_timestamp INTEGER NOT NULL
			);
		`, quotedTableName)
	}
}

// Get retrieves a value by key from the store.
func (rc *ResultCacheImpl) Get(key string) ([]byte, int, int64, error) {
	// Return not found error for NoneBackend
	if rc.backend == schema.NoneBackend || rc.db == nil {
		return nil, 0, 0, sql.ErrNoRows
	}

	var value []byte
	var version int
	var ts int64

	// Use backend-specific placeholder
	quotedTableName := quoteTableName(rc.tableName, rc.backend)
	placeholder := rc.getPlaceholder()
	query := fmt.Sprintf(`SELECT cache_value, cache_version, cache_timestamp FROM %s WHERE cache_key = %s`, quotedTableName, placeholder)
	row := rc.db.QueryRow(query, key)

	if err := row.Scan(&value, &version, &ts); err != nil {
		return nil, 0, 0, err
	}
	return value, version, ts, nil
}

// Set inserts or replaces a key/value pair in the store.
func (rc *ResultCacheImpl) Set(key string, value []byte, version int, timestamp int64) error {
	// Skip for NoneBackend
	if rc.backend == schema.NoneBackend || rc.db == nil {
		return nil
	}

	// Use backend-specific UPSERT
	query := rc.getUpsertQuery()
	_, err := rc.db.Exec(query, key, value, version, timestamp)
	return err
}

// getPlaceholder returns the parameter placeholder for the backend.
func (rc *ResultCacheImpl) getPlaceholder() string {
	switch rc.backend {
	case schema.PostgreSQLBackend:
		return "$1"
	default: // SQLite and MySQL
		return "?"
	}
}

// getUpsertQuery returns the UPSERT query for the backend.
func (rc *ResultCacheImpl) getUpsertQuery() string {
	quotedTableName := quoteTableName(rc.tableName, rc.backend)
	switch rc.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (cache_key, cache_value, cache_version, cache_timestamp) VALUES (?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE cache_value = new.cache_value, cache_version = new.cache_version, cache_timestamp = new.cache_timestamp`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (cache_key, cache_value, cache_version, cache_timestamp) VALUES ($1, $2, $3, $4)
			ON CONFLICT (cache_key) DO UPDATE SET cache_value = EXCLUDED.cache_value, cache_version = EXCLUDED.cache_version, cache_timestamp = EXCLUDED.cache_timestamp`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (cache_key, cache_value, cache_version, cache_timestamp) VALUES (?, ?, ?, ?)`, quotedTableName)
	}
}

// Close closes the underlying DB connection.
func (rc *ResultCacheImpl) Close() error {
	if rc.db != nil {
		return rc.db.Close()
	}
	return nil
}

// GetStatus returns status information about the result cache.
func (rc *ResultCacheImpl) GetStatus() (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:   string(rc.backend),
		Connected: rc.db != nil,
	}

	if rc.backend == schema.NoneBackend || rc.db == nil {
		return status, nil
	}

	quotedTableName := quoteTableName(rc.tableName, rc.backend)

	// Get total entries
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedTableName)
	row := rc.db.QueryRow(countQuery)
	if err := row.Scan(&status.TotalEntries); err != nil {
		return status, fmt.Errorf("failed to get total entries: %w", err)
	}

	if status.TotalEntries == 0 {
		return status, nil
	}

	// Get last entry time
	lastQuery := fmt.Sprintf("SELECT MAX(cache_timestamp) FROM %s", quotedTableName)
	row = rc.db.QueryRow(lastQuery)
	var lastTs int64
	if err := row.Scan(&lastTs); err != nil {
		return status, fmt.Errorf("failed to get last entry time: %w", err)
	}
	status.LastEntryTime = time.Unix(lastTs, 0)

	// Get oldest entry time
	oldestQuery := fmt.Sprintf("SELECT MIN(cache_timestamp) FROM %s", quotedTableName)
	row = rc.db.QueryRow(oldestQuery)
	var oldestTs int64
	if err := row.Scan(&oldestTs); err != nil {
		return status, fmt.Errorf("failed to get oldest entry time: %w", err)
	}
	status.OldestEntryTime = time.Unix(oldestTs, 0)

	rc.fillTableSize(&status)
	return status, nil
}

// fillTableSize estimates the on-disk size of the cache table. Failures fall
// back to a rough row-count estimate rather than erroring the whole status.
func (rc *ResultCacheImpl) fillTableSize(status *schema.StoreStatus) {
	switch rc.backend {
	case schema.SQLiteBackend:
		sizeQuery := "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()"
		row := rc.db.QueryRow(sizeQuery)
		if err := row.Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = 0
		}

	case schema.MySQLBackend:
		// Fallback rough estimate if information_schema query fails
		status.TableSizeBytes = int64(status.TotalEntries) * 1000

		cfg, err := mysql.ParseDSN(rc.connStr)
		if err != nil || cfg.DBName == "" {
			return
		}
		sizeQuery := "SELECT data_length + index_length FROM information_schema.tables WHERE table_schema = ? AND table_name = ?"
		row := rc.db.QueryRow(sizeQuery, cfg.DBName, rc.tableName)
		if err := row.Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = int64(status.TotalEntries) * 1000
		}

	case schema.PostgreSQLBackend:
		sizeQuery := "SELECT pg_total_relation_size($1)"
		row := rc.db.QueryRow(sizeQuery, rc.tableName)
		if err := row.Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = int64(status.TotalEntries) * 1000
		}
	}
}
