package iocache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/schema"
)

// sprintMappingsTable is the name of the table for derived sprint rows.
const sprintMappingsTable = "prism_sprint_mappings"

// SprintStoreImpl implements the SprintMappingStore interface over SQL.
type SprintStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.SprintMappingStore = &SprintStoreImpl{} // Compile-time check

// NewSprintStore creates a new SprintMappingStore with the specified backend.
func NewSprintStore(backend schema.DatabaseBackend, connStr string) (contract.SprintMappingStore, error) {
	if backend == schema.NoneBackend {
		// Return a no-op store for disabled sprint tracking
		return &SprintStoreImpl{db: nil, backend: backend}, nil
	}

	db, _, err := openBackend(backend, connStr, GetSprintDBFilePath())
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(getCreateSprintMappingsQuery(backend)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", sprintMappingsTable, err)
	}

	return &SprintStoreImpl{db: db, backend: backend}, nil
}

// getCreateSprintMappingsQuery returns the CREATE TABLE query for the backend.
func getCreateSprintMappingsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(sprintMappingsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				tenant VARCHAR(64) NOT NULL,
				integration VARCHAR(64) NOT NULL,
				record_id VARCHAR(255) NOT NULL,
				milestone_id VARCHAR(255) NOT NULL,
				added_at DATETIME(6),
				planned BOOLEAN NOT NULL,
				delivered BOOLEAN NOT NULL,
				outside_of_window BOOLEAN NOT NULL,
				points_planned DOUBLE NOT NULL,
				points_delivered DOUBLE NOT NULL,
				PRIMARY KEY (tenant, integration, record_id, milestone_id)
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				tenant TEXT NOT NULL,
				integration TEXT NOT NULL,
				record_id TEXT NOT NULL,
				milestone_id TEXT NOT NULL,
				added_at TIMESTAMPTZ,
				planned BOOLEAN NOT NULL,
				delivered BOOLEAN NOT NULL,
				outside_of_window BOOLEAN NOT NULL,
				points_planned DOUBLE PRECISION NOT NULL,
				points_delivered DOUBLE PRECISION NOT NULL,
				PRIMARY KEY (tenant, integration, record_id, milestone_id)
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				tenant TEXT NOT NULL,
				integration TEXT NOT NULL,
				record_id TEXT NOT NULL,
				milestone_id TEXT NOT NULL,
				added_at TEXT,
				planned BOOLEAN NOT NULL,
				delivered BOOLEAN NOT NULL,
				outside_of_window BOOLEAN NOT NULL,
				points_planned REAL NOT NULL,
				points_delivered REAL NOT NULL,
				PRIMARY KEY (tenant, integration, record_id, milestone_id)
			);
		`, quotedTableName)
	}
}

// Upsert writes one derived row, keyed by (tenant, integration, record,
// milestone). It updates in place when the key exists and inserts otherwise;
// losing the insert race to a concurrent writer surfaces as ErrConflict so
// the caller can retry the now-existing row.
func (ss *SprintStoreImpl) Upsert(ctx context.Context, row schema.SprintMapping) error {
	// Skip for NoneBackend
	if ss.backend == schema.NoneBackend || ss.db == nil {
		return nil
	}

	res, err := ss.db.ExecContext(ctx, ss.getUpdateQuery(),
		formatTime(row.AddedAt, ss.backend), row.Planned, row.Delivered, row.OutsideOfWindow,
		row.PointsPlanned, row.PointsDelivered,
		row.Tenant, row.Integration, row.RecordID, row.MilestoneID)
	if err != nil {
		return fmt.Errorf("failed to update sprint mapping: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	_, err = ss.db.ExecContext(ctx, ss.getInsertQuery(),
		row.Tenant, row.Integration, row.RecordID, row.MilestoneID,
		formatTime(row.AddedAt, ss.backend), row.Planned, row.Delivered, row.OutsideOfWindow,
		row.PointsPlanned, row.PointsDelivered)
	if err != nil {
		// A duplicate-key failure here means another writer inserted the row
		// between our update and insert.
		return fmt.Errorf("sprint mapping insert for (%s, %s): %w", row.RecordID, row.MilestoneID, contract.ErrConflict)
	}
	return nil
}

func (ss *SprintStoreImpl) getUpdateQuery() string {
	quotedTableName := quoteTableName(sprintMappingsTable, ss.backend)
	switch ss.backend {
	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`UPDATE %s SET added_at = $1, planned = $2, delivered = $3, outside_of_window = $4,
			points_planned = $5, points_delivered = $6
			WHERE tenant = $7 AND integration = $8 AND record_id = $9 AND milestone_id = $10`, quotedTableName)
	default: // SQLite and MySQL
		return fmt.Sprintf(`UPDATE %s SET added_at = ?, planned = ?, delivered = ?, outside_of_window = ?,
			points_planned = ?, points_delivered = ?
			WHERE tenant = ? AND integration = ? AND record_id = ? AND milestone_id = ?`, quotedTableName)
	}
}

func (ss *SprintStoreImpl) getInsertQuery() string {
	quotedTableName := quoteTableName(sprintMappingsTable, ss.backend)
	switch ss.backend {
	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (tenant, integration, record_id, milestone_id, added_at,
			planned, delivered, outside_of_window, points_planned, points_delivered)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, quotedTableName)
	default: // SQLite and MySQL
		return fmt.Sprintf(`INSERT INTO %s (tenant, integration, record_id, milestone_id, added_at,
			planned, delivered, outside_of_window, points_planned, points_delivered)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, quotedTableName)
	}
}

// ListByRecords returns every stored row for the given record ids, ordered by
// (record_id, milestone_id).
func (ss *SprintStoreImpl) ListByRecords(ctx context.Context, recordIDs []string) ([]schema.SprintMapping, error) {
	// Skip for NoneBackend
	if ss.backend == schema.NoneBackend || ss.db == nil {
		return nil, nil
	}
	if len(recordIDs) == 0 {
		return nil, nil
	}

	quotedTableName := quoteTableName(sprintMappingsTable, ss.backend)
	placeholders := make([]string, len(recordIDs))
	args := make([]any, len(recordIDs))
	for i, id := range recordIDs {
		if ss.backend == schema.PostgreSQLBackend {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		} else {
			placeholders[i] = "?"
		}
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT tenant, integration, record_id, milestone_id, added_at,
		planned, delivered, outside_of_window, points_planned, points_delivered
		FROM %s WHERE record_id IN (%s) ORDER BY record_id, milestone_id`,
		quotedTableName, strings.Join(placeholders, ", "))

	rows, err := ss.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sprint mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.SprintMapping
	for rows.Next() {
		var row schema.SprintMapping

		switch ss.backend {
		case schema.SQLiteBackend:
			var addedAtStr sql.NullString
			if err := rows.Scan(&row.Tenant, &row.Integration, &row.RecordID, &row.MilestoneID, &addedAtStr,
				&row.Planned, &row.Delivered, &row.OutsideOfWindow, &row.PointsPlanned, &row.PointsDelivered); err != nil {
				return nil, fmt.Errorf("failed to scan sprint mapping: %w", err)
			}
			if addedAtStr.Valid && addedAtStr.String != "" {
				addedAt, err := time.Parse(time.RFC3339Nano, addedAtStr.String)
				if err != nil {
					return nil, fmt.Errorf("failed to parse added_at: %w", err)
				}
				row.AddedAt = addedAt
			}
		default: // MySQL and PostgreSQL store as native datetime
			var addedAt sql.NullTime
			if err := rows.Scan(&row.Tenant, &row.Integration, &row.RecordID, &row.MilestoneID, &addedAt,
				&row.Planned, &row.Delivered, &row.OutsideOfWindow, &row.PointsPlanned, &row.PointsDelivered); err != nil {
				return nil, fmt.Errorf("failed to scan sprint mapping: %w", err)
			}
			if addedAt.Valid {
				row.AddedAt = addedAt.Time
			}
		}

		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sprint mappings: %w", err)
	}
	return results, nil
}

// Close closes the underlying connection.
func (ss *SprintStoreImpl) Close() error {
	if ss.db != nil {
		return ss.db.Close()
	}
	return nil
}

// GetStatus returns status information about the sprint store.
func (ss *SprintStoreImpl) GetStatus() (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:   string(ss.backend),
		Connected: ss.db != nil,
	}
	if ss.backend == schema.NoneBackend || ss.db == nil {
		return status, nil
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(sprintMappingsTable, ss.backend))
	row := ss.db.QueryRow(countQuery)
	if err := row.Scan(&status.TotalEntries); err != nil {
		return status, fmt.Errorf("failed to get total entries: %w", err)
	}
	return status, nil
}

// formatTime converts a time.Time to the appropriate format for the backend.
func formatTime(t time.Time, backend schema.DatabaseBackend) any {
	if t.IsZero() {
		return nil
	}
	switch backend {
	case schema.SQLiteBackend:
		return t.Format(time.RFC3339Nano)
	default:
		return t
	}
}
