// Package snapshot reads and writes ingestion snapshots as Parquet files
// using github.com/parquet-go/parquet-go. A snapshot is the engine's input: a
// set of normalized records plus their field-change history and the milestone
// windows referenced by sprint reports.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shipmetrics/prism/internal/memstore"
	"github.com/shipmetrics/prism/schema"
)

// Snapshot file suffixes, appended to the snapshot base path.
const (
	RecordsSuffix    = ".records.parquet"
	SegmentsSuffix   = ".segments.parquet"
	MilestonesSuffix = ".milestones.parquet"
	TeamsSuffix      = ".teams.parquet"
)

// RecordRow is the Parquet layout of one normalized record. Attribute maps
// are stored as JSON columns so the file schema stays stable as field
// registries evolve.
type RecordRow struct {
	// ID is the record's unique identifier within its kind
	ID string `parquet:"id,snappy"`

	// Kind is the normalized record kind (issue, pull_request, ...)
	Kind string `parquet:"kind,snappy"`

	// Tenant is the owning tenant identifier
	Tenant string `parquet:"tenant,snappy"`

	// Strings holds the JSON-encoded string attributes (nullable)
	Strings *string `parquet:"strings,optional,snappy"`

	// Numbers holds the JSON-encoded numeric attributes (nullable)
	Numbers *string `parquet:"numbers,optional,snappy"`

	// Times holds the JSON-encoded RFC3339 time attributes (nullable)
	Times *string `parquet:"times,optional,snappy"`

	// Arrays holds the JSON-encoded array attributes (nullable)
	Arrays *string `parquet:"arrays,optional,snappy"`
}

// SegmentRow is the Parquet layout of one history segment.
type SegmentRow struct {
	// RecordID references the record whose field changed
	RecordID string `parquet:"record_id,snappy"`

	// Field is the attribute whose value this segment describes
	Field string `parquet:"field,snappy"`

	// Value is the raw value held over the segment
	Value string `parquet:"value,snappy"`

	// Start is when the value took effect
	Start time.Time `parquet:"start,snappy"`

	// End is when the value was superseded (nullable; nil = still current)
	End *time.Time `parquet:"end,optional,snappy"`
}

// MilestoneRow is the Parquet layout of one milestone window.
type MilestoneRow struct {
	// ID is the milestone identifier
	ID string `parquet:"id,snappy"`

	// Start is the window opening
	Start time.Time `parquet:"start,snappy"`

	// End is the window close
	End time.Time `parquet:"end,snappy"`
}

// TeamRow is the Parquet layout of one team membership entry.
type TeamRow struct {
	// TeamID is the team identifier
	TeamID string `parquet:"team_id,snappy"`

	// Member is one member identity
	Member string `parquet:"member,snappy"`
}

// WriteRecordsParquet writes records to a Parquet file.
func WriteRecordsParquet(records []schema.Record, outputPath string) error {
	rows := make([]RecordRow, 0, len(records))
	for _, rec := range records {
		row, err := toRecordRow(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %q: %w", rec.ID, err)
		}
		rows = append(rows, row)
	}
	return writeParquet(rows, outputPath)
}

// ReadRecordsParquet reads records from a Parquet file.
func ReadRecordsParquet(inputPath string) ([]schema.Record, error) {
	rows, err := parquet.ReadFile[RecordRow](inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read records from %q: %w", inputPath, err)
	}
	records := make([]schema.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRecordRow(row)
		if err != nil {
			return nil, fmt.Errorf("failed to decode record %q: %w", row.ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteSegmentsParquet writes history segments to a Parquet file.
func WriteSegmentsParquet(segments []schema.TimelineSegment, outputPath string) error {
	rows := make([]SegmentRow, 0, len(segments))
	for _, seg := range segments {
		rows = append(rows, SegmentRow{
			RecordID: seg.RecordID,
			Field:    seg.Field,
			Value:    seg.Value,
			Start:    seg.Start,
			End:      seg.End,
		})
	}
	return writeParquet(rows, outputPath)
}

// ReadSegmentsParquet reads history segments from a Parquet file.
func ReadSegmentsParquet(inputPath string) ([]schema.TimelineSegment, error) {
	rows, err := parquet.ReadFile[SegmentRow](inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read segments from %q: %w", inputPath, err)
	}
	segments := make([]schema.TimelineSegment, 0, len(rows))
	for _, row := range rows {
		segments = append(segments, schema.TimelineSegment{
			RecordID: row.RecordID,
			Field:    row.Field,
			Value:    row.Value,
			Start:    row.Start,
			End:      row.End,
		})
	}
	return segments, nil
}

// WriteMilestonesParquet writes milestone windows to a Parquet file.
func WriteMilestonesParquet(milestones []schema.Milestone, outputPath string) error {
	rows := make([]MilestoneRow, 0, len(milestones))
	for _, ms := range milestones {
		rows = append(rows, MilestoneRow{ID: ms.ID, Start: ms.Start, End: ms.End})
	}
	return writeParquet(rows, outputPath)
}

// ReadMilestonesParquet reads milestone windows from a Parquet file.
func ReadMilestonesParquet(inputPath string) ([]schema.Milestone, error) {
	rows, err := parquet.ReadFile[MilestoneRow](inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read milestones from %q: %w", inputPath, err)
	}
	milestones := make([]schema.Milestone, 0, len(rows))
	for _, row := range rows {
		milestones = append(milestones, schema.Milestone{ID: row.ID, Start: row.Start, End: row.End})
	}
	return milestones, nil
}

// Load populates a memory store from the snapshot files under basePath. Only
// the records file is required; segments, milestones and teams load when
// their files exist.
func Load(basePath string) (*memstore.Store, error) {
	store := memstore.New()

	records, err := ReadRecordsParquet(basePath + RecordsSuffix)
	if err != nil {
		return nil, err
	}
	store.AddRecords(records...)

	if fileExists(basePath + SegmentsSuffix) {
		segments, err := ReadSegmentsParquet(basePath + SegmentsSuffix)
		if err != nil {
			return nil, err
		}
		store.AddSegments(segments...)
	}

	if fileExists(basePath + MilestonesSuffix) {
		milestones, err := ReadMilestonesParquet(basePath + MilestonesSuffix)
		if err != nil {
			return nil, err
		}
		for _, ms := range milestones {
			store.AddMilestone(ms)
		}
	}

	if fileExists(basePath + TeamsSuffix) {
		rows, err := parquet.ReadFile[TeamRow](basePath + TeamsSuffix)
		if err != nil {
			return nil, fmt.Errorf("failed to read teams from %q: %w", basePath+TeamsSuffix, err)
		}
		members := make(map[string][]string)
		for _, row := range rows {
			members[row.TeamID] = append(members[row.TeamID], row.Member)
		}
		for teamID, roster := range members {
			store.AddTeam(teamID, roster...)
		}
	}

	return store, nil
}

// writeParquet writes rows of any schema-inferred type to outputPath.
func writeParquet[T any](rows []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Schema is inferred from the row struct tags
	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

func toRecordRow(rec schema.Record) (RecordRow, error) {
	row := RecordRow{
		ID:     rec.ID,
		Kind:   string(rec.Kind),
		Tenant: rec.Tenant,
	}
	var err error
	if row.Strings, err = encodeJSON(rec.Strings); err != nil {
		return row, err
	}
	if row.Numbers, err = encodeJSON(rec.Numbers); err != nil {
		return row, err
	}
	if row.Times, err = encodeJSON(rec.Times); err != nil {
		return row, err
	}
	if row.Arrays, err = encodeJSON(rec.Arrays); err != nil {
		return row, err
	}
	return row, nil
}

func fromRecordRow(row RecordRow) (schema.Record, error) {
	rec := schema.Record{
		ID:     row.ID,
		Kind:   schema.RecordKind(row.Kind),
		Tenant: row.Tenant,
	}
	if err := decodeJSON(row.Strings, &rec.Strings); err != nil {
		return rec, err
	}
	if err := decodeJSON(row.Numbers, &rec.Numbers); err != nil {
		return rec, err
	}
	if err := decodeJSON(row.Times, &rec.Times); err != nil {
		return rec, err
	}
	if err := decodeJSON(row.Arrays, &rec.Arrays); err != nil {
		return rec, err
	}
	return rec, nil
}

func encodeJSON[M ~map[string]V, V any](m M) (*string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func decodeJSON[M ~map[string]V, V any](s *string, dst *M) error {
	if s == nil || *s == "" {
		return nil
	}
	return json.Unmarshal([]byte(*s), dst)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
