// Package contract provides interfaces and shared configuration for the
// engine's collaborators. The engine core depends only on these interfaces,
// so every collaborator can be mocked for testing or swapped per deployment.
package contract

import (
	"context"
	"errors"

	"github.com/shipmetrics/prism/schema"
)

// ErrConflict marks a sprint-mapping upsert that lost a race with a
// concurrent writer for the same key. The caller may retry; the operation is
// idempotent.
var ErrConflict = errors.New("upsert conflict")

// Predicate is a compiled filter over one record.
type Predicate func(schema.Record) bool

// RecordStore executes compiled predicates against the relational store of
// normalized records. A limit <= 0 returns the whole matching set; sort may
// be nil for store order.
type RecordStore interface {
	ExecutePredicate(ctx context.Context, kind schema.RecordKind, pred Predicate, sort *schema.SortSpec, offset, limit int) ([]schema.Record, error)
}

// TeamResolver expands a team id into the identities of its members.
// An unknown team resolves to an empty slice, not an error.
type TeamResolver interface {
	ResolveTeam(ctx context.Context, teamID string) ([]string, error)
}

// TimelineReader reads field-change history segments recorded by ingestion.
type TimelineReader interface {
	// ReadSegments returns the segments for one (record, field), ordered by
	// start time.
	ReadSegments(ctx context.Context, recordID, field string) ([]schema.TimelineSegment, error)

	// ReadFieldSegments bulk-reads one field's segments for many records.
	ReadFieldSegments(ctx context.Context, recordIDs []string, field string) (map[string][]schema.TimelineSegment, error)
}

// MilestoneReader resolves milestone (sprint/iteration) windows.
type MilestoneReader interface {
	ReadMilestone(ctx context.Context, id string) (schema.Milestone, error)
}

// SprintMappingStore persists derived sprint classifications. Upsert is
// keyed by (tenant, integration, recordId, milestoneId) and must be
// idempotent; concurrent upserts for different keys are independent.
type SprintMappingStore interface {
	Upsert(ctx context.Context, row schema.SprintMapping) error
	ListByRecords(ctx context.Context, recordIDs []string) ([]schema.SprintMapping, error)
	Close() error
}

// ResultCache stores serialized aggregation results keyed by the filter
// spec's canonical hash. This allows mocking the store for testing.
type ResultCache interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.StoreStatus, error)
	Close() error
}
