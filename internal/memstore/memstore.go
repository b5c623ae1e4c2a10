// Package memstore provides in-memory implementations of the engine's
// collaborator interfaces, backed by snapshot data. The CLI loads parquet
// snapshots into it; tests seed it directly.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/schema"
)

// Store holds records, history segments, milestones, team rosters and
// sprint-mapping rows. All methods are safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	records    map[schema.RecordKind][]schema.Record
	segments   map[string]map[string][]schema.TimelineSegment
	milestones map[string]schema.Milestone
	teams      map[string][]string
	mappings   map[string]schema.SprintMapping
}

// Compile-time checks against every collaborator contract the store serves.
var (
	_ contract.RecordStore        = &Store{}
	_ contract.TimelineReader     = &Store{}
	_ contract.MilestoneReader    = &Store{}
	_ contract.TeamResolver       = &Store{}
	_ contract.SprintMappingStore = &Store{}
)

// New returns an empty store.
func New() *Store {
	return &Store{
		records:    make(map[schema.RecordKind][]schema.Record),
		segments:   make(map[string]map[string][]schema.TimelineSegment),
		milestones: make(map[string]schema.Milestone),
		teams:      make(map[string][]string),
		mappings:   make(map[string]schema.SprintMapping),
	}
}

// AddRecords appends records under their own kinds.
func (s *Store) AddRecords(records ...schema.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.Kind] = append(s.records[r.Kind], r)
	}
}

// AddSegments appends history segments, keeping each (record, field) run
// sorted by start time.
func (s *Store) AddSegments(segs ...schema.TimelineSegment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seg := range segs {
		fields, ok := s.segments[seg.RecordID]
		if !ok {
			fields = make(map[string][]schema.TimelineSegment)
			s.segments[seg.RecordID] = fields
		}
		run := append(fields[seg.Field], seg)
		sort.SliceStable(run, func(i, j int) bool { return run[i].Start.Before(run[j].Start) })
		fields[seg.Field] = run
	}
}

// AddMilestone registers a milestone window.
func (s *Store) AddMilestone(ms schema.Milestone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.milestones[ms.ID] = ms
}

// AddTeam registers a team roster.
func (s *Store) AddTeam(teamID string, members ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[teamID] = members
}

// ExecutePredicate implements contract.RecordStore.
func (s *Store) ExecutePredicate(_ context.Context, kind schema.RecordKind, pred contract.Predicate, sortSpec *schema.SortSpec, offset, limit int) ([]schema.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []schema.Record
	for _, r := range s.records[kind] {
		if pred == nil || pred(r) {
			matched = append(matched, r)
		}
	}
	if sortSpec != nil {
		sortRecords(matched, kind, *sortSpec)
	}
	if offset > 0 {
		if offset >= len(matched) {
			return nil, nil
		}
		matched = matched[offset:]
	}
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// sortRecords orders records by one field using the kind's registered type.
func sortRecords(records []schema.Record, kind schema.RecordKind, spec schema.SortSpec) {
	caps, ok := schema.KindCapability(kind)
	if !ok {
		return
	}
	less := func(a, b schema.Record) bool {
		switch caps.Fields[spec.Field] {
		case schema.NumberField:
			av, _ := a.NumberAt(spec.Field)
			bv, _ := b.NumberAt(spec.Field)
			return av < bv
		case schema.TimeField:
			av, _ := a.TimeAt(spec.Field)
			bv, _ := b.TimeAt(spec.Field)
			return av.Before(bv)
		default:
			if spec.Field == "id" {
				return a.ID < b.ID
			}
			return a.StringAt(spec.Field) < b.StringAt(spec.Field)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if spec.Desc {
			return less(records[j], records[i])
		}
		return less(records[i], records[j])
	})
}

// ReadSegments implements contract.TimelineReader.
func (s *Store) ReadSegments(_ context.Context, recordID, field string) ([]schema.TimelineSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.segments[recordID][field], nil
}

// ReadFieldSegments implements contract.TimelineReader.
func (s *Store) ReadFieldSegments(_ context.Context, recordIDs []string, field string) (map[string][]schema.TimelineSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]schema.TimelineSegment, len(recordIDs))
	for _, id := range recordIDs {
		if segs := s.segments[id][field]; len(segs) > 0 {
			out[id] = segs
		}
	}
	return out, nil
}

// ReadMilestone implements contract.MilestoneReader.
func (s *Store) ReadMilestone(_ context.Context, id string) (schema.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ms, ok := s.milestones[id]
	if !ok {
		return schema.Milestone{}, fmt.Errorf("unknown milestone %q", id)
	}
	return ms, nil
}

// ResolveTeam implements contract.TeamResolver. Unknown teams resolve to an
// empty roster, not an error.
func (s *Store) ResolveTeam(_ context.Context, teamID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.teams[teamID], nil
}

// Upsert implements contract.SprintMappingStore.
func (s *Store) Upsert(_ context.Context, row schema.SprintMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[mappingKey(row)] = row
	return nil
}

// ListByRecords implements contract.SprintMappingStore. Rows come back in a
// stable (record, milestone) order.
func (s *Store) ListByRecords(_ context.Context, recordIDs []string) ([]schema.SprintMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]struct{}, len(recordIDs))
	for _, id := range recordIDs {
		want[id] = struct{}{}
	}
	var rows []schema.SprintMapping
	for _, row := range s.mappings {
		if _, ok := want[row.RecordID]; ok {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].RecordID != rows[j].RecordID {
			return rows[i].RecordID < rows[j].RecordID
		}
		return rows[i].MilestoneID < rows[j].MilestoneID
	})
	return rows, nil
}

// Close implements contract.SprintMappingStore.
func (s *Store) Close() error { return nil }

func mappingKey(row schema.SprintMapping) string {
	return row.Tenant + "\x1f" + row.Integration + "\x1f" + row.RecordID + "\x1f" + row.MilestoneID
}
