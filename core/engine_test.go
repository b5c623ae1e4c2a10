package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shipmetrics/prism/core/timeline"
	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/internal/memstore"
	"github.com/shipmetrics/prism/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seedStatusIssues(store *memstore.Store) {
	store.AddRecords(
		schema.Record{ID: "i1", Kind: schema.IssueKind, Strings: map[string]string{"status": "FAILED"}},
		schema.Record{ID: "i2", Kind: schema.IssueKind, Strings: map[string]string{"status": "SUCCESS"}},
		schema.Record{ID: "i3", Kind: schema.IssueKind, Strings: map[string]string{"status": "SUCCESS"}},
		schema.Record{ID: "i4", Kind: schema.IssueKind, Strings: map[string]string{"status": "SUCCESS"}},
		schema.Record{ID: "i5", Kind: schema.IssueKind, Strings: map[string]string{"status": "SUCCESS"}},
	)
}

func TestGroupByStatusCounts(t *testing.T) {
	store := memstore.New()
	seedStatusIssues(store)
	eng := NewEngine(store)

	out, err := eng.GroupByAndCalculate(context.Background(), schema.FilterSpec{
		Kind:   schema.IssueKind,
		Across: "status",
	})
	require.NoError(t, err)

	require.Len(t, out.Records, 2)
	assert.Equal(t, "FAILED", out.Records[0].Key, "first-seen group order")
	assert.Equal(t, 1, out.Records[0].Count)
	assert.Equal(t, "SUCCESS", out.Records[1].Key)
	assert.Equal(t, 4, out.Records[1].Count)

	// Count consistency: per-bucket counts sum to the matching total.
	sum := 0
	for _, g := range out.Records {
		sum += g.Count
	}
	assert.Equal(t, 5, sum)
	assert.Equal(t, 5, out.TotalCount)
}

func TestGroupByUnassignedSentinel(t *testing.T) {
	store := memstore.New()
	store.AddRecords(
		schema.Record{ID: "i1", Kind: schema.IssueKind, Strings: map[string]string{"assignee": "alice"}},
		schema.Record{ID: "i2", Kind: schema.IssueKind},
	)
	eng := NewEngine(store)

	out, err := eng.GroupByAndCalculate(context.Background(), schema.FilterSpec{
		Kind:   schema.IssueKind,
		Across: "assignee",
	})
	require.NoError(t, err)
	require.Len(t, out.Records, 2)
	assert.Equal(t, schema.UnassignedKey, out.Records[1].Key)
	assert.Equal(t, schema.UnassignedLabel, out.Records[1].AdditionalKey)
}

func TestGroupByTemporalBuckets(t *testing.T) {
	store := memstore.New()
	store.AddRecords(
		schema.Record{ID: "i1", Kind: schema.IssueKind, Times: map[string]time.Time{"created_at": time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)}},
		schema.Record{ID: "i2", Kind: schema.IssueKind, Times: map[string]time.Time{"created_at": time.Date(2024, 6, 12, 18, 0, 0, 0, time.UTC)}},
		schema.Record{ID: "i3", Kind: schema.IssueKind, Times: map[string]time.Time{"created_at": time.Date(2024, 6, 17, 8, 0, 0, 0, time.UTC)}},
	)
	eng := NewEngine(store)

	out, err := eng.GroupByAndCalculate(context.Background(), schema.FilterSpec{
		Kind:        schema.IssueKind,
		Across:      "created_at",
		AggInterval: schema.WeekInterval,
	})
	require.NoError(t, err)
	require.Len(t, out.Records, 2)

	first := out.Records[0]
	assert.Equal(t, "1717977600", first.Key, "bucket key is the epoch second of the Monday start")
	assert.Equal(t, "2024-W24", first.AdditionalKey)
	assert.Equal(t, 2, first.Count)

	second := out.Records[1]
	assert.Equal(t, "1718582400", second.Key)
	assert.Equal(t, "2024-W25", second.AdditionalKey)
	assert.Equal(t, 1, second.Count)
}

func TestDurationMetricExcludesOpenRecords(t *testing.T) {
	store := memstore.New()
	store.AddRecords(
		schema.Record{ID: "i1", Kind: schema.IssueKind, Times: map[string]time.Time{"created_at": time.Unix(0, 0), "closed_at": time.Unix(10, 0)}},
		schema.Record{ID: "i2", Kind: schema.IssueKind, Times: map[string]time.Time{"created_at": time.Unix(0, 0), "closed_at": time.Unix(20, 0)}},
		schema.Record{ID: "i3", Kind: schema.IssueKind, Times: map[string]time.Time{"created_at": time.Unix(0, 0)}},
	)
	eng := NewEngine(store)

	out, err := eng.GroupByAndCalculate(context.Background(), schema.FilterSpec{
		Kind:        schema.IssueKind,
		Calculation: schema.ResolutionTime,
	})
	require.NoError(t, err)
	require.Len(t, out.Records, 1)

	g := out.Records[0]
	assert.Equal(t, 3, g.Count, "open record still counts toward the group size")
	assert.Equal(t, 10.0, g.Min)
	assert.Equal(t, 20.0, g.Max)
	assert.Equal(t, 15.0, g.Median)
}

func TestNoneCollapseAlwaysReturnsOneRow(t *testing.T) {
	eng := NewEngine(memstore.New())

	out, err := eng.GroupByAndCalculate(context.Background(), schema.FilterSpec{
		Kind:        schema.IssueKind,
		Across:      schema.NoneDimension,
		Calculation: schema.NoneCalculation,
		GroupLabel:  "open tickets",
	})
	require.NoError(t, err)
	require.Len(t, out.Records, 1, "the none collapse yields a row even with zero matches")
	assert.Equal(t, "open tickets", out.Records[0].Key)
	assert.Zero(t, out.Records[0].Count)
	assert.Zero(t, out.TotalCount)
}

func TestStackedGroupByConservation(t *testing.T) {
	store := memstore.New()
	store.AddRecords(
		schema.Record{ID: "i1", Kind: schema.IssueKind, Strings: map[string]string{"status": "OPEN", "priority": "high"}},
		schema.Record{ID: "i2", Kind: schema.IssueKind, Strings: map[string]string{"status": "OPEN", "priority": "low"}},
		schema.Record{ID: "i3", Kind: schema.IssueKind, Strings: map[string]string{"status": "OPEN", "priority": "high"}},
		schema.Record{ID: "i4", Kind: schema.IssueKind, Strings: map[string]string{"status": "DONE", "priority": "low"}},
	)
	eng := NewEngine(store)

	out, err := eng.StackedGroupBy(context.Background(), schema.FilterSpec{
		Kind:   schema.IssueKind,
		Across: "status",
	}, []schema.Dimension{"priority"})
	require.NoError(t, err)
	require.Len(t, out.Records, 2)

	for _, outer := range out.Records {
		inner := 0
		for _, s := range outer.Stack {
			inner += s.Count
		}
		assert.Equal(t, outer.Count, inner, "stack counts must sum to the outer count for %s", outer.Key)
	}

	open := out.Records[0]
	assert.Equal(t, "OPEN", open.Key)
	require.Len(t, open.Stack, 2)
	assert.Equal(t, "high", open.Stack[0].Key)
	assert.Equal(t, 2, open.Stack[0].Count)
	assert.Equal(t, "low", open.Stack[1].Key)
	assert.Equal(t, 1, open.Stack[1].Count)
}

func TestStackedGroupByTwoLevels(t *testing.T) {
	store := memstore.New()
	store.AddRecords(
		schema.Record{ID: "i1", Kind: schema.IssueKind, Strings: map[string]string{"status": "OPEN", "priority": "high", "project": "core"}},
		schema.Record{ID: "i2", Kind: schema.IssueKind, Strings: map[string]string{"status": "OPEN", "priority": "high", "project": "api"}},
	)
	eng := NewEngine(store)

	out, err := eng.StackedGroupBy(context.Background(), schema.FilterSpec{
		Kind:   schema.IssueKind,
		Across: "status",
	}, []schema.Dimension{"priority", "project"})
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	require.Len(t, out.Records[0].Stack, 1)
	assert.Len(t, out.Records[0].Stack[0].Stack, 2, "each stack dimension nests one level deeper")
}

func TestAssigneesCalculation(t *testing.T) {
	store := memstore.New()
	store.AddRecords(
		schema.Record{ID: "r1", Kind: schema.IssueKind, Strings: map[string]string{"project": "core"}},
		schema.Record{ID: "r2", Kind: schema.IssueKind, Strings: map[string]string{"project": "core"}},
	)
	end := time.Unix(10, 0)
	store.AddSegments(
		schema.TimelineSegment{RecordID: "r1", Field: "assignee", Value: "u1", Start: time.Unix(0, 0), End: &end},
		schema.TimelineSegment{RecordID: "r1", Field: "assignee", Value: "u2", Start: time.Unix(10, 0)},
		schema.TimelineSegment{RecordID: "r2", Field: "assignee", Value: "u3", Start: time.Unix(5, 0)},
	)
	eng := NewEngine(store, WithTimelineReader(store))

	out, err := eng.GroupByAndCalculate(context.Background(), schema.FilterSpec{
		Kind:        schema.IssueKind,
		Across:      "project",
		Calculation: schema.AssigneesCalculation,
		From:        time.Unix(8, 0),
		To:          time.Unix(12, 0),
	})
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, []string{"u1", "u2", "u3"}, out.Records[0].Assignees)
	assert.Equal(t, 3, out.Records[0].Count, "count reports distinct owners")
}

func TestSprintMappingDimension(t *testing.T) {
	store := memstore.New()
	store.AddRecords(
		schema.Record{ID: "r1", Kind: schema.IssueKind},
		schema.Record{ID: "r2", Kind: schema.IssueKind},
	)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, schema.SprintMapping{RecordID: "r1", MilestoneID: "S1"}))
	require.NoError(t, store.Upsert(ctx, schema.SprintMapping{RecordID: "r1", MilestoneID: "S2"}))
	require.NoError(t, store.Upsert(ctx, schema.SprintMapping{RecordID: "r2", MilestoneID: "S1"}))

	eng := NewEngine(store, WithSprintMappingStore(store))
	out, err := eng.GroupByAndCalculate(ctx, schema.FilterSpec{
		Kind:   schema.IssueKind,
		Across: schema.SprintMappingDimension,
	})
	require.NoError(t, err)
	require.Len(t, out.Records, 2)

	counts := map[string]int{}
	for _, g := range out.Records {
		counts[g.Key] = g.Count
	}
	assert.Equal(t, map[string]int{"S1": 2, "S2": 1}, counts, "a record mapped to two sprints lands in both groups")
}

func TestInvalidFilterRejection(t *testing.T) {
	eng := NewEngine(memstore.New())
	ctx := context.Background()

	tests := []struct {
		name string
		spec schema.FilterSpec
	}{
		{"unknown kind", schema.FilterSpec{Kind: "bogus"}},
		{"invalid dimension", schema.FilterSpec{Kind: schema.IssueKind, Across: "pipeline"}},
		{"invalid calculation", schema.FilterSpec{Kind: schema.IssueKind, Calculation: schema.BuildTime}},
		{"invalid interval", schema.FilterSpec{Kind: schema.IssueKind, Across: "created_at", AggInterval: "fortnight"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.GroupByAndCalculate(ctx, tc.spec)
			require.Error(t, err)
			assert.ErrorIs(t, err, schema.ErrInvalidFilter)
		})
	}
}

func TestListPagination(t *testing.T) {
	store := memstore.New()
	seedStatusIssues(store)
	eng := NewEngine(store)
	ctx := context.Background()

	spec := schema.FilterSpec{
		Kind:     schema.IssueKind,
		PageSize: 2,
		Sort:     &schema.SortSpec{Field: "id"},
	}

	first, err := eng.List(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Count)
	assert.Equal(t, 5, first.TotalCount)
	assert.Equal(t, "i1", first.Records[0].ID)

	spec.Page = 2
	last, err := eng.List(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, 1, last.Count, "final partial page")
	assert.Equal(t, "i5", last.Records[0].ID)

	spec.Page = 9
	empty, err := eng.List(ctx, spec)
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.Equal(t, 5, empty.TotalCount)
}

func TestGroupByCacheReadThrough(t *testing.T) {
	store := memstore.New()
	seedStatusIssues(store)

	cache := &contract.MockResultCache{}
	cache.On("Get", mock.AnythingOfType("string")).Return(nil, 0, int64(0), errors.New("miss")).Once()
	cache.On("Set", mock.AnythingOfType("string"), mock.Anything, currentCacheVersion, mock.AnythingOfType("int64")).Return(nil).Once()

	eng := NewEngine(store, WithResultCache(cache))
	spec := schema.FilterSpec{Kind: schema.IssueKind, Across: "status"}

	first, err := eng.GroupByAndCalculate(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, first.Records, 2)
	cache.AssertExpectations(t)

	// Second call returns the cached payload without touching the store.
	payload := cache.Calls[1].Arguments.Get(1).([]byte)
	cache2 := &contract.MockResultCache{}
	cache2.On("Get", mock.AnythingOfType("string")).Return(payload, currentCacheVersion, time.Now().Unix(), nil).Once()

	engCached := NewEngine(memstore.New(), WithResultCache(cache2))
	second, err := engCached.GroupByAndCalculate(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	cache2.AssertExpectations(t)
}

func TestGroupByCacheIgnoresStaleEntries(t *testing.T) {
	store := memstore.New()
	seedStatusIssues(store)

	stale := time.Now().Add(-48 * time.Hour).Unix()
	cache := &contract.MockResultCache{}
	cache.On("Get", mock.AnythingOfType("string")).Return([]byte(`{}`), currentCacheVersion, stale, nil).Once()
	cache.On("Set", mock.AnythingOfType("string"), mock.Anything, currentCacheVersion, mock.AnythingOfType("int64")).Return(nil).Once()

	eng := NewEngine(store, WithResultCache(cache))
	out, err := eng.GroupByAndCalculate(context.Background(), schema.FilterSpec{Kind: schema.IssueKind, Across: "status"})
	require.NoError(t, err)
	assert.Len(t, out.Records, 2, "stale entry recomputed from the store")
	cache.AssertExpectations(t)
}

func TestReclassifySprints(t *testing.T) {
	store := memstore.New()
	store.AddMilestone(schema.Milestone{ID: "S1", Start: time.Unix(1000, 0), End: time.Unix(2000, 0)})
	store.AddSegments(
		schema.TimelineSegment{RecordID: "r1", Field: "sprint", Value: "S1", Start: time.Unix(500, 0)},
		schema.TimelineSegment{RecordID: "r1", Field: "story_points", Value: "5", Start: time.Unix(500, 0)},
	)
	appendStatus(store, "r1", "OPEN", 500, "DONE", 1500)

	eng := NewEngine(store,
		WithTimelineReader(store),
		WithMilestoneReader(store),
		WithSprintMappingStore(store),
	)
	ctx := context.Background()

	rows, err := eng.ReclassifySprints(ctx, "r1", []string{"S1"}, timeline.DefaultSprintFields, timeline.DefaultTerminalStatuses)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Planned)
	assert.True(t, rows[0].Delivered)
	assert.Equal(t, 5.0, rows[0].PointsPlanned)

	// Reprocessing yields byte-identical rows and leaves exactly one stored row.
	again, err := eng.ReclassifySprints(ctx, "r1", []string{"S1"}, timeline.DefaultSprintFields, timeline.DefaultTerminalStatuses)
	require.NoError(t, err)
	assert.Equal(t, rows, again)

	stored, err := store.ListByRecords(ctx, []string{"r1"})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestReclassifySprintsRetriesConflictOnce(t *testing.T) {
	store := memstore.New()
	store.AddMilestone(schema.Milestone{ID: "S1", Start: time.Unix(1000, 0), End: time.Unix(2000, 0)})

	sprints := &contract.MockSprintMappingStore{}
	sprints.On("Upsert", mock.Anything, mock.AnythingOfType("schema.SprintMapping")).
		Return(contract.ErrConflict).Once()
	sprints.On("Upsert", mock.Anything, mock.AnythingOfType("schema.SprintMapping")).
		Return(nil).Once()

	eng := NewEngine(store,
		WithTimelineReader(store),
		WithMilestoneReader(store),
		WithSprintMappingStore(sprints),
	)

	_, err := eng.ReclassifySprints(context.Background(), "r1", []string{"S1"}, timeline.DefaultSprintFields, timeline.DefaultTerminalStatuses)
	require.NoError(t, err)
	sprints.AssertExpectations(t)
}

func TestReclassifySprintsSurfacesPersistentConflict(t *testing.T) {
	store := memstore.New()
	store.AddMilestone(schema.Milestone{ID: "S1", Start: time.Unix(1000, 0), End: time.Unix(2000, 0)})

	sprints := &contract.MockSprintMappingStore{}
	sprints.On("Upsert", mock.Anything, mock.AnythingOfType("schema.SprintMapping")).
		Return(contract.ErrConflict).Twice()

	eng := NewEngine(store,
		WithTimelineReader(store),
		WithMilestoneReader(store),
		WithSprintMappingStore(sprints),
	)

	_, err := eng.ReclassifySprints(context.Background(), "r1", []string{"S1"}, timeline.DefaultSprintFields, timeline.DefaultTerminalStatuses)
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrConflict)
	sprints.AssertExpectations(t)
}

// appendStatus seeds a closed-then-open status run for a record.
func appendStatus(store *memstore.Store, recordID, v1 string, t1 int64, v2 string, t2 int64) {
	end := time.Unix(t2, 0)
	store.AddSegments(
		schema.TimelineSegment{RecordID: recordID, Field: "status", Value: v1, Start: time.Unix(t1, 0), End: &end},
		schema.TimelineSegment{RecordID: recordID, Field: "status", Value: v2, Start: time.Unix(t2, 0)},
	)
}
