package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func TestTimelineSegmentContains(t *testing.T) {
	end := ts(10)
	closed := TimelineSegment{RecordID: "r1", Field: "assignee", Value: "alice", Start: ts(0), End: &end}
	open := TimelineSegment{RecordID: "r1", Field: "assignee", Value: "bob", Start: ts(10)}

	assert.True(t, closed.Contains(ts(0)))
	assert.True(t, closed.Contains(ts(9)))
	assert.False(t, closed.Contains(ts(10)), "end bound is exclusive")
	assert.False(t, closed.Contains(ts(-1)))

	assert.True(t, open.Contains(ts(10)))
	assert.True(t, open.Contains(ts(1_000_000)), "open segment extends forever")
	assert.False(t, open.Contains(ts(9)))
}

func TestTimelineSegmentOverlaps(t *testing.T) {
	end := ts(10)
	seg := TimelineSegment{Start: ts(0), End: &end}

	assert.True(t, seg.Overlaps(ts(5), ts(15)))
	assert.True(t, seg.Overlaps(ts(9), ts(10)))
	assert.False(t, seg.Overlaps(ts(10), ts(20)), "half-open: [10,20) misses [0,10)")
	assert.False(t, seg.Overlaps(ts(20), ts(30)))

	// Unbounded window sides.
	assert.True(t, seg.Overlaps(time.Time{}, ts(5)))
	assert.True(t, seg.Overlaps(ts(5), time.Time{}))
	assert.True(t, seg.Overlaps(time.Time{}, time.Time{}))

	open := TimelineSegment{Start: ts(5)}
	assert.True(t, open.Overlaps(ts(100), ts(200)))
	assert.False(t, open.Overlaps(ts(0), ts(5)), "window ends before segment starts")
}

func TestKindCapability(t *testing.T) {
	c, ok := KindCapability(IssueKind)
	require.True(t, ok)

	assert.True(t, c.SupportsDimension("status"))
	assert.True(t, c.SupportsDimension(SprintMappingDimension))
	assert.True(t, c.SupportsDimension(NoneDimension), "none is implicit for every kind")
	assert.False(t, c.SupportsDimension("pipeline"))

	assert.True(t, c.SupportsCalculation(CountCalculation))
	assert.True(t, c.SupportsCalculation(StoryPointReport))
	assert.False(t, c.SupportsCalculation(BuildTime))

	start, end, ok := c.DurationBounds(ResolutionTime)
	require.True(t, ok)
	assert.Equal(t, "created_at", start)
	assert.Equal(t, "closed_at", end)

	_, _, ok = c.DurationBounds(CountCalculation)
	assert.False(t, ok)
}

func TestKindCapabilityUnknownKind(t *testing.T) {
	_, ok := KindCapability(RecordKind("bogus"))
	assert.False(t, ok)
}

func TestRecordAccessors(t *testing.T) {
	rec := Record{
		ID:      "ISS-1",
		Kind:    IssueKind,
		Strings: map[string]string{"status": "DONE"},
		Numbers: map[string]float64{"story_points": 3},
		Times:   map[string]time.Time{"created_at": ts(100), "closed_at": {}},
	}

	assert.Equal(t, "DONE", rec.StringAt("status"))
	assert.Equal(t, "", rec.StringAt("priority"))

	v, ok := rec.NumberAt("story_points")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
	_, ok = rec.NumberAt("effort")
	assert.False(t, ok)

	created, ok := rec.TimeAt("created_at")
	require.True(t, ok)
	assert.Equal(t, ts(100), created)

	_, ok = rec.TimeAt("closed_at")
	assert.False(t, ok, "zero time counts as unset")
}
