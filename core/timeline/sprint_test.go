package timeline

import (
	"testing"

	"github.com/shipmetrics/prism/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sprintMilestone is a two-week window [1000, 2000) used across the tests.
func sprintMilestone() schema.Milestone {
	return schema.Milestone{ID: "S1", Start: ts(1000), End: ts(2000)}
}

func buildHistory(t *testing.T, segs ...schema.TimelineSegment) *History {
	t.Helper()
	h := NewHistory()
	for _, s := range segs {
		require.NoError(t, h.Append(s))
	}
	return h
}

func TestClassifyPlannedAndDelivered(t *testing.T) {
	h := buildHistory(t,
		seg("r1", "sprint", "S1", 500),
		seg("r1", "status", "OPEN", 500),
		seg("r1", "story_points", "5", 500),
		seg("r1", "status", "DONE", 1800),
	)

	row := Classify(h, "r1", sprintMilestone(), DefaultSprintFields, DefaultTerminalStatuses)

	assert.Equal(t, ts(500), row.AddedAt)
	assert.True(t, row.Planned, "assigned before the window opened")
	assert.True(t, row.Delivered, "closed before the window ended while assigned")
	assert.False(t, row.OutsideOfWindow)
	assert.Equal(t, 5.0, row.PointsPlanned)
	assert.Equal(t, 5.0, row.PointsDelivered)
}

func TestClassifyAddedMidWindow(t *testing.T) {
	h := buildHistory(t,
		seg("r1", "story_points", "3", 0),
		seg("r1", "sprint", "S1", 1500),
		seg("r1", "status", "OPEN", 0),
	)

	row := Classify(h, "r1", sprintMilestone(), DefaultSprintFields, DefaultTerminalStatuses)

	assert.Equal(t, ts(1500), row.AddedAt)
	assert.False(t, row.Planned)
	assert.False(t, row.Delivered)
	assert.False(t, row.OutsideOfWindow)
	assert.Equal(t, 3.0, row.PointsPlanned, "unplanned records read points at addedAt")
	assert.Zero(t, row.PointsDelivered)
}

func TestClassifyOutsideOfWindow(t *testing.T) {
	t.Run("assigned after window closed", func(t *testing.T) {
		h := buildHistory(t, seg("r1", "sprint", "S1", 2500))
		row := Classify(h, "r1", sprintMilestone(), DefaultSprintFields, DefaultTerminalStatuses)
		assert.True(t, row.OutsideOfWindow)
		assert.False(t, row.Planned)
	})

	t.Run("removed before window opened", func(t *testing.T) {
		h := buildHistory(t,
			seg("r1", "sprint", "S1", 100),
			seg("r1", "sprint", "S2", 500),
		)
		row := Classify(h, "r1", sprintMilestone(), DefaultSprintFields, DefaultTerminalStatuses)
		assert.True(t, row.OutsideOfWindow, "never held the milestone inside the window")
		assert.True(t, row.Planned, "still counted as planned by assignment time")
	})

	t.Run("no history at all", func(t *testing.T) {
		row := Classify(NewHistory(), "r1", sprintMilestone(), DefaultSprintFields, DefaultTerminalStatuses)
		assert.True(t, row.OutsideOfWindow)
		assert.True(t, row.AddedAt.IsZero())
		assert.Zero(t, row.PointsPlanned)
	})
}

func TestClassifyDeliveredRequiresAssignment(t *testing.T) {
	// Closed while assigned to a different sprint: not delivered for S1.
	h := buildHistory(t,
		seg("r1", "sprint", "S1", 500),
		seg("r1", "sprint", "S2", 1200),
		seg("r1", "status", "OPEN", 500),
		seg("r1", "status", "DONE", 1500),
	)

	row := Classify(h, "r1", sprintMilestone(), DefaultSprintFields, DefaultTerminalStatuses)
	assert.False(t, row.Delivered)
	assert.Zero(t, row.PointsDelivered)
}

func TestClassifyDeliveredAfterWindowClose(t *testing.T) {
	h := buildHistory(t,
		seg("r1", "sprint", "S1", 500),
		seg("r1", "status", "DONE", 2500),
	)

	row := Classify(h, "r1", sprintMilestone(), DefaultSprintFields, DefaultTerminalStatuses)
	assert.False(t, row.Delivered, "terminal status reached only after the window closed")
}

func TestClassifyPlannedPointsReadAtWindowStart(t *testing.T) {
	// The estimate changed between assignment and sprint start; planned
	// points reflect the value at the window opening.
	h := buildHistory(t,
		seg("r1", "sprint", "S1", 100),
		seg("r1", "story_points", "2", 100),
		seg("r1", "story_points", "8", 900),
	)

	row := Classify(h, "r1", sprintMilestone(), DefaultSprintFields, DefaultTerminalStatuses)
	require.True(t, row.Planned)
	assert.Equal(t, 8.0, row.PointsPlanned)
}

func TestClassifyDeterminism(t *testing.T) {
	h := buildHistory(t,
		seg("r1", "sprint", "S1", 500),
		seg("r1", "status", "OPEN", 500),
		seg("r1", "story_points", "5", 500),
		seg("r1", "status", "DONE", 1800),
	)
	ms := sprintMilestone()

	first := Classify(h, "r1", ms, DefaultSprintFields, DefaultTerminalStatuses)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(h, "r1", ms, DefaultSprintFields, DefaultTerminalStatuses))
	}
}

func TestClassifyNonNumericPoints(t *testing.T) {
	h := buildHistory(t,
		seg("r1", "sprint", "S1", 500),
		seg("r1", "story_points", "XL", 500),
	)

	row := Classify(h, "r1", sprintMilestone(), DefaultSprintFields, DefaultTerminalStatuses)
	assert.Zero(t, row.PointsPlanned, "non-numeric estimate payload reads as zero")
}

func TestClassifyAtExactBoundaries(t *testing.T) {
	ms := sprintMilestone()

	t.Run("assigned exactly at window start is planned", func(t *testing.T) {
		h := buildHistory(t, seg("r1", "sprint", "S1", 1000))
		row := Classify(h, "r1", ms, DefaultSprintFields, DefaultTerminalStatuses)
		assert.True(t, row.Planned)
		assert.False(t, row.OutsideOfWindow)
	})

	t.Run("delivered exactly at window end counts", func(t *testing.T) {
		h := buildHistory(t,
			seg("r1", "sprint", "S1", 500),
			seg("r1", "status", "DONE", 2000),
		)
		row := Classify(h, "r1", ms, DefaultSprintFields, DefaultTerminalStatuses)
		assert.True(t, row.Delivered)
	})

	t.Run("assigned exactly at window end is outside", func(t *testing.T) {
		h := buildHistory(t, seg("r1", "sprint", "S1", 2000))
		row := Classify(h, "r1", ms, DefaultSprintFields, DefaultTerminalStatuses)
		assert.True(t, row.OutsideOfWindow)
	})
}

func TestClassifyDeliveryTimeVsDuration(t *testing.T) {
	// Estimate raised mid-sprint; delivered points reflect the value at
	// delivery time, not at planning time.
	h := buildHistory(t,
		seg("r1", "sprint", "S1", 500),
		seg("r1", "story_points", "3", 500),
		seg("r1", "story_points", "5", 1500),
		seg("r1", "status", "DONE", 1800),
	)

	row := Classify(h, "r1", sprintMilestone(), DefaultSprintFields, DefaultTerminalStatuses)
	assert.Equal(t, 3.0, row.PointsPlanned)
	assert.Equal(t, 5.0, row.PointsDelivered)
}
