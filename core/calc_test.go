package core

import (
	"testing"
	"time"

	"github.com/shipmetrics/prism/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capsFor(t *testing.T, kind schema.RecordKind) schema.Capability {
	t.Helper()
	caps, ok := schema.KindCapability(kind)
	require.True(t, ok)
	return caps
}

func TestCalculateCount(t *testing.T) {
	g := &group{key: "OPEN", label: "OPEN", records: make([]schema.Record, 3)}
	res := calculate(schema.CountCalculation, g, calcInputs{caps: capsFor(t, schema.IssueKind)})
	assert.Equal(t, "OPEN", res.Key)
	assert.Equal(t, 3, res.Count)
	assert.Zero(t, res.Sum)
}

func TestCalculateStoryPointReport(t *testing.T) {
	g := &group{key: "S1", label: "S1", records: []schema.Record{
		{ID: "r1", Numbers: map[string]float64{"story_points": 5}},
		{ID: "r2", Numbers: map[string]float64{"story_points": 3}},
		{ID: "r3", Numbers: map[string]float64{"story_points": 0}},
		{ID: "r4"},
	}}
	res := calculate(schema.StoryPointReport, g, calcInputs{caps: capsFor(t, schema.IssueKind)})
	assert.Equal(t, 4, res.TotalTickets)
	assert.Equal(t, 8.0, res.TotalPoints)
	assert.Equal(t, 2, res.TotalUnestimated, "zero estimates count as unestimated")
}

func TestCalculateEffortReport(t *testing.T) {
	g := &group{key: "S1", label: "S1", records: []schema.Record{
		{ID: "r1", Numbers: map[string]float64{"effort": 2.5}},
		{ID: "r2"},
	}}
	res := calculate(schema.EffortReport, g, calcInputs{caps: capsFor(t, schema.IssueKind)})
	assert.Equal(t, 2.5, res.TotalEffort)
	assert.Equal(t, 1, res.TotalUnestimated)
}

func TestFillDurationsClampsNegative(t *testing.T) {
	var res schema.AggregationResult
	records := []schema.Record{
		{ID: "r1", Times: map[string]time.Time{"created_at": time.Unix(100, 0), "closed_at": time.Unix(40, 0)}},
	}
	fillDurations(&res, records, "created_at", "closed_at")
	assert.Zero(t, res.Min, "end before start clamps to zero rather than going negative")
	assert.Zero(t, res.Sum)
}

func TestFillDurationsAllOpenLeavesZeroes(t *testing.T) {
	var res schema.AggregationResult
	records := []schema.Record{
		{ID: "r1", Times: map[string]time.Time{"created_at": time.Unix(100, 0)}},
	}
	fillDurations(&res, records, "created_at", "closed_at")
	assert.Zero(t, res.Min)
	assert.Zero(t, res.Max)
	assert.Zero(t, res.Median)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 7.0, median([]float64{7}))
	assert.Equal(t, 15.0, median([]float64{10, 20}))
	assert.Equal(t, 20.0, median([]float64{10, 20, 30}))
	assert.Equal(t, 25.0, median([]float64{10, 20, 30, 40}))
}
