package core

import (
	"sort"
	"time"

	"github.com/shipmetrics/prism/core/timeline"
	"github.com/shipmetrics/prism/schema"
)

// calcInputs carries the cross-cutting inputs some calculations need beyond
// the group's own records.
type calcInputs struct {
	caps schema.Capability

	// ownerSegments holds the owner-field history per record id, used by the
	// assignees calculation.
	ownerSegments map[string][]schema.TimelineSegment
	from, to      time.Time
}

// calculate reduces one group of records to an AggregationResult.
func calculate(calc schema.Calculation, g *group, in calcInputs) schema.AggregationResult {
	res := schema.AggregationResult{
		Key:           g.key,
		AdditionalKey: g.label,
		Count:         len(g.records),
	}

	switch calc {
	case schema.CountCalculation, schema.NoneCalculation:
		// Count is already set; nothing further to derive.

	case schema.StoryPointReport:
		fillEstimateReport(&res, g.records, "story_points", func(r *schema.AggregationResult, sum float64) {
			r.TotalPoints = sum
		})

	case schema.EffortReport:
		fillEstimateReport(&res, g.records, "effort", func(r *schema.AggregationResult, sum float64) {
			r.TotalEffort = sum
		})

	case schema.AssigneesCalculation:
		var segs []schema.TimelineSegment
		for _, rec := range g.records {
			segs = append(segs, in.ownerSegments[rec.ID]...)
		}
		res.Assignees = timeline.ActiveOwners(segs, in.from, in.to)
		res.Count = len(res.Assignees)

	default:
		// Duration metrics, validated upstream against the capability table.
		if start, end, ok := in.caps.DurationBounds(calc); ok {
			fillDurations(&res, g.records, start, end)
		}
	}

	return res
}

// fillDurations computes min/max/median/sum of end-start in whole seconds,
// clamped to non-negative. Records where the end event never occurred are
// excluded from the spread but still counted in Count.
func fillDurations(res *schema.AggregationResult, records []schema.Record, startField, endField string) {
	var durations []float64
	for _, rec := range records {
		start, ok := rec.TimeAt(startField)
		if !ok {
			continue
		}
		end, ok := rec.TimeAt(endField)
		if !ok {
			continue
		}
		secs := end.Sub(start).Seconds()
		if secs < 0 {
			secs = 0
		}
		durations = append(durations, secs)
	}
	if len(durations) == 0 {
		return
	}
	sort.Float64s(durations)
	res.Min = durations[0]
	res.Max = durations[len(durations)-1]
	res.Median = median(durations)
	for _, d := range durations {
		res.Sum += d
	}
}

// fillEstimateReport sums a numeric estimate across the group and counts the
// records where the estimate is absent or zero.
func fillEstimateReport(res *schema.AggregationResult, records []schema.Record, field string, assign func(*schema.AggregationResult, float64)) {
	var sum float64
	var unestimated int
	for _, rec := range records {
		v, ok := rec.NumberAt(field)
		if !ok || v == 0 {
			unestimated++
			continue
		}
		sum += v
	}
	res.TotalTickets = len(records)
	res.TotalUnestimated = unestimated
	assign(res, sum)
}

// median of a sorted, non-empty slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
