package timeline

import (
	"strconv"
	"time"

	"github.com/shipmetrics/prism/schema"
)

// SprintFields names the history fields sprint classification reads.
type SprintFields struct {
	Sprint string // field holding the milestone id
	Status string // field holding the workflow status
	Points string // field holding the estimate value
}

// DefaultSprintFields matches the issue field registry.
var DefaultSprintFields = SprintFields{
	Sprint: "sprint",
	Status: "status",
	Points: "story_points",
}

// DefaultTerminalStatuses are the statuses that count as delivered.
var DefaultTerminalStatuses = map[string]struct{}{
	"DONE":     {},
	"CLOSED":   {},
	"RESOLVED": {},
}

// Classify derives the SprintMapping row for one record against one
// milestone window [ms.Start, ms.End). Reprocessing the same history yields
// an identical row, so the caller can upsert the result blindly.
//
// A record with no history for the milestone yields the placeholder row
// (outsideOfWindow=true, everything else zero) rather than an error.
func Classify(h *History, recordID string, ms schema.Milestone, fields SprintFields, terminal map[string]struct{}) schema.SprintMapping {
	row := schema.SprintMapping{
		RecordID:    recordID,
		MilestoneID: ms.ID,
	}

	addedAt, ok := h.FirstHeld(recordID, fields.Sprint, ms.ID)
	if !ok {
		row.OutsideOfWindow = true
		return row
	}
	row.AddedAt = addedAt

	// Planned: assigned before (or exactly at) the window opening.
	row.Planned = !addedAt.After(ms.Start)

	// Outside: assigned only after the window closed, or never observed
	// inside the window while assigned to this milestone.
	inWindow := h.HeldDuring(recordID, fields.Sprint, ms.ID, ms.Start, ms.End)
	row.OutsideOfWindow = !inWindow || !addedAt.Before(ms.End)

	// Delivered: the earliest terminal-status transition at or before the
	// window close, while the record was still assigned to this milestone.
	deliveredAt, delivered := deliveredTime(h, recordID, ms, fields, terminal)
	row.Delivered = delivered

	row.PointsPlanned = pointsAt(h, recordID, fields.Points, plannedReadTime(row, ms))
	if delivered {
		row.PointsDelivered = pointsAt(h, recordID, fields.Points, deliveredAt)
	}
	return row
}

// plannedReadTime picks the instant the planned estimate is read at: the
// window opening for planned records, the assignment time otherwise.
func plannedReadTime(row schema.SprintMapping, ms schema.Milestone) time.Time {
	if row.Planned {
		return ms.Start
	}
	return row.AddedAt
}

func deliveredTime(h *History, recordID string, ms schema.Milestone, fields SprintFields, terminal map[string]struct{}) (time.Time, bool) {
	for _, seg := range h.Segments(recordID, fields.Status) {
		if _, ok := terminal[seg.Value]; !ok {
			continue
		}
		if seg.Start.After(ms.End) {
			break // segments are ordered; nothing later can qualify
		}
		if v, ok := h.ValueAt(recordID, fields.Sprint, seg.Start); ok && v == ms.ID {
			return seg.Start, true
		}
	}
	return time.Time{}, false
}

// pointsAt reads the estimate value at t. History values are the raw change
// payloads, so non-numeric or missing values read as 0.
func pointsAt(h *History, recordID, field string, t time.Time) float64 {
	raw, ok := h.ValueAt(recordID, field, t)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}
