// Package timeline reconstructs point-in-time facts from timestamped
// field-change history: the value a field held at any instant, a record's
// classification against a milestone window, and the owners active during a
// date range.
package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/shipmetrics/prism/schema"
)

type segmentKey struct {
	recordID string
	field    string
}

// History indexes immutable TimelineSegments by (recordID, field), sorted by
// start time. Segments for one key are contiguous and non-overlapping; at
// most the last one is open. Closing a segment rewrites only its end bound,
// never the shared slice contents under a reader.
type History struct {
	segments map[segmentKey][]schema.TimelineSegment
}

// NewHistory returns an empty History.
func NewHistory() *History {
	return &History{segments: make(map[segmentKey][]schema.TimelineSegment)}
}

// Load bulk-inserts segments read from the store, sorting each (record, field)
// run by start time. It does not close open predecessors; use Append for
// incremental field-change events.
func (h *History) Load(segs []schema.TimelineSegment) {
	for _, s := range segs {
		k := segmentKey{s.RecordID, s.Field}
		h.segments[k] = append(h.segments[k], s)
	}
	for k := range h.segments {
		run := h.segments[k]
		sort.SliceStable(run, func(i, j int) bool { return run[i].Start.Before(run[j].Start) })
	}
}

// Append records a field change. The previously open segment for the same
// (record, field), if any, is closed at the new segment's start so that
// segments never overlap. Out-of-order appends are rejected.
func (h *History) Append(seg schema.TimelineSegment) error {
	k := segmentKey{seg.RecordID, seg.Field}
	run := h.segments[k]
	if n := len(run); n > 0 {
		last := &run[n-1]
		if seg.Start.Before(last.Start) {
			return fmt.Errorf("segment for %s.%s starts at %s before current segment start %s",
				seg.RecordID, seg.Field, seg.Start.Format(time.RFC3339), last.Start.Format(time.RFC3339))
		}
		if last.End == nil {
			end := seg.Start
			last.End = &end
		} else if last.End.After(seg.Start) {
			return fmt.Errorf("segment for %s.%s starts at %s inside closed segment ending %s",
				seg.RecordID, seg.Field, seg.Start.Format(time.RFC3339), last.End.Format(time.RFC3339))
		}
	}
	h.segments[k] = append(run, seg)
	return nil
}

// Segments returns the ordered segments for (recordID, field). The returned
// slice is shared; callers must not mutate it.
func (h *History) Segments(recordID, field string) []schema.TimelineSegment {
	return h.segments[segmentKey{recordID, field}]
}

// ValueAt resolves the value field held at time t, or false when no segment
// contains t. An open last segment extends to +inf.
func (h *History) ValueAt(recordID, field string, t time.Time) (string, bool) {
	run := h.segments[segmentKey{recordID, field}]
	// Binary search for the last segment starting at or before t.
	i := sort.Search(len(run), func(i int) bool { return run[i].Start.After(t) })
	if i == 0 {
		return "", false
	}
	seg := run[i-1]
	if !seg.Contains(t) {
		return "", false
	}
	return seg.Value, true
}

// FirstHeld returns the earliest time field held value, or false if it never did.
func (h *History) FirstHeld(recordID, field, value string) (time.Time, bool) {
	for _, seg := range h.segments[segmentKey{recordID, field}] {
		if seg.Value == value {
			return seg.Start, true
		}
	}
	return time.Time{}, false
}

// HeldDuring reports whether field held value at any point in [from, to).
func (h *History) HeldDuring(recordID, field, value string, from, to time.Time) bool {
	for _, seg := range h.segments[segmentKey{recordID, field}] {
		if seg.Value == value && seg.Overlaps(from, to) {
			return true
		}
	}
	return false
}
