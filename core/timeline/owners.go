package timeline

import (
	"sort"
	"time"

	"github.com/shipmetrics/prism/schema"
)

// ActiveOwners returns the distinct segment values (owners) active at any
// point during the half-open window [from, to), sorted for determinism.
// A zero from or to leaves that side of the window unbounded, so with no
// range every owner ever observed is included.
func ActiveOwners(segs []schema.TimelineSegment, from, to time.Time) []string {
	seen := make(map[string]struct{})
	for _, seg := range segs {
		if seg.Value == "" {
			continue
		}
		if seg.Overlaps(from, to) {
			seen[seg.Value] = struct{}{}
		}
	}
	owners := make([]string, 0, len(seen))
	for u := range seen {
		owners = append(owners, u)
	}
	sort.Strings(owners)
	return owners
}

// OwnersByGroup partitions owner segments by groupOf(recordID) and unions
// the owners active during [from, to) within each partition. Records whose
// group resolves to "" are skipped.
func OwnersByGroup(segsByRecord map[string][]schema.TimelineSegment, groupOf func(recordID string) string, from, to time.Time) map[string][]string {
	grouped := make(map[string][]schema.TimelineSegment)
	for recordID, segs := range segsByRecord {
		g := groupOf(recordID)
		if g == "" {
			continue
		}
		grouped[g] = append(grouped[g], segs...)
	}
	out := make(map[string][]string, len(grouped))
	for g, segs := range grouped {
		out[g] = ActiveOwners(segs, from, to)
	}
	return out
}
