package core

import (
	"strconv"

	"github.com/shipmetrics/prism/schema"
)

// group is one partition of the filtered set, kept in first-seen order.
type group struct {
	key     string
	label   string
	records []schema.Record
}

// resolveGroup determines the grouping key and display label for a record
// under a field-backed dimension. Temporal dimensions bucket via the
// calendar; a missing value always lands in the UNASSIGNED group so every
// record stays groupable.
func resolveGroup(rec schema.Record, dim schema.Dimension, caps schema.Capability, iv schema.Interval, cal Calendar) (string, string) {
	field := string(dim)
	if caps.Fields[field] == schema.TimeField {
		t, ok := rec.TimeAt(field)
		if !ok {
			return schema.UnassignedKey, schema.UnassignedLabel
		}
		start := cal.BucketStart(t, iv)
		return strconv.FormatInt(start.Unix(), 10), cal.Label(start, iv)
	}

	v := recordString(rec, field)
	if v == "" {
		return schema.UnassignedKey, schema.UnassignedLabel
	}
	return v, v
}

// partition splits records into groups by dim, preserving first-seen group
// order and record order within each group.
func partition(records []schema.Record, dim schema.Dimension, caps schema.Capability, iv schema.Interval, cal Calendar) []*group {
	index := make(map[string]*group)
	var ordered []*group
	for _, rec := range records {
		key, label := resolveGroup(rec, dim, caps, iv, cal)
		g, ok := index[key]
		if !ok {
			g = &group{key: key, label: label}
			index[key] = g
			ordered = append(ordered, g)
		}
		g.records = append(g.records, rec)
	}
	return ordered
}

// partitionBySprint splits records by milestone membership using derived
// sprint-mapping rows. A record mapped to several milestones appears in each
// of their groups; records with no mappings are dropped rather than pooled
// under a sentinel, matching how sprint reports read.
func partitionBySprint(records []schema.Record, mappings []schema.SprintMapping) []*group {
	byRecord := make(map[string][]string)
	for _, m := range mappings {
		byRecord[m.RecordID] = append(byRecord[m.RecordID], m.MilestoneID)
	}

	index := make(map[string]*group)
	var ordered []*group
	for _, rec := range records {
		for _, msID := range byRecord[rec.ID] {
			g, ok := index[msID]
			if !ok {
				g = &group{key: msID, label: msID}
				index[msID] = g
				ordered = append(ordered, g)
			}
			g.records = append(g.records, rec)
		}
	}
	return ordered
}
