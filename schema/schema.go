// Package schema has models, constants and capability tables for all parts of prism.
package schema

import (
	"errors"
	"time"
)

// ErrInvalidFilter marks a FilterSpec the engine rejects outright: an unknown
// dimension or metric for the record kind, an operator unsupported for a
// field's type, or a malformed range. Callers should test with errors.Is.
var ErrInvalidFilter = errors.New("invalid filter")

// Record is a tenant-scoped entity of a given kind. Attributes are
// kind-specific and live in typed maps; a key absent from its map means the
// attribute is unset. Times use the zero value for "never happened".
type Record struct {
	ID      string
	Kind    RecordKind
	Tenant  string
	Strings map[string]string
	Numbers map[string]float64
	Times   map[string]time.Time
	Arrays  map[string][]string
}

// StringAt returns the string attribute for name, or "" when unset.
func (r *Record) StringAt(name string) string {
	return r.Strings[name]
}

// NumberAt returns the numeric attribute for name and whether it is set.
func (r *Record) NumberAt(name string) (float64, bool) {
	v, ok := r.Numbers[name]
	return v, ok
}

// TimeAt returns the time attribute for name and whether it is set.
// A zero time stored in the map counts as unset.
func (r *Record) TimeAt(name string) (time.Time, bool) {
	v, ok := r.Times[name]
	if !ok || v.IsZero() {
		return time.Time{}, false
	}
	return v, true
}

// Range bounds a numeric or time field. Time fields compare by epoch seconds.
// Nil bounds are open ends; at most one of GT/GTE and one of LT/LTE may be set.
type Range struct {
	GT  *float64 `json:"$gt,omitempty"`
	GTE *float64 `json:"$gte,omitempty"`
	LT  *float64 `json:"$lt,omitempty"`
	LTE *float64 `json:"$lte,omitempty"`
}

// Match is a partial-match constraint on a string field.
type Match struct {
	Op    MatchOp `json:"op"`
	Value string  `json:"value"`
}

// SortSpec orders a List result by one field.
type SortSpec struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

// FilterSpec is the declarative description of what to match, how to group
// and what to compute. Absent constraints are no-ops.
type FilterSpec struct {
	Kind RecordKind `json:"kind"`

	Equals   map[string][]string `json:"equals,omitempty"`
	Excludes map[string][]string `json:"excludes,omitempty"`
	Ranges   map[string]Range    `json:"ranges,omitempty"`
	Partial  map[string]Match    `json:"partialMatch,omitempty"`

	Across      Dimension   `json:"across,omitempty"`
	Calculation Calculation `json:"calculation,omitempty"`
	StackAcross Dimension   `json:"stackAcross,omitempty"`
	AggInterval Interval    `json:"aggInterval,omitempty"`

	// GroupLabel keys the single synthetic row produced by the none/none collapse.
	GroupLabel string `json:"groupLabel,omitempty"`

	// From and To bound the owner-overlap window for the assignees calculation.
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`

	Page     int `json:"page,omitempty"`
	PageSize int `json:"pageSize,omitempty"`

	Sort *SortSpec `json:"sort,omitempty"`

	// IngestedAt is the snapshot marker of the data the caller expects to
	// query; it participates in the cache key so stale cached aggregates are
	// never served across ingestion runs.
	IngestedAt time.Time `json:"ingestedAt,omitempty"`
}

// AggregationResult is one group of an aggregation, optionally carrying a
// nested stack when a second dimension was requested.
type AggregationResult struct {
	Key           string `json:"key"`
	AdditionalKey string `json:"additionalKey,omitempty"`
	Count         int    `json:"count"`

	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Sum    float64 `json:"sum,omitempty"`
	Median float64 `json:"median,omitempty"`

	TotalTickets     int     `json:"totalTickets,omitempty"`
	TotalPoints      float64 `json:"totalPoints,omitempty"`
	TotalEffort      float64 `json:"totalEffort,omitempty"`
	TotalUnestimated int     `json:"totalUnestimatedTickets,omitempty"`

	Assignees []string `json:"assignees,omitempty"`

	Stack []AggregationResult `json:"stack,omitempty"`
}

// ListResult is the page of raw records matching a FilterSpec.
type ListResult struct {
	Records    []Record `json:"records"`
	Count      int      `json:"count"`
	TotalCount int      `json:"totalCount"`
}

// AggregateResult is the outcome of a (possibly stacked) group-by.
type AggregateResult struct {
	Records    []AggregationResult `json:"records"`
	TotalCount int                 `json:"totalCount"`
}

// TimelineSegment is a half-open interval [Start, End) during which Field
// held Value for a record. A nil End means the segment is still current.
type TimelineSegment struct {
	RecordID string     `json:"recordId"`
	Field    string     `json:"fieldName"`
	Value    string     `json:"value"`
	Start    time.Time  `json:"startTime"`
	End      *time.Time `json:"endTime,omitempty"`
}

// Contains reports whether t falls inside the segment's half-open interval.
func (s TimelineSegment) Contains(t time.Time) bool {
	if t.Before(s.Start) {
		return false
	}
	return s.End == nil || t.Before(*s.End)
}

// Overlaps reports whether the segment overlaps the half-open window
// [from, to). A zero from or to leaves that side unbounded.
func (s TimelineSegment) Overlaps(from, to time.Time) bool {
	if !to.IsZero() && !s.Start.Before(to) {
		return false
	}
	if !from.IsZero() && s.End != nil && !s.End.After(from) {
		return false
	}
	return true
}

// Milestone is a bounded time window (sprint/iteration) records map against.
// Immutable once created.
type Milestone struct {
	ID          string     `json:"id"`
	ParentID    string     `json:"parentId,omitempty"`
	Name        string     `json:"name,omitempty"`
	Start       time.Time  `json:"startTime"`
	End         time.Time  `json:"endTime"`
	CompletedAt *time.Time `json:"completedTime,omitempty"`
}

// SprintMapping is the derived classification of one record against one
// milestone. Exactly one row exists per (record, milestone) pair ever
// observed; reclassification upserts the same row.
type SprintMapping struct {
	Tenant      string `json:"tenant"`
	Integration string `json:"integration"`
	RecordID    string `json:"recordId"`
	MilestoneID string `json:"milestoneId"`

	AddedAt         time.Time `json:"addedAt"`
	Planned         bool      `json:"planned"`
	Delivered       bool      `json:"delivered"`
	OutsideOfWindow bool      `json:"outsideOfWindow"`
	PointsPlanned   float64   `json:"pointsPlanned"`
	PointsDelivered float64   `json:"pointsDelivered"`
}
