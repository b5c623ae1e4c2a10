package schema

// Capability describes what a record kind supports: which dimensions it can
// be grouped by, which calculations are valid, and the typed field registry
// the predicate compiler consults. Looked up once per query instead of
// duplicating filter logic per kind.
type Capability struct {
	Dimensions   map[Dimension]struct{}
	Calculations map[Calculation]struct{}
	Fields       map[string]FieldType

	durations map[Calculation][2]string
}

// SupportsDimension reports whether d is a valid grouping dimension.
func (c Capability) SupportsDimension(d Dimension) bool {
	_, ok := c.Dimensions[d]
	return ok
}

// SupportsCalculation reports whether calc is a valid metric.
func (c Capability) SupportsCalculation(calc Calculation) bool {
	_, ok := c.Calculations[calc]
	return ok
}

// DurationBounds returns the (start, end) timestamp fields a duration
// calculation is derived from, or false when calc is not a duration metric
// for this capability's kind.
func (c Capability) DurationBounds(calc Calculation) (string, string, bool) {
	b, ok := c.durations[calc]
	if !ok {
		return "", "", false
	}
	return b[0], b[1], true
}

func newCapability(fields map[string]FieldType, dims []Dimension, calcs []Calculation, durations map[Calculation][2]string) Capability {
	c := Capability{
		Dimensions:   make(map[Dimension]struct{}, len(dims)+1),
		Calculations: make(map[Calculation]struct{}, len(calcs)+2),
		Fields:       fields,
		durations:    durations,
	}
	for _, d := range dims {
		c.Dimensions[d] = struct{}{}
	}
	// Every kind supports the none collapse and count.
	c.Dimensions[NoneDimension] = struct{}{}
	for _, m := range calcs {
		c.Calculations[m] = struct{}{}
	}
	c.Calculations[CountCalculation] = struct{}{}
	c.Calculations[NoneCalculation] = struct{}{}
	return c
}

// capabilities is the per-kind capability table.
var capabilities = map[RecordKind]Capability{
	IssueKind: newCapability(
		map[string]FieldType{
			"id":           IdentityField,
			"status":       StringField,
			"priority":     StringField,
			"issue_type":   StringField,
			"project":      StringField,
			"sprint":       StringField,
			"assignee":     IdentityField,
			"reporter":     IdentityField,
			"labels":       ArrayField,
			"story_points": NumberField,
			"effort":       NumberField,
			"created_at":   TimeField,
			"updated_at":   TimeField,
			"closed_at":    TimeField,
		},
		[]Dimension{
			"status", "priority", "issue_type", "project", "sprint",
			"assignee", "reporter", "created_at", "closed_at",
			SprintMappingDimension,
		},
		[]Calculation{
			ResolutionTime, StoryPointReport, EffortReport, AssigneesCalculation,
		},
		map[Calculation][2]string{
			ResolutionTime: {"created_at", "closed_at"},
		},
	),
	PullRequestKind: newCapability(
		map[string]FieldType{
			"id":                  IdentityField,
			"status":              StringField,
			"repository":          StringField,
			"branch":              StringField,
			"author":              IdentityField,
			"reviewer":            IdentityField,
			"additions":           NumberField,
			"deletions":           NumberField,
			"created_at":          TimeField,
			"first_review_at":     TimeField,
			"author_responded_at": TimeField,
			"merged_at":           TimeField,
			"closed_at":           TimeField,
		},
		[]Dimension{
			"status", "repository", "branch", "author", "reviewer",
			"created_at", "merged_at",
		},
		[]Calculation{
			ResolutionTime, FirstReviewTime, AuthorResponseTime, AssigneesCalculation,
		},
		map[Calculation][2]string{
			ResolutionTime:     {"created_at", "closed_at"},
			FirstReviewTime:    {"created_at", "first_review_at"},
			AuthorResponseTime: {"first_review_at", "author_responded_at"},
		},
	),
	CommitKind: newCapability(
		map[string]FieldType{
			"id":            IdentityField,
			"repository":    StringField,
			"branch":        StringField,
			"author":        IdentityField,
			"additions":     NumberField,
			"deletions":     NumberField,
			"files_changed": NumberField,
			"committed_at":  TimeField,
		},
		[]Dimension{"repository", "branch", "author", "committed_at"},
		nil,
		nil,
	),
	BuildKind: newCapability(
		map[string]FieldType{
			"id":           IdentityField,
			"status":       StringField,
			"pipeline":     StringField,
			"branch":       StringField,
			"triggered_by": IdentityField,
			"started_at":   TimeField,
			"finished_at":  TimeField,
		},
		[]Dimension{"status", "pipeline", "branch", "triggered_by", "started_at"},
		[]Calculation{BuildTime},
		map[Calculation][2]string{
			BuildTime: {"started_at", "finished_at"},
		},
	),
	CaseKind: newCapability(
		map[string]FieldType{
			"id":                IdentityField,
			"status":            StringField,
			"priority":          StringField,
			"channel":           StringField,
			"assignee":          IdentityField,
			"requester":         IdentityField,
			"created_at":        TimeField,
			"first_response_at": TimeField,
			"resolved_at":       TimeField,
		},
		[]Dimension{
			"status", "priority", "channel", "assignee", "requester",
			"created_at", "resolved_at",
		},
		[]Calculation{ResolutionTime, FirstResponseTime, AssigneesCalculation},
		map[Calculation][2]string{
			ResolutionTime:    {"created_at", "resolved_at"},
			FirstResponseTime: {"created_at", "first_response_at"},
		},
	),
}

// KindCapability returns the capability table entry for kind.
func KindCapability(kind RecordKind) (Capability, bool) {
	c, ok := capabilities[kind]
	return c, ok
}
