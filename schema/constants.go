package schema

// Custom string types for type safety.
type (
	// RecordKind identifies the source-system entity a record was normalized from.
	RecordKind string

	// FieldType describes how a registered field is stored and compared.
	FieldType string

	// Dimension is the attribute (or derived attribute) records are grouped by.
	Dimension string

	// Calculation is the aggregate computed per group.
	Calculation string

	// Interval is the calendar bucket granularity for temporal dimensions.
	Interval string

	// MatchOp is a partial-match operator on string fields.
	MatchOp string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for durable stores.
	DatabaseBackend string
)

// All record kinds supported.
const (
	IssueKind       RecordKind = "issue"
	PullRequestKind RecordKind = "pull_request"
	CommitKind      RecordKind = "commit"
	BuildKind       RecordKind = "build"
	CaseKind        RecordKind = "case"
)

// All field types supported.
const (
	StringField   FieldType = "string"   // free-text categorical, compared case-insensitively
	IdentityField FieldType = "identity" // user/team identifier, compared exactly
	NumberField   FieldType = "number"
	TimeField     FieldType = "time"
	ArrayField    FieldType = "array"
)

// Special dimensions shared by every kind.
const (
	// NoneDimension collapses the whole filtered set into one synthetic group.
	NoneDimension Dimension = "none"

	// SprintMappingDimension groups by (record, milestone) pairs instead of
	// by the record alone.
	SprintMappingDimension Dimension = "sprint_mapping"
)

// All calculations supported.
const (
	CountCalculation     Calculation = "count" // default
	NoneCalculation      Calculation = "none"
	ResolutionTime       Calculation = "resolution_time"
	FirstReviewTime      Calculation = "first_review_time"
	AuthorResponseTime   Calculation = "author_response_time"
	FirstResponseTime    Calculation = "first_response_time"
	BuildTime            Calculation = "build_time"
	StoryPointReport     Calculation = "story_point_report"
	EffortReport         Calculation = "effort_report"
	AssigneesCalculation Calculation = "assignees"
)

// All bucket intervals supported.
const (
	DayInterval     Interval = "day" // default
	WeekInterval    Interval = "week"
	MonthInterval   Interval = "month"
	QuarterInterval Interval = "quarter"
	YearInterval    Interval = "year"
)

// All partial-match operators supported.
const (
	BeginsOp   MatchOp = "$begins"
	EndsOp     MatchOp = "$ends"
	ContainsOp MatchOp = "$contains"
)

// All output modes supported.
const (
	TextOut    OutputMode = "text" // default
	CSVOut     OutputMode = "csv"
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// UnassignedKey is the reserved group key for records whose dimension value
// is missing, so that every record is always groupable.
const UnassignedKey = "UNASSIGNED"

// UnassignedLabel is the human label paired with UnassignedKey.
const UnassignedLabel = "Unassigned"

// TeamPrefix marks an identity filter value that expands into the union of
// team member identities before predicate compilation.
const TeamPrefix = "team_id:"

// ValidIntervals lists all valid bucket intervals.
var ValidIntervals = map[Interval]struct{}{
	DayInterval:     {},
	WeekInterval:    {},
	MonthInterval:   {},
	QuarterInterval: {},
	YearInterval:    {},
}

// ValidMatchOps lists all valid partial-match operators.
var ValidMatchOps = map[MatchOp]struct{}{
	BeginsOp:   {},
	EndsOp:     {},
	ContainsOp: {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TextOut:    {},
	CSVOut:     {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}
