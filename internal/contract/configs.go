package contract

import (
	"fmt"
	"strings"
	"time"

	"github.com/shipmetrics/prism/schema"
)

// Default values for configuration.
const (
	DefaultPageSize  = 50
	MaxPageSize      = 1000
	DefaultPrecision = 1
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// Config holds the runtime configuration for a query run.
// This struct remains the "final, validated" config.
type Config struct {
	Kind         schema.RecordKind
	SnapshotPath string

	Across      schema.Dimension
	Calculation schema.Calculation
	StackAcross []schema.Dimension
	Interval    schema.Interval
	GroupLabel  string

	Equals   map[string][]string
	Excludes map[string][]string

	From time.Time
	To   time.Time

	Page     int
	PageSize int

	Output     schema.OutputMode
	OutputFile string
	Precision  int
	UseColors  bool
	Width      int // Terminal width override (0 = auto-detect)

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	SprintBackend   schema.DatabaseBackend
	SprintDBConnect string // Please use env var as this is plaintext
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config
// file). Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	SnapshotPathStr string

	Kind        string   `mapstructure:"kind"`
	Across      string   `mapstructure:"across"`
	Calculation string   `mapstructure:"calculation"`
	Stack       []string `mapstructure:"stack"`
	Interval    string   `mapstructure:"interval"`
	GroupLabel  string   `mapstructure:"group-label"`

	Equals   []string `mapstructure:"equals"`
	Excludes []string `mapstructure:"excludes"`

	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`

	Page     int `mapstructure:"page"`
	PageSize int `mapstructure:"page-size"`

	Output     string `mapstructure:"output"`
	OutputFile string `mapstructure:"output-file"`
	Precision  int    `mapstructure:"precision"`
	Color      string `mapstructure:"color"`
	Width      int    `mapstructure:"width"`

	CacheBackend   string `mapstructure:"cache-backend"`
	CacheDBConnect string `mapstructure:"cache-db-connect"`

	SprintBackend   string `mapstructure:"sprint-backend"`
	SprintDBConnect string `mapstructure:"sprint-db-connect"`
}

// Clone returns a shallow copy of the config for per-request overrides.
func (c *Config) Clone() *Config {
	out := *c
	return &out
}

// FilterSpec converts the validated config into the engine's query spec.
// Stack dimensions are passed to the engine separately.
func (c *Config) FilterSpec() schema.FilterSpec {
	return schema.FilterSpec{
		Kind:        c.Kind,
		Equals:      c.Equals,
		Excludes:    c.Excludes,
		Across:      c.Across,
		Calculation: c.Calculation,
		AggInterval: c.Interval,
		GroupLabel:  c.GroupLabel,
		From:        c.From,
		To:          c.To,
		Page:        c.Page,
		PageSize:    c.PageSize,
	}
}

// ProcessConfigInput validates the raw input and populates the final Config.
func ProcessConfigInput(cfg *Config, input *ConfigRawInput) error {
	kind := schema.RecordKind(strings.TrimSpace(input.Kind))
	caps, ok := schema.KindCapability(kind)
	if !ok {
		return fmt.Errorf("unknown record kind: %q", input.Kind)
	}
	cfg.Kind = kind
	cfg.SnapshotPath = input.SnapshotPathStr

	cfg.Across = schema.Dimension(input.Across)
	if cfg.Across == "" {
		cfg.Across = schema.NoneDimension
	}
	if !caps.SupportsDimension(cfg.Across) {
		return fmt.Errorf("dimension %q is not valid for kind %q", cfg.Across, kind)
	}

	cfg.Calculation = schema.Calculation(input.Calculation)
	if cfg.Calculation == "" {
		cfg.Calculation = schema.CountCalculation
	}
	if !caps.SupportsCalculation(cfg.Calculation) {
		return fmt.Errorf("calculation %q is not valid for kind %q", cfg.Calculation, kind)
	}

	for _, s := range input.Stack {
		d := schema.Dimension(s)
		if !caps.SupportsDimension(d) {
			return fmt.Errorf("stack dimension %q is not valid for kind %q", s, kind)
		}
		cfg.StackAcross = append(cfg.StackAcross, d)
	}

	cfg.Interval = schema.Interval(input.Interval)
	if cfg.Interval == "" {
		cfg.Interval = schema.DayInterval
	}
	if _, ok := schema.ValidIntervals[cfg.Interval]; !ok {
		return fmt.Errorf("invalid interval: %q. Must be day, week, month, quarter or year", input.Interval)
	}

	cfg.GroupLabel = input.GroupLabel

	var err error
	if cfg.Equals, err = parseFieldValues(input.Equals); err != nil {
		return fmt.Errorf("invalid --equals: %w", err)
	}
	if cfg.Excludes, err = parseFieldValues(input.Excludes); err != nil {
		return fmt.Errorf("invalid --excludes: %w", err)
	}

	if cfg.From, err = parseTimeFlag(input.From); err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	if cfg.To, err = parseTimeFlag(input.To); err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	cfg.Page = max(input.Page, 0)
	cfg.PageSize = input.PageSize
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PageSize > MaxPageSize {
		cfg.PageSize = MaxPageSize
	}

	cfg.Output = schema.OutputMode(input.Output)
	if cfg.Output == "" {
		cfg.Output = schema.TextOut
	}
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output mode: %q. Must be text, csv, json or parquet", input.Output)
	}
	cfg.OutputFile = input.OutputFile

	cfg.Precision = input.Precision
	if cfg.Precision < 0 {
		cfg.Precision = DefaultPrecision
	}
	cfg.UseColors = strings.EqualFold(input.Color, "yes") || strings.EqualFold(input.Color, "true")
	cfg.Width = input.Width

	if err := processBackend(&cfg.CacheBackend, input.CacheBackend, "cache"); err != nil {
		return err
	}
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, input.CacheDBConnect); err != nil {
		return err
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := processBackend(&cfg.SprintBackend, input.SprintBackend, "sprint"); err != nil {
		return err
	}
	if err := ValidateDatabaseConnectionString(cfg.SprintBackend, input.SprintDBConnect); err != nil {
		return err
	}
	cfg.SprintDBConnect = input.SprintDBConnect

	return nil
}

// ValidateDatabaseConnectionString checks that server-based backends carry a
// connection string. SQLite and none need no connection details.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.MySQLBackend, schema.PostgreSQLBackend:
		if strings.TrimSpace(connStr) == "" {
			return fmt.Errorf("%s backend requires a connection string", backend)
		}
	}
	return nil
}

// parseFieldValues converts "field=v1,v2" flag entries into a constraint map.
func parseFieldValues(entries []string) (map[string][]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string][]string, len(entries))
	for _, e := range entries {
		field, values, ok := strings.Cut(e, "=")
		if !ok || strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("expected field=value[,value...], got %q", e)
		}
		for _, v := range strings.Split(values, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			out[field] = append(out[field], v)
		}
		if len(out[field]) == 0 {
			return nil, fmt.Errorf("no values for field %q", field)
		}
	}
	return out, nil
}

func parseTimeFlag(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateTimeFormat, s)
}

func processBackend(dst *schema.DatabaseBackend, raw, label string) error {
	b := schema.DatabaseBackend(raw)
	if b == "" {
		b = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[b]; !ok {
		return fmt.Errorf("invalid %s backend: %q. Must be sqlite, mysql, postgresql, or none", label, raw)
	}
	*dst = b
	return nil
}
