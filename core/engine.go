// Package core has the aggregation engine: predicate compilation, grouping,
// bucketing, metric calculation, stacked group-bys and cache-key derivation.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shipmetrics/prism/core/timeline"
	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/schema"
)

// currentCacheVersion defines the version of the cached-result payload.
const currentCacheVersion = 1

// cacheMaxAge bounds how long a cached aggregation stays servable.
const cacheMaxAge = 24 * time.Hour

// DefaultGroupLabel keys the synthetic row of the none collapse when the
// caller supplies no label.
const DefaultGroupLabel = "all"

// Engine answers list and aggregation queries for one store of normalized
// records. It is stateless per request: every call is a pure function of the
// spec and the current store contents, so calls may run fully in parallel.
type Engine struct {
	store      contract.RecordStore
	teams      contract.TeamResolver
	timelines  contract.TimelineReader
	milestones contract.MilestoneReader
	sprints    contract.SprintMappingStore
	cache      contract.ResultCache
	calendar   Calendar
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithTeamResolver enables team_id filter expansion.
func WithTeamResolver(t contract.TeamResolver) Option {
	return func(e *Engine) { e.teams = t }
}

// WithTimelineReader enables history-backed calculations (assignees).
func WithTimelineReader(t contract.TimelineReader) Option {
	return func(e *Engine) { e.timelines = t }
}

// WithMilestoneReader enables sprint reclassification.
func WithMilestoneReader(m contract.MilestoneReader) Option {
	return func(e *Engine) { e.milestones = m }
}

// WithSprintMappingStore enables the sprint_mapping dimension and persists
// reclassification results.
func WithSprintMappingStore(s contract.SprintMappingStore) Option {
	return func(e *Engine) { e.sprints = s }
}

// WithResultCache enables read-through caching of aggregation results.
func WithResultCache(c contract.ResultCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithCalendar overrides the bucketing policy (default: UTC, ISO weeks).
func WithCalendar(c Calendar) Option {
	return func(e *Engine) { e.calendar = c }
}

// NewEngine builds an engine over the given record store.
func NewEngine(store contract.RecordStore, opts ...Option) *Engine {
	e := &Engine{store: store, calendar: DefaultCalendar()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// List returns the filtered, sorted, paginated raw records for spec. The
// whole matching set is materialized once so Count and TotalCount can never
// disagree with the returned page.
func (e *Engine) List(ctx context.Context, spec schema.FilterSpec) (schema.ListResult, error) {
	caps, err := e.validate(spec, nil)
	if err != nil {
		return schema.ListResult{}, err
	}
	matched, err := e.fetchMatching(ctx, spec, caps)
	if err != nil {
		return schema.ListResult{}, err
	}

	page := paginate(matched, spec.Page, spec.PageSize)
	return schema.ListResult{
		Records:    page,
		Count:      len(page),
		TotalCount: len(matched),
	}, nil
}

// GroupByAndCalculate runs a single-dimension aggregation, read-through
// cached when a result cache is configured.
func (e *Engine) GroupByAndCalculate(ctx context.Context, spec schema.FilterSpec) (schema.AggregateResult, error) {
	spec.StackAcross = ""
	caps, err := e.validate(spec, nil)
	if err != nil {
		return schema.AggregateResult{}, err
	}

	key := CacheKey(spec)
	if cached, ok := e.checkCacheHit(key); ok {
		return cached, nil
	}

	matched, err := e.fetchMatching(ctx, spec, caps)
	if err != nil {
		return schema.AggregateResult{}, err
	}
	results, err := e.aggregate(ctx, spec, caps, matched, nil)
	if err != nil {
		return schema.AggregateResult{}, err
	}

	out := schema.AggregateResult{Records: results, TotalCount: len(matched)}
	e.storeInCache(key, out)
	return out, nil
}

// StackedGroupBy nests one aggregation level per stack dimension under the
// outer across groups, reusing the same calculation at every level.
func (e *Engine) StackedGroupBy(ctx context.Context, spec schema.FilterSpec, stackDims []schema.Dimension) (schema.AggregateResult, error) {
	if len(stackDims) == 0 && spec.StackAcross != "" {
		stackDims = []schema.Dimension{spec.StackAcross}
	}
	caps, err := e.validate(spec, stackDims)
	if err != nil {
		return schema.AggregateResult{}, err
	}
	matched, err := e.fetchMatching(ctx, spec, caps)
	if err != nil {
		return schema.AggregateResult{}, err
	}
	results, err := e.aggregate(ctx, spec, caps, matched, stackDims)
	if err != nil {
		return schema.AggregateResult{}, err
	}
	return schema.AggregateResult{Records: results, TotalCount: len(matched)}, nil
}

// validate checks the spec against the kind's capability table. Violations
// are rejections, never silent defaults.
func (e *Engine) validate(spec schema.FilterSpec, stackDims []schema.Dimension) (schema.Capability, error) {
	caps, ok := schema.KindCapability(spec.Kind)
	if !ok {
		return schema.Capability{}, fmt.Errorf("%w: unknown record kind %q", schema.ErrInvalidFilter, spec.Kind)
	}

	across := spec.Across
	if across == "" {
		across = schema.NoneDimension
	}
	if !caps.SupportsDimension(across) {
		return schema.Capability{}, fmt.Errorf("%w: dimension %q is not valid for kind %q", schema.ErrInvalidFilter, across, spec.Kind)
	}

	calc := spec.Calculation
	if calc == "" {
		calc = schema.CountCalculation
	}
	if !caps.SupportsCalculation(calc) {
		return schema.Capability{}, fmt.Errorf("%w: calculation %q is not valid for kind %q", schema.ErrInvalidFilter, calc, spec.Kind)
	}

	for _, d := range stackDims {
		if d == schema.NoneDimension || d == schema.SprintMappingDimension {
			return schema.Capability{}, fmt.Errorf("%w: dimension %q cannot be stacked", schema.ErrInvalidFilter, d)
		}
		if !caps.SupportsDimension(d) {
			return schema.Capability{}, fmt.Errorf("%w: stack dimension %q is not valid for kind %q", schema.ErrInvalidFilter, d, spec.Kind)
		}
	}

	if spec.AggInterval != "" {
		if _, ok := schema.ValidIntervals[spec.AggInterval]; !ok {
			return schema.Capability{}, fmt.Errorf("%w: unknown interval %q", schema.ErrInvalidFilter, spec.AggInterval)
		}
	}
	return caps, nil
}

// fetchMatching compiles the predicate and materializes the full matching
// set. Store errors propagate unchanged; the engine performs no read retries.
func (e *Engine) fetchMatching(ctx context.Context, spec schema.FilterSpec, caps schema.Capability) ([]schema.Record, error) {
	pred, err := CompilePredicate(ctx, spec, caps, e.teams)
	if err != nil {
		return nil, err
	}
	return e.store.ExecutePredicate(ctx, spec.Kind, pred, spec.Sort, 0, 0)
}

// aggregate runs grouping and calculation over the matched set, recursing
// for each remaining stack dimension.
func (e *Engine) aggregate(ctx context.Context, spec schema.FilterSpec, caps schema.Capability, matched []schema.Record, stackDims []schema.Dimension) ([]schema.AggregationResult, error) {
	calc := spec.Calculation
	if calc == "" {
		calc = schema.CountCalculation
	}

	inputs, err := e.calcInputsFor(ctx, spec, caps, calc, matched)
	if err != nil {
		return nil, err
	}

	groups, err := e.partitionFor(ctx, spec, matched)
	if err != nil {
		return nil, err
	}

	results := make([]schema.AggregationResult, 0, len(groups))
	for _, g := range groups {
		res := calculate(calc, g, inputs)
		if len(stackDims) > 0 {
			inner := spec
			inner.Across = stackDims[0]
			stack, err := e.aggregate(ctx, inner, caps, g.records, stackDims[1:])
			if err != nil {
				return nil, err
			}
			res.Stack = stack
		}
		results = append(results, res)
	}
	return results, nil
}

// partitionFor splits the matched set along spec.Across. The none dimension
// collapses everything into one synthetic group that exists even when zero
// records matched.
func (e *Engine) partitionFor(ctx context.Context, spec schema.FilterSpec, matched []schema.Record) ([]*group, error) {
	across := spec.Across
	if across == "" {
		across = schema.NoneDimension
	}

	switch across {
	case schema.NoneDimension:
		label := spec.GroupLabel
		if label == "" {
			label = DefaultGroupLabel
		}
		return []*group{{key: label, label: label, records: matched}}, nil

	case schema.SprintMappingDimension:
		if e.sprints == nil {
			return nil, errors.New("sprint_mapping dimension requires a sprint mapping store")
		}
		mappings, err := e.sprints.ListByRecords(ctx, recordIDs(matched))
		if err != nil {
			return nil, err
		}
		return partitionBySprint(matched, mappings), nil

	default:
		caps, _ := schema.KindCapability(spec.Kind)
		iv := spec.AggInterval
		if iv == "" {
			iv = schema.DayInterval
		}
		return partition(matched, across, caps, iv, e.calendar), nil
	}
}

// calcInputsFor prefetches the collaborator data a calculation needs.
func (e *Engine) calcInputsFor(ctx context.Context, spec schema.FilterSpec, caps schema.Capability, calc schema.Calculation, matched []schema.Record) (calcInputs, error) {
	in := calcInputs{caps: caps, from: spec.From, to: spec.To}
	if calc != schema.AssigneesCalculation {
		return in, nil
	}
	if e.timelines == nil {
		return in, errors.New("assignees calculation requires a timeline reader")
	}
	segs, err := e.timelines.ReadFieldSegments(ctx, recordIDs(matched), OwnerField(spec.Kind))
	if err != nil {
		return in, err
	}
	in.ownerSegments = segs
	return in, nil
}

// ReclassifySprints recomputes and upserts the SprintMapping rows for one
// record against the given milestones. The pass is idempotent; an upsert
// conflict is retried once and then surfaced as a transient failure.
func (e *Engine) ReclassifySprints(ctx context.Context, recordID string, milestoneIDs []string, fields timeline.SprintFields, terminal map[string]struct{}) ([]schema.SprintMapping, error) {
	if e.timelines == nil || e.milestones == nil || e.sprints == nil {
		return nil, errors.New("sprint reclassification requires timeline, milestone and sprint mapping collaborators")
	}

	h := timeline.NewHistory()
	for _, field := range []string{fields.Sprint, fields.Status, fields.Points} {
		segs, err := e.timelines.ReadSegments(ctx, recordID, field)
		if err != nil {
			return nil, err
		}
		h.Load(segs)
	}

	rows := make([]schema.SprintMapping, 0, len(milestoneIDs))
	for _, msID := range milestoneIDs {
		ms, err := e.milestones.ReadMilestone(ctx, msID)
		if err != nil {
			return nil, err
		}
		row := timeline.Classify(h, recordID, ms, fields, terminal)
		if err := e.upsertWithRetry(ctx, row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (e *Engine) upsertWithRetry(ctx context.Context, row schema.SprintMapping) error {
	err := e.sprints.Upsert(ctx, row)
	if err == nil || !errors.Is(err, contract.ErrConflict) {
		return err
	}
	if err := e.sprints.Upsert(ctx, row); err != nil {
		return fmt.Errorf("sprint mapping upsert for (%s, %s) kept conflicting: %w", row.RecordID, row.MilestoneID, err)
	}
	return nil
}

// checkCacheHit attempts to retrieve and validate a cached result.
func (e *Engine) checkCacheHit(key string) (schema.AggregateResult, bool) {
	if e.cache == nil {
		return schema.AggregateResult{}, false
	}
	data, version, ts, err := e.cache.Get(key)
	if err != nil {
		return schema.AggregateResult{}, false // Cache miss
	}
	if version != currentCacheVersion || time.Since(time.Unix(ts, 0)) > cacheMaxAge {
		return schema.AggregateResult{}, false
	}
	var out schema.AggregateResult
	if err := json.Unmarshal(data, &out); err != nil {
		return schema.AggregateResult{}, false
	}
	return out, true
}

func (e *Engine) storeInCache(key string, out schema.AggregateResult) {
	if e.cache == nil {
		return
	}
	if data, err := json.Marshal(out); err == nil {
		_ = e.cache.Set(key, data, currentCacheVersion, time.Now().Unix())
	}
}

// OwnerField names the identity field the assignees calculation reads per kind.
func OwnerField(kind schema.RecordKind) string {
	switch kind {
	case schema.PullRequestKind, schema.CommitKind:
		return "author"
	case schema.BuildKind:
		return "triggered_by"
	default:
		return "assignee"
	}
}

func recordIDs(records []schema.Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

// paginate slices the advisory page out of the matched set. A pageSize <= 0
// returns everything.
func paginate(records []schema.Record, page, pageSize int) []schema.Record {
	if pageSize <= 0 {
		return records
	}
	if page < 0 {
		page = 0
	}
	start := page * pageSize
	if start >= len(records) {
		return nil
	}
	end := min(start+pageSize, len(records))
	return records[start:end]
}
