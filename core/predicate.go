package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/schema"
)

// CompilePredicate translates the constraint maps of a FilterSpec into a
// single conjunction over a record's attributes. Constraints on fields the
// kind does not register, or operators a field's type does not support, are
// contract violations and fail fast with schema.ErrInvalidFilter.
//
// Values of the form "team_id:<id>" on identity fields expand through the
// team resolver into the union of member identities before compilation. A
// team that resolves to no members contributes nothing to the union, so an
// equality constraint reduced to an empty set matches no records.
func CompilePredicate(ctx context.Context, spec schema.FilterSpec, caps schema.Capability, teams contract.TeamResolver) (contract.Predicate, error) {
	var preds []contract.Predicate

	for field, values := range spec.Equals {
		p, err := compileMembership(ctx, field, values, caps, teams, false)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	for field, values := range spec.Excludes {
		p, err := compileMembership(ctx, field, values, caps, teams, true)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	for field, rng := range spec.Ranges {
		p, err := compileRange(field, rng, caps)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	for field, match := range spec.Partial {
		p, err := compilePartial(field, match, caps)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}

	return func(r schema.Record) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}, nil
}

// compileMembership builds an equality (or exclusion) set-membership test.
// String fields compare case-insensitively; identifiers compare exactly.
func compileMembership(ctx context.Context, field string, values []string, caps schema.Capability, teams contract.TeamResolver, exclude bool) (contract.Predicate, error) {
	ft, ok := caps.Fields[field]
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", schema.ErrInvalidFilter, field)
	}

	folded := ft == schema.StringField || ft == schema.ArrayField
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if ft == schema.IdentityField && strings.HasPrefix(v, schema.TeamPrefix) {
			members, err := expandTeam(ctx, teams, strings.TrimPrefix(v, schema.TeamPrefix))
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				set[m] = struct{}{}
			}
			continue
		}
		if folded {
			v = strings.ToLower(v)
		}
		set[v] = struct{}{}
	}

	member := func(r schema.Record) bool {
		switch ft {
		case schema.ArrayField:
			for _, v := range r.Arrays[field] {
				if _, ok := set[strings.ToLower(v)]; ok {
					return true
				}
			}
			return false
		default:
			v := recordString(r, field)
			if v == "" {
				return false
			}
			if folded {
				v = strings.ToLower(v)
			}
			_, ok := set[v]
			return ok
		}
	}

	if exclude {
		return func(r schema.Record) bool { return !member(r) }, nil
	}
	return member, nil
}

func expandTeam(ctx context.Context, teams contract.TeamResolver, teamID string) ([]string, error) {
	if teams == nil {
		return nil, fmt.Errorf("%w: team expansion requested but no team resolver is configured", schema.ErrInvalidFilter)
	}
	return teams.ResolveTeam(ctx, teamID)
}

// compileRange builds numeric/time comparisons. Time fields compare by epoch
// seconds. A record missing the attribute never satisfies a range.
func compileRange(field string, rng schema.Range, caps schema.Capability) (contract.Predicate, error) {
	ft, ok := caps.Fields[field]
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", schema.ErrInvalidFilter, field)
	}
	if ft != schema.NumberField && ft != schema.TimeField {
		return nil, fmt.Errorf("%w: range operator unsupported for %s field %q", schema.ErrInvalidFilter, ft, field)
	}
	if rng.GT != nil && rng.GTE != nil {
		return nil, fmt.Errorf("%w: field %q sets both $gt and $gte", schema.ErrInvalidFilter, field)
	}
	if rng.LT != nil && rng.LTE != nil {
		return nil, fmt.Errorf("%w: field %q sets both $lt and $lte", schema.ErrInvalidFilter, field)
	}
	if rng.GT == nil && rng.GTE == nil && rng.LT == nil && rng.LTE == nil {
		return nil, fmt.Errorf("%w: field %q has an empty range", schema.ErrInvalidFilter, field)
	}

	return func(r schema.Record) bool {
		var v float64
		switch ft {
		case schema.NumberField:
			n, ok := r.NumberAt(field)
			if !ok {
				return false
			}
			v = n
		case schema.TimeField:
			t, ok := r.TimeAt(field)
			if !ok {
				return false
			}
			v = float64(t.Unix())
		}
		if rng.GT != nil && !(v > *rng.GT) {
			return false
		}
		if rng.GTE != nil && !(v >= *rng.GTE) {
			return false
		}
		if rng.LT != nil && !(v < *rng.LT) {
			return false
		}
		if rng.LTE != nil && !(v <= *rng.LTE) {
			return false
		}
		return true
	}, nil
}

// compilePartial builds a case-insensitive substring test anchored per the
// operator.
func compilePartial(field string, match schema.Match, caps schema.Capability) (contract.Predicate, error) {
	ft, ok := caps.Fields[field]
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", schema.ErrInvalidFilter, field)
	}
	if ft != schema.StringField && ft != schema.IdentityField {
		return nil, fmt.Errorf("%w: partial-match operator unsupported for %s field %q", schema.ErrInvalidFilter, ft, field)
	}
	if _, ok := schema.ValidMatchOps[match.Op]; !ok {
		return nil, fmt.Errorf("%w: unknown partial-match operator %q on field %q", schema.ErrInvalidFilter, match.Op, field)
	}

	needle := strings.ToLower(match.Value)
	return func(r schema.Record) bool {
		v := strings.ToLower(recordString(r, field))
		if v == "" {
			return false
		}
		switch match.Op {
		case schema.BeginsOp:
			return strings.HasPrefix(v, needle)
		case schema.EndsOp:
			return strings.HasSuffix(v, needle)
		default: // ContainsOp
			return strings.Contains(v, needle)
		}
	}, nil
}

// recordString resolves a string-valued attribute, treating "id" as the
// record's stable identifier.
func recordString(r schema.Record, field string) string {
	if field == "id" {
		return r.ID
	}
	return r.StringAt(field)
}
