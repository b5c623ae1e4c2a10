package core

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shipmetrics/prism/schema"
)

// CacheKey derives a stable hash of a FilterSpec, used to key cached
// aggregation results. Two specs with identical semantic content hash
// identically regardless of field-population or map-iteration order; any
// semantic difference changes the hash with overwhelming probability.
func CacheKey(spec schema.FilterSpec) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(canonicalSpec(spec))))
}

// canonicalSpec flattens the spec into sorted (field, sortedValues) parts
// joined with fixed delimiters. Unit separator characters keep field names
// and values from colliding across part boundaries.
func canonicalSpec(spec schema.FilterSpec) string {
	var parts []string

	parts = append(parts,
		"kind="+string(spec.Kind),
		"across="+string(spec.Across),
		"calculation="+string(spec.Calculation),
		"stack="+string(spec.StackAcross),
		"interval="+string(spec.AggInterval),
		"label="+spec.GroupLabel,
		"page="+strconv.Itoa(spec.Page),
		"pageSize="+strconv.Itoa(spec.PageSize),
		"ingestedAt="+strconv.FormatInt(spec.IngestedAt.Unix(), 10),
		"from="+strconv.FormatInt(spec.From.Unix(), 10),
		"to="+strconv.FormatInt(spec.To.Unix(), 10),
	)
	if spec.Sort != nil {
		parts = append(parts, "sort="+spec.Sort.Field+"\x1f"+strconv.FormatBool(spec.Sort.Desc))
	}

	parts = append(parts, canonicalValues("eq", spec.Equals)...)
	parts = append(parts, canonicalValues("ex", spec.Excludes)...)

	for field, rng := range spec.Ranges {
		parts = append(parts, "rg:"+field+"="+canonicalRange(rng))
	}
	for field, m := range spec.Partial {
		parts = append(parts, "pm:"+field+"="+string(m.Op)+"\x1f"+m.Value)
	}

	sort.Strings(parts)
	return strings.Join(parts, "\x1e")
}

func canonicalValues(prefix string, constraints map[string][]string) []string {
	parts := make([]string, 0, len(constraints))
	for field, values := range constraints {
		sorted := append([]string(nil), values...)
		sort.Strings(sorted)
		parts = append(parts, prefix+":"+field+"="+strings.Join(sorted, "\x1f"))
	}
	return parts
}

func canonicalRange(rng schema.Range) string {
	bound := func(v *float64) string {
		if v == nil {
			return "-"
		}
		return strconv.FormatFloat(*v, 'g', -1, 64)
	}
	return strings.Join([]string{bound(rng.GT), bound(rng.GTE), bound(rng.LT), bound(rng.LTE)}, "\x1f")
}
