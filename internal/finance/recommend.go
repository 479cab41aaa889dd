package finance

import "sort"

// DefaultTopN is how many funds a recommendation shows.
const DefaultTopN = 5

// Rank keeps candidates within the tier's risk ceiling and orders them by 5-year
// return, best first. A missing horizon sorts after any present value.
func Rank(candidates []Candidate, tier RiskTier, limit int) []Candidate {
	if limit <= 0 {
		limit = DefaultTopN
	}
	ceiling := MaxRiskFor(tier)
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Returns.Risk <= ceiling {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Returns, out[j].Returns
		if c := compareOptional(a.FiveYear, b.FiveYear); c != 0 {
			return c > 0
		}
		if c := compareOptional(a.ThreeYear, b.ThreeYear); c != 0 {
			return c > 0
		}
		if c := compareOptional(a.OneYear, b.OneYear); c != 0 {
			return c > 0
		}
		return out[i].Code < out[j].Code
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// compareOptional returns >0 when a ranks ahead of b.
func compareOptional(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a > *b:
		return 1
	case *a < *b:
		return -1
	}
	return 0
}
