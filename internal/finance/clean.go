package finance

import (
	"math"
	"sort"
)

// NewPriceSeries builds a PriceSeries from raw provider points. Non-positive and
// non-finite prices are dropped, points are sorted ascending by date and duplicate
// dates collapse to the last value seen in input order.
func NewPriceSeries(raw []NAVPoint) PriceSeries {
	pts := filterPositive(raw)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
	return PriceSeries{points: dedupeDates(pts)}
}

// filterPositive removes points whose price is <= 0, NaN or Inf.
func filterPositive(raw []NAVPoint) []NAVPoint {
	out := make([]NAVPoint, 0, len(raw))
	for _, p := range raw {
		if p.Price <= 0 || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
			continue
		}
		if p.Date.IsZero() {
			continue
		}
		out = append(out, p)
	}
	return out
}

// dedupeDates expects pts sorted (stable) by date and keeps the last point per day.
func dedupeDates(pts []NAVPoint) []NAVPoint {
	if len(pts) < 2 {
		return pts
	}
	out := make([]NAVPoint, 0, len(pts))
	for _, p := range pts {
		if n := len(out); n > 0 && sameDay(out[n-1], p) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

func sameDay(a, b NAVPoint) bool {
	ay, am, ad := a.Date.Date()
	by, bm, bd := b.Date.Date()
	return ay == by && am == bm && ad == bd
}
