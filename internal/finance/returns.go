package finance

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	// MinObservations is the qualification gate (~4 trading years).
	MinObservations = 1000
	// TradingDaysPerYear annualizes daily volatility.
	TradingDaysPerYear = 252
	// horizonSlack is the extra history a horizon needs beyond its offset.
	horizonSlack = 20
)

type horizon struct {
	years int
	days  int
}

// Trailing windows are trading-day offsets; the exponent uses the nominal years.
var horizons = []horizon{
	{years: 1, days: 252},
	{years: 3, days: 756},
	{years: 5, days: 1260},
}

// ComputeReturns calculates trailing annualized returns and annualized volatility.
// Series shorter than MinObservations fail with ErrInsufficient.
func ComputeReturns(series PriceSeries) (ReturnsRecord, error) {
	n := series.Len()
	if n < MinObservations {
		return ReturnsRecord{}, fmt.Errorf("%w: %d observations, need %d", ErrInsufficient, n, MinObservations)
	}
	// PriceSeries is sorted at construction.
	prices := series.Prices()
	last := n - 1
	latest := prices[last]

	var rec ReturnsRecord
	for _, h := range horizons {
		if n < h.days+horizonSlack {
			continue
		}
		ref := prices[last-h.days]
		cagr := math.Pow(latest/ref, 1/float64(h.years)) - 1
		v := round(cagr*100, 2)
		switch h.years {
		case 1:
			rec.OneYear = &v
		case 3:
			rec.ThreeYear = &v
		case 5:
			rec.FiveYear = &v
		}
	}

	rec.Risk = round(stdev(dailyReturns(prices))*math.Sqrt(TradingDaysPerYear)*100, 1)
	return rec, nil
}

func dailyReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		out[i-1] = prices[i]/prices[i-1] - 1
	}
	return out
}

// stdev is the sample standard deviation (n-1 degrees of freedom).
func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs) - 1)
	return math.Sqrt(variance)
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
