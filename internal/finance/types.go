package finance

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficient means the series is too short to produce any trustworthy statistic.
	ErrInsufficient = errors.New("insufficient price history")
	// ErrInvalidInput means a contribution plan is out of range.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned by the data provider for unknown scheme codes.
	ErrNotFound = errors.New("scheme not found")
)

// NAVPoint is a single (date, price) observation.
type NAVPoint struct {
	Date  time.Time
	Price float64
}

// PriceSeries holds daily NAVs sorted ascending by date with no duplicate dates.
type PriceSeries struct {
	points []NAVPoint
}

// Len returns the number of observations.
func (s PriceSeries) Len() int { return len(s.points) }

// Points returns a copy of the observations.
func (s PriceSeries) Points() []NAVPoint {
	out := make([]NAVPoint, len(s.points))
	copy(out, s.points)
	return out
}

// Prices returns the price column.
func (s PriceSeries) Prices() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Price
	}
	return out
}

// ReturnsRecord is the calculator output. Horizon fields are nil when the series
// lacks history for them; they are never zero-filled.
type ReturnsRecord struct {
	Risk      float64  `json:"risk"`
	OneYear   *float64 `json:"oneYear,omitempty"`
	ThreeYear *float64 `json:"threeYear,omitempty"`
	FiveYear  *float64 `json:"fiveYear,omitempty"`
}

// ContributionPlan is a monthly SIP.
type ContributionPlan struct {
	MonthlyAmount     decimal.Decimal
	Years             int
	AnnualRatePercent decimal.Decimal
}

// Scheme identifies a mutual fund scheme.
type Scheme struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// Candidate is a scheme together with its computed statistics.
type Candidate struct {
	Scheme
	Returns    ReturnsRecord `json:"returns" yaml:"returns"`
	ExpensePct float64       `json:"expense_pct" yaml:"expense_pct"`
	AUMCr      float64       `json:"aum_cr" yaml:"aum_cr"`
}

// YearPoint is a single row of a projection schedule.
type YearPoint struct {
	Year     int
	Invested decimal.Decimal
	Value    decimal.Decimal
}
