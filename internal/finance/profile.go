package finance

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RiskTier is the user's declared risk appetite.
type RiskTier string

const (
	RiskLow      RiskTier = "Low"
	RiskModerate RiskTier = "Moderate"
	RiskHigh     RiskTier = "High"
)

const (
	DefaultHorizonYears = 10
	DefaultMonthlySIP   = 10000
	// MaxHorizonYears is the longest horizon a user may enter.
	MaxHorizonYears = 60
)

// Profile is the immutable set of answers a recommendation is computed for.
type Profile struct {
	Age        string   `json:"age"`
	Horizon    int      `json:"horizon"`
	MonthlySIP int64    `json:"sip"`
	Risk       RiskTier `json:"risk"`
	Preference string   `json:"preference"`
}

// Plan turns the profile into a contribution plan at the tier's assumed rate.
func (p Profile) Plan() ContributionPlan {
	return ContributionPlan{
		MonthlyAmount:     decimal.NewFromInt(p.MonthlySIP),
		Years:             p.Horizon,
		AnnualRatePercent: RateFor(p.Risk),
	}
}

// ParseRiskTier matches free text case-insensitively by prefix. Unrecognized or
// empty input maps to Moderate.
func ParseRiskTier(text string) RiskTier {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return RiskModerate
	}
	for _, tier := range []RiskTier{RiskLow, RiskModerate, RiskHigh} {
		if strings.HasPrefix(strings.ToLower(string(tier)), t) || strings.HasPrefix(t, strings.ToLower(string(tier))) {
			return tier
		}
	}
	return RiskModerate
}

// RateFor returns the nominal annual rate assumed for a tier.
func RateFor(tier RiskTier) decimal.Decimal {
	switch tier {
	case RiskLow:
		return decimal.NewFromInt(8)
	case RiskHigh:
		return decimal.NewFromInt(12)
	default:
		return decimal.RequireFromString("10.5")
	}
}

// MaxRiskFor returns the volatility ceiling (percent) for a tier.
func MaxRiskFor(tier RiskTier) float64 {
	switch tier {
	case RiskLow:
		return 14
	case RiskHigh:
		return 100
	default:
		return 20
	}
}

// ParseHorizon parses an integer number of years. Empty input yields the default.
func ParseHorizon(text string) (int, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return DefaultHorizonYears, nil
	}
	t = strings.ToLower(t)
	for _, suffix := range []string{"years", "year", "yrs", "yr", "saal", "y"} {
		if strings.HasSuffix(t, suffix) {
			t = strings.TrimSpace(strings.TrimSuffix(t, suffix))
			break
		}
	}
	y, err := strconv.Atoi(t)
	if err != nil {
		return 0, fmt.Errorf("%w: horizon %q is not a whole number of years", ErrInvalidInput, text)
	}
	if y <= 0 || y > MaxHorizonYears {
		return 0, fmt.Errorf("%w: horizon must be 1..%d years, got %d", ErrInvalidInput, MaxHorizonYears, y)
	}
	return y, nil
}

// ParseContribution parses a monthly amount such as "10,000", "₹ 5000" or "rs 2500".
// Empty input yields the default.
func ParseContribution(text string) (int64, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimPrefix(t, "₹")
	t = strings.TrimPrefix(t, "rs.")
	t = strings.TrimPrefix(t, "rs")
	t = strings.NewReplacer(",", "", " ", "", "_", "").Replace(t)
	if t == "" {
		return DefaultMonthlySIP, nil
	}
	v, err := strconv.ParseInt(t, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not a whole number", ErrInvalidInput, text)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidInput, v)
	}
	return v, nil
}
