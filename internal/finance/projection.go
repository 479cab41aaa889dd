package finance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// ProjectFutureValue returns the terminal value of an annuity-due with monthly
// compounding, rounded to a whole currency unit.
func ProjectFutureValue(plan ContributionPlan) (decimal.Decimal, error) {
	if err := plan.Validate(); err != nil {
		return decimal.Zero, err
	}
	return futureValue(plan.MonthlyAmount, plan.Years*12, plan.AnnualRatePercent).Round(0), nil
}

// Validate rejects non-positive amounts or years and negative rates.
func (p ContributionPlan) Validate() error {
	if !p.MonthlyAmount.IsPositive() {
		return fmt.Errorf("%w: monthly amount must be positive, got %s", ErrInvalidInput, p.MonthlyAmount)
	}
	if p.Years <= 0 {
		return fmt.Errorf("%w: years must be positive, got %d", ErrInvalidInput, p.Years)
	}
	if p.AnnualRatePercent.IsNegative() {
		return fmt.Errorf("%w: annual rate must not be negative, got %s", ErrInvalidInput, p.AnnualRatePercent)
	}
	return nil
}

// ProjectSchedule returns the year-end value and the cumulative invested amount for
// each year of the plan. The compounding factor is carried forward one year at a
// time, so the last row equals ProjectFutureValue exactly.
func ProjectSchedule(plan ContributionPlan) ([]YearPoint, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	monthlyRate := monthlyRateOf(plan.AnnualRatePercent)
	growth := one.Add(monthlyRate)
	yearGrowth := growth.Pow(twelve)
	compounded := one

	out := make([]YearPoint, 0, plan.Years)
	for y := 1; y <= plan.Years; y++ {
		months := decimal.NewFromInt(int64(y * 12))
		compounded = compounded.Mul(yearGrowth)
		out = append(out, YearPoint{
			Year:     y,
			Invested: plan.MonthlyAmount.Mul(months),
			Value:    annuityDue(plan.MonthlyAmount, months, monthlyRate, compounded).Round(0),
		})
	}
	return out, nil
}

func futureValue(amount decimal.Decimal, months int, annualRatePercent decimal.Decimal) decimal.Decimal {
	n := decimal.NewFromInt(int64(months))
	monthlyRate := monthlyRateOf(annualRatePercent)
	return annuityDue(amount, n, monthlyRate, one.Add(monthlyRate).Pow(n))
}

func monthlyRateOf(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.Div(twelve).Div(hundred)
}

// annuityDue takes compounded = (1+monthlyRate)^months precomputed.
func annuityDue(amount, months, monthlyRate, compounded decimal.Decimal) decimal.Decimal {
	if monthlyRate.IsZero() {
		return amount.Mul(months)
	}
	growth := one.Add(monthlyRate)
	return amount.Mul(compounded.Sub(one)).Div(monthlyRate).Mul(growth)
}
