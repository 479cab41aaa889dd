package finance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vicanso/go-charts/v2"
)

// navChartDays is how much history the NAV chart shows (~5 trading years).
const navChartDays = 1260

// MakeNAVChart renders the recent NAV history of a scheme, downsampled to weekly points.
func MakeNAVChart(scheme Scheme, series PriceSeries) ([]byte, error) {
	pts := series.Points()
	if len(pts) < 2 {
		return nil, errors.New("not enough data points")
	}
	cacheKey := fmt.Sprintf("nav|%s|%d|%s", scheme.Code, len(pts), pts[len(pts)-1].Date.Format("20060102"))
	if img, ok := cacheGet(cacheKey); ok {
		return img, nil
	}

	if len(pts) > navChartDays {
		pts = pts[len(pts)-navChartDays:]
	}
	const step = 5
	loc := istLocation()
	xLabels := make([]string, 0, len(pts)/step+1)
	values := make([]float64, 0, len(pts)/step+1)
	yMin, yMax := pts[0].Price, pts[0].Price
	for i := 0; i < len(pts); i += step {
		// always include the latest point
		if i+step >= len(pts) {
			i = len(pts) - 1
		}
		p := pts[i]
		xLabels = append(xLabels, p.Date.In(loc).Format("Jan 06"))
		values = append(values, p.Price)
		if p.Price < yMin {
			yMin = p.Price
		}
		if p.Price > yMax {
			yMax = p.Price
		}
	}
	pad := (yMax - yMin) * 0.05
	yMin -= pad
	if yMin < 0 {
		yMin = 0
	}
	yMax += pad

	title := scheme.Name
	if title == "" {
		title = scheme.Code
	}
	painter, err := charts.LineRender([][]float64{values},
		charts.TitleTextOptionFunc(title, "NAV • "+scheme.Code),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: xLabels, BoundaryGap: charts.FalseFlag(), SplitNumber: 10}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, err
	}
	img, err := painter.Bytes()
	if err != nil {
		return nil, err
	}
	cacheSet(cacheKey, img)
	return img, nil
}

// MakeProjectionChart renders projected value against cumulative investment per year.
func MakeProjectionChart(plan ContributionPlan) ([]byte, error) {
	schedule, err := ProjectSchedule(plan)
	if err != nil {
		return nil, err
	}
	cacheKey := fmt.Sprintf("sip|%s|%d|%s", plan.MonthlyAmount, plan.Years, plan.AnnualRatePercent)
	if img, ok := cacheGet(cacheKey); ok {
		return img, nil
	}

	xLabels := make([]string, len(schedule))
	value := make([]float64, len(schedule))
	invested := make([]float64, len(schedule))
	for i, row := range schedule {
		xLabels[i] = fmt.Sprintf("Y%d", row.Year)
		value[i] = row.Value.InexactFloat64()
		invested[i] = row.Invested.InexactFloat64()
	}
	yMin := 0.0
	names := []string{"Projected value", "Invested"}
	painter, err := charts.LineRender([][]float64{value, invested},
		charts.TitleTextOptionFunc(
			fmt.Sprintf("Rs %s/month • %d years", plan.MonthlyAmount.StringFixed(0), plan.Years),
			"assumed "+strings.TrimSuffix(plan.AnnualRatePercent.String(), ".0")+"% p.a.",
		),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: xLabels, BoundaryGap: charts.FalseFlag()}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names, Left: charts.PositionRight}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, err
	}
	img, err := painter.Bytes()
	if err != nil {
		return nil, err
	}
	cacheSet(cacheKey, img)
	return img, nil
}
