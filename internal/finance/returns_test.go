package finance

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2012, 1, 2, 0, 0, 0, 0, time.UTC)

func seriesFrom(prices []float64) PriceSeries {
	pts := make([]NAVPoint, len(prices))
	for i, p := range prices {
		pts[i] = NAVPoint{Date: day0.AddDate(0, 0, i), Price: p}
	}
	return NewPriceSeries(pts)
}

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 50 + float64(i)*0.01
	}
	return out
}

func TestComputeReturnsInsufficient(t *testing.T) {
	for _, n := range []int{0, 1, 500, 999} {
		rec, err := ComputeReturns(seriesFrom(ramp(n)))
		assert.ErrorIs(t, err, ErrInsufficient, "n=%d", n)
		assert.Equal(t, ReturnsRecord{}, rec)
	}
}

func TestComputeReturnsOmitsHorizonsWithoutHistory(t *testing.T) {
	rec, err := ComputeReturns(seriesFrom(ramp(1100)))
	require.NoError(t, err)
	assert.NotNil(t, rec.OneYear)
	assert.NotNil(t, rec.ThreeYear)
	assert.Nil(t, rec.FiveYear)
	assert.Greater(t, rec.Risk, 0.0)

	rec, err = ComputeReturns(seriesFrom(ramp(MinObservations)))
	require.NoError(t, err)
	assert.NotNil(t, rec.OneYear)
	assert.NotNil(t, rec.ThreeYear)
	assert.Nil(t, rec.FiveYear)
}

func TestComputeReturnsHorizonSlackBoundary(t *testing.T) {
	rec, err := ComputeReturns(seriesFrom(ramp(1260 + 19)))
	require.NoError(t, err)
	assert.Nil(t, rec.FiveYear)

	rec, err = ComputeReturns(seriesFrom(ramp(1260 + 20)))
	require.NoError(t, err)
	assert.NotNil(t, rec.FiveYear)
}

func TestComputeReturnsReferenceIndex(t *testing.T) {
	prices := ramp(1300)
	last := len(prices) - 1
	prices[last-1260] = 100
	prices[last-252] = 160
	prices[last] = 200

	rec, err := ComputeReturns(seriesFrom(prices))
	require.NoError(t, err)
	require.NotNil(t, rec.FiveYear)
	require.NotNil(t, rec.OneYear)
	assert.Equal(t, 14.87, *rec.FiveYear)
	assert.Equal(t, 25.0, *rec.OneYear)
}

func TestComputeReturnsThreeYearAnnualized(t *testing.T) {
	prices := ramp(1000)
	last := len(prices) - 1
	prices[last-756] = 100
	prices[last] = 133.1

	rec, err := ComputeReturns(seriesFrom(prices))
	require.NoError(t, err)
	require.NotNil(t, rec.ThreeYear)
	assert.Equal(t, 10.0, *rec.ThreeYear)
}

func TestComputeReturnsRisk(t *testing.T) {
	flat := make([]float64, 1200)
	for i := range flat {
		flat[i] = 42
	}
	rec, err := ComputeReturns(seriesFrom(flat))
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.Risk)
	assert.Equal(t, 0.0, *rec.FiveYear)

	zigzag := make([]float64, 1200)
	for i := range zigzag {
		zigzag[i] = 100
		if i%2 == 1 {
			zigzag[i] = 101
		}
	}
	rec, err = ComputeReturns(seriesFrom(zigzag))
	require.NoError(t, err)
	assert.Greater(t, rec.Risk, 0.0)

	r := dailyReturns(zigzag)
	want := math.Round(stdev(r)*math.Sqrt(252)*100*10) / 10
	assert.InDelta(t, want, rec.Risk, 1e-9)
}

func TestComputeReturnsSortsInput(t *testing.T) {
	prices := ramp(1300)
	pts := make([]NAVPoint, len(prices))
	for i, p := range prices {
		pts[len(prices)-1-i] = NAVPoint{Date: day0.AddDate(0, 0, i), Price: p}
	}
	reversed, err := ComputeReturns(NewPriceSeries(pts))
	require.NoError(t, err)
	ordered, err := ComputeReturns(seriesFrom(prices))
	require.NoError(t, err)
	assert.Equal(t, ordered, reversed)
}

func TestStdevSample(t *testing.T) {
	assert.Equal(t, 0.0, stdev(nil))
	assert.Equal(t, 0.0, stdev([]float64{3}))
	assert.InDelta(t, math.Sqrt(2.5), stdev([]float64{1, 2, 3, 4, 5}), 1e-12)
}
