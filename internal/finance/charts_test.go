package finance

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG")

func TestMakeProjectionChart(t *testing.T) {
	img, err := MakeProjectionChart(plan(10000, 10, "10.5"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	again, err := MakeProjectionChart(plan(10000, 10, "10.5"))
	require.NoError(t, err)
	assert.Equal(t, img, again)

	_, err = MakeProjectionChart(plan(10000, 0, "10.5"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMakeNAVChart(t *testing.T) {
	img, err := MakeNAVChart(Scheme{Code: "1", Name: "Test Fund"}, seriesFrom(ramp(1400)))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	_, err = MakeNAVChart(Scheme{Code: "1"}, seriesFrom([]float64{10}))
	assert.Error(t, err)
}

func TestChartCacheReturnsCopies(t *testing.T) {
	cacheSet("k", []byte{1, 2, 3})
	got, ok := cacheGet("k")
	require.True(t, ok)
	got[0] = 9
	again, _ := cacheGet("k")
	assert.Equal(t, []byte{1, 2, 3}, again)

	_, ok = cacheGet("missing")
	assert.False(t, ok)
}
