package finance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFallbackCatalogue(t *testing.T) {
	cands, err := ParseFallbackCatalogue([]byte(`
funds:
  - code: "1"
    name: Steady
    one_year: 9.5
    five_year: 11
    risk: 8.2
    expense_pct: 0.4
  - code: "2"
    name: Young
    risk: 18
`))
	require.NoError(t, err)
	require.Len(t, cands, 2)

	assert.Equal(t, Scheme{Code: "1", Name: "Steady"}, cands[0].Scheme)
	require.NotNil(t, cands[0].Returns.FiveYear)
	assert.Equal(t, 11.0, *cands[0].Returns.FiveYear)
	assert.Nil(t, cands[0].Returns.ThreeYear)
	assert.Equal(t, 0.4, cands[0].ExpensePct)
	assert.Nil(t, cands[1].Returns.OneYear)
	assert.Equal(t, 18.0, cands[1].Returns.Risk)
}

func TestParseFallbackCatalogueRejectsBadRows(t *testing.T) {
	for name, body := range map[string]string{
		"missing name":  "funds:\n  - code: \"1\"\n    risk: 3\n",
		"negative risk": "funds:\n  - code: \"1\"\n    name: X\n    risk: -3\n",
		"not yaml":      "funds: [",
	} {
		_, err := ParseFallbackCatalogue([]byte(body))
		assert.Error(t, err, name)
	}
}

func TestLoadShippedFallbackCatalogue(t *testing.T) {
	cands, err := LoadFallbackCatalogue("../../configs/fallback_funds.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, cands)
	assert.NotEmpty(t, Rank(cands, RiskLow, DefaultTopN))

	_, err = LoadFallbackCatalogue("does/not/exist.yaml")
	assert.Error(t, err)
}
