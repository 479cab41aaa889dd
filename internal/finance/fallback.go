package finance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fallbackEntry is one row of the pre-vetted fallback catalogue file.
type fallbackEntry struct {
	Code       string   `yaml:"code"`
	Name       string   `yaml:"name"`
	OneYear    *float64 `yaml:"one_year"`
	ThreeYear  *float64 `yaml:"three_year"`
	FiveYear   *float64 `yaml:"five_year"`
	Risk       float64  `yaml:"risk"`
	ExpensePct float64  `yaml:"expense_pct"`
	AUMCr      float64  `yaml:"aum_cr"`
}

type fallbackFile struct {
	Funds []fallbackEntry `yaml:"funds"`
}

// LoadFallbackCatalogue reads static candidate statistics used when live data is unavailable.
func LoadFallbackCatalogue(path string) ([]Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fallback catalogue: %w", err)
	}
	return ParseFallbackCatalogue(data)
}

// ParseFallbackCatalogue decodes a YAML fallback catalogue.
func ParseFallbackCatalogue(data []byte) ([]Candidate, error) {
	var f fallbackFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fallback catalogue: %w", err)
	}
	out := make([]Candidate, 0, len(f.Funds))
	for i, e := range f.Funds {
		if e.Code == "" || e.Name == "" {
			return nil, fmt.Errorf("fallback fund #%d: code and name are required", i+1)
		}
		if e.Risk < 0 {
			return nil, fmt.Errorf("fallback fund %s: risk must not be negative", e.Code)
		}
		out = append(out, Candidate{
			Scheme: Scheme{Code: e.Code, Name: e.Name},
			Returns: ReturnsRecord{
				Risk:      e.Risk,
				OneYear:   e.OneYear,
				ThreeYear: e.ThreeYear,
				FiveYear:  e.FiveYear,
			},
			ExpensePct: e.ExpensePct,
			AUMCr:      e.AUMCr,
		})
	}
	return out, nil
}
