// Package tariff holds the versioned configuration snapshot the estimator runs
// against: range tables, per-scenario expense formulas and rules, the
// declarative document they are loaded from, the atomically swapped store and
// the patch-template operations that rewrite fee rows.
package tariff

import "strings"

// Scenario identifies one cost-calculation rule set
type Scenario string

const (
	// ScenarioUnder3 is a combustion vehicle younger than 36 months
	ScenarioUnder3 Scenario = "under_3"

	// ScenarioAge3to5 is a combustion vehicle aged 36 to 60 months
	ScenarioAge3to5 Scenario = "age_3_5"

	// ScenarioElectric is a battery electric vehicle
	ScenarioElectric Scenario = "electric"

	// ScenarioOver5 is a combustion vehicle older than 60 months when folding is disabled.
	// No configuration section exists for it.
	ScenarioOver5 Scenario = "over_5"
)

// String returns the scenario key
func (s Scenario) String() string {
	return string(s)
}

// Configured reports whether the scenario has a configuration section
func (s Scenario) Configured() bool {
	switch s {
	case ScenarioUnder3, ScenarioAge3to5, ScenarioElectric:
		return true
	default:
		return false
	}
}

// ParseScenario normalizes a scenario key. The legacy key "3_5" maps to age_3_5.
// Unknown keys are returned as-is so the caller decides how to fail.
func ParseScenario(s string) Scenario {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "3_5" {
		return ScenarioAge3to5
	}
	return Scenario(key)
}

// Currency represents a currency code
type Currency string

const (
	// CurrencyEUR is the source currency of prices and EUR expense lines
	CurrencyEUR Currency = "EUR"

	// CurrencyRUB is the default local currency
	CurrencyRUB Currency = "RUB"
)

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}
