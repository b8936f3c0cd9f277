// Package scenario maps a vehicle to the tariff scenario it is costed under.
package scenario

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"import-cost/core/tariff"
	apperrors "import-cost/internal/errors"
	"import-cost/internal/logging"
)

// Age thresholds in whole months
const (
	Under3Months = 36
	Over5Months  = 60
)

var electricMarkers = []string{"electric", "elektro", "электр"}

var electricTokens = map[string]bool{"ev": true, "bev": true}

// Input holds the request attributes classification depends on
type Input struct {
	Override          string
	DisplacementCC    *int
	PowerKW           *decimal.Decimal
	PowerHP           *decimal.Decimal
	IsElectric        bool
	FuelType          string
	RegistrationYear  *int
	RegistrationMonth *int
}

// Classifier picks the scenario for a request
type Classifier struct {
	// Now is the clock used for age computation; defaults to time.Now
	Now func() time.Time
	Log *zap.Logger
}

// NewClassifier creates a classifier on the wall clock
func NewClassifier(log *zap.Logger) *Classifier {
	return &Classifier{Now: time.Now, Log: logging.OrDefault(log, "scenario")}
}

// Classify returns the scenario for in. Electric detection wins over an
// explicit override; otherwise a non-empty override, normalized by
// tariff.ParseScenario, is returned and the age decides only without one.
func (c *Classifier) Classify(in Input, rules tariff.Rules) (tariff.Scenario, error) {
	log := logging.OrDefault(c.Log, "scenario")
	override := strings.TrimSpace(in.Override)

	if IsElectric(in) {
		if override != "" && tariff.ParseScenario(override) != tariff.ScenarioElectric {
			log.Warn("electric vehicle overrides requested scenario",
				zap.String("requested", override),
				zap.String("fuel_type", in.FuelType),
			)
		}
		return tariff.ScenarioElectric, nil
	}

	if override != "" {
		return tariff.ParseScenario(override), nil
	}

	if in.RegistrationYear == nil || in.RegistrationMonth == nil {
		return "", apperrors.MissingInput("registration_date", "cannot determine scenario: no registration date")
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	age := AgeMonths(now(), *in.RegistrationYear, *in.RegistrationMonth)

	switch {
	case age < Under3Months:
		return tariff.ScenarioUnder3, nil
	case age <= Over5Months:
		return tariff.ScenarioAge3to5, nil
	case rules.FoldOver5Into3to5:
		return tariff.ScenarioAge3to5, nil
	default:
		return tariff.ScenarioOver5, nil
	}
}

// AgeMonths returns the whole months between a registration month and now, never negative
func AgeMonths(now time.Time, year, month int) int {
	age := (now.Year()-year)*12 + (int(now.Month()) - month)
	if age < 0 {
		return 0
	}
	return age
}

// IsElectric reports whether the vehicle is a battery electric one: no
// displacement, some power, and an electric marker on the request.
func IsElectric(in Input) bool {
	if in.DisplacementCC != nil && *in.DisplacementCC > 0 {
		return false
	}
	if !positive(in.PowerKW) && !positive(in.PowerHP) {
		return false
	}
	return in.IsElectric || HasElectricMarker(in.FuelType)
}

// HasElectricMarker reports whether a free-text fuel type names an electric drive
func HasElectricMarker(fuel string) bool {
	text := strings.ToLower(fuel)
	for _, m := range electricMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if electricTokens[tok] {
			return true
		}
	}
	return false
}

func positive(v *decimal.Decimal) bool {
	return v != nil && v.IsPositive()
}
