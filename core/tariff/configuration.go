package tariff

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"

	"import-cost/core/rangetable"
	apperrors "import-cost/internal/errors"
)

// DefaultRoundingStep is the step totals are ceiling-rounded to
var DefaultRoundingStep = decimal.NewFromInt(10000)

// FeeTableSet maps fee table names to tables
type FeeTableSet map[string]rangetable.FeeTable

// Clone returns a deep copy of the set; nil stays nil
func (s FeeTableSet) Clone() FeeTableSet {
	if s == nil {
		return nil
	}
	out := make(FeeTableSet, len(s))
	for name, table := range s {
		out[name] = table.Clone()
	}
	return out
}

// Names returns the table names in sorted order
func (s FeeTableSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rules are the scenario-independent knobs of the calculation
type Rules struct {
	// FoldOver5Into3to5 classifies vehicles older than 60 months as age_3_5
	FoldOver5Into3to5 bool

	// RoundingStep is the multiple the total is rounded up to
	RoundingStep decimal.Decimal

	// DefaultExchangeRate is used when a request carries no rate. Zero means unset.
	DefaultExchangeRate decimal.Decimal

	// LocalCurrency tags every converted line
	LocalCurrency Currency
}

// DefaultRules returns the rules applied when a document omits them
func DefaultRules() Rules {
	return Rules{
		FoldOver5Into3to5: true,
		RoundingStep:      DefaultRoundingStep,
		LocalCurrency:     CurrencyRUB,
	}
}

// Configuration is one immutable tariff snapshot. Treat values reachable from a
// *Configuration obtained from a Store as read-only; use Clone before editing.
type Configuration struct {
	Version string

	DutyRanges          rangetable.DutyRanges
	DisplacementBuckets rangetable.DisplacementBuckets

	// FeeTables is the default set; the age-bucket sets override it per table name
	FeeTables         FeeTableSet
	FeeTablesUnder3   FeeTableSet
	FeeTables3to5     FeeTableSet
	FeeTablesElectric FeeTableSet

	Scenarios Scenarios
	Rules     Rules
}

// FeeTablesFor returns the age-bucket override set of a scenario, or nil
func (c *Configuration) FeeTablesFor(s Scenario) FeeTableSet {
	switch s {
	case ScenarioUnder3:
		return c.FeeTablesUnder3
	case ScenarioAge3to5:
		return c.FeeTables3to5
	case ScenarioElectric:
		return c.FeeTablesElectric
	default:
		return nil
	}
}

// FeeTable resolves a table by name for a scenario, preferring the scenario's
// override set. The returned origin is the scenario key or "default".
func (c *Configuration) FeeTable(s Scenario, name string) (table rangetable.FeeTable, origin string, ok bool) {
	if set := c.FeeTablesFor(s); set != nil {
		if t, found := set[name]; found {
			return t, string(s), true
		}
	}
	t, found := c.FeeTables[name]
	return t, "default", found
}

// Validate re-checks every invariant of the snapshot
func (c *Configuration) Validate() error {
	if c.Version == "" {
		return apperrors.ConfigInvalid("version is empty")
	}
	if err := c.DutyRanges.Validate(); err != nil {
		return apperrors.Wrap(apperrors.TypeConfigInvalid, "invalid duty ranges", err)
	}
	if err := c.DisplacementBuckets.Validate(); err != nil {
		return apperrors.Wrap(apperrors.TypeConfigInvalid, "invalid displacement buckets", err)
	}
	if len(c.FeeTables) == 0 {
		return apperrors.ConfigInvalid("fee_tables is empty")
	}

	sets := []struct {
		name string
		set  FeeTableSet
	}{
		{"fee_tables", c.FeeTables},
		{"fee_tables_under_3", c.FeeTablesUnder3},
		{"fee_tables_3_5", c.FeeTables3to5},
		{"fee_tables_electric", c.FeeTablesElectric},
	}
	for _, s := range sets {
		for _, name := range s.set.Names() {
			if err := s.set[name].Validate(s.name + "." + name); err != nil {
				return apperrors.Wrap(apperrors.TypeConfigInvalid, "invalid fee table", err).
					WithContext("table", s.name+"."+name)
			}
		}
	}

	for _, name := range c.DisplacementBuckets.Tables() {
		if _, ok := c.FeeTables[name]; !ok {
			return apperrors.ConfigInvalid("displacement bucket references unknown fee table %q", name).
				WithContext("table", name)
		}
	}

	if err := c.Scenarios.validate(c); err != nil {
		return err
	}
	return c.Rules.validate()
}

func (r Rules) validate() error {
	if !r.RoundingStep.IsPositive() {
		return apperrors.ConfigInvalid("rounding step must be positive, got %s", r.RoundingStep)
	}
	if r.DefaultExchangeRate.IsNegative() {
		return apperrors.ConfigInvalid("default exchange rate must not be negative, got %s", r.DefaultExchangeRate)
	}
	if r.LocalCurrency == "" {
		return apperrors.ConfigInvalid("local currency is empty")
	}
	return nil
}

func (s *Scenarios) validate(c *Configuration) error {
	groups := []struct {
		scenario Scenario
		fields   []expenseField
	}{
		{ScenarioUnder3, s.Under3.fields()},
		{ScenarioAge3to5, s.Age3to5.fields()},
		{ScenarioElectric, s.Electric.fields()},
	}
	for _, g := range groups {
		for _, f := range g.fields {
			if f.formula.Percent.IsNegative() || f.formula.Fixed.IsNegative() {
				return apperrors.ConfigInvalid("scenario %s: expense %s must not be negative", g.scenario, f.key).
					WithContext("scenario", string(g.scenario))
			}
		}
	}

	flat := map[string]decimal.Decimal{
		"age_3_5.customs_clearance_fee":  s.Age3to5.CustomsClearanceFee,
		"age_3_5.brokerage":              s.Age3to5.Brokerage,
		"electric.customs_clearance_fee": s.Electric.CustomsClearanceFee,
		"electric.brokerage":             s.Electric.Brokerage,
		"electric.duty_percent":          s.Electric.DutyPercent,
		"electric.vat_percent":           s.Electric.VATPercent,
	}
	for name, v := range flat {
		if v.IsNegative() {
			return apperrors.ConfigInvalid("%s must not be negative, got %s", name, v)
		}
	}

	if err := s.Electric.ExciseByKilowatt.Validate("electric.excise_by_kilowatt"); err != nil {
		return apperrors.Wrap(apperrors.TypeConfigInvalid, "invalid excise table", err)
	}
	if err := s.Electric.ExciseByHorsepower.Validate("electric.excise_by_horsepower"); err != nil {
		return apperrors.Wrap(apperrors.TypeConfigInvalid, "invalid excise table", err)
	}
	for _, b := range s.Electric.PowerFee.Buckets() {
		if !validPowerFeeBucket(b) {
			return apperrors.ConfigInvalid("electric.power_fee: unknown age bucket %q", b).
				WithContext("bucket", string(b))
		}
		if err := s.Electric.PowerFee[b].Validate("electric.power_fee." + string(b)); err != nil {
			return apperrors.Wrap(apperrors.TypeConfigInvalid, "invalid power fee table", err).
				WithContext("bucket", string(b))
		}
	}
	if name := s.Electric.FeeTable; name != "" {
		if _, _, ok := c.FeeTable(ScenarioElectric, name); !ok {
			return apperrors.ConfigInvalid("electric fee table %q does not exist", name).
				WithContext("table", name)
		}
	}
	return nil
}

// Clone returns a deep copy that can be edited without affecting c
func (c *Configuration) Clone() *Configuration {
	out := *c
	out.DutyRanges = append(rangetable.DutyRanges(nil), c.DutyRanges...)
	out.DisplacementBuckets = append(rangetable.DisplacementBuckets(nil), c.DisplacementBuckets...)
	out.FeeTables = c.FeeTables.Clone()
	out.FeeTablesUnder3 = c.FeeTablesUnder3.Clone()
	out.FeeTables3to5 = c.FeeTables3to5.Clone()
	out.FeeTablesElectric = c.FeeTablesElectric.Clone()
	out.Scenarios.Electric.ExciseByKilowatt = append(rangetable.ExciseTable(nil), c.Scenarios.Electric.ExciseByKilowatt...)
	out.Scenarios.Electric.ExciseByHorsepower = append(rangetable.ExciseTable(nil), c.Scenarios.Electric.ExciseByHorsepower...)
	out.Scenarios.Electric.PowerFee = c.Scenarios.Electric.PowerFee.Clone()
	return &out
}

// Fingerprint is the SHA-256 of the canonical JSON document of the snapshot
func (c *Configuration) Fingerprint() string {
	data, err := json.Marshal(DocumentFrom(c))
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
