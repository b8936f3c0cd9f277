package tariff

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"import-cost/core/rangetable"
	apperrors "import-cost/internal/errors"
)

var (
	defaultElectricDutyPercent = decimal.RequireFromString("0.15")
	defaultElectricVATPercent  = decimal.RequireFromString("0.20")
)

// Document is the declarative shape of a tariff file. Every serialization
// format decodes into it before Build validates it into a Configuration.
type Document struct {
	Version string         `json:"version" yaml:"version"`
	Rules   *RulesDocument `json:"rules,omitempty" yaml:"rules,omitempty"`

	DutyRanges          []rangetable.DutyRange          `json:"duty_ranges" yaml:"duty_ranges"`
	DisplacementBuckets []rangetable.DisplacementBucket `json:"displacement_buckets" yaml:"displacement_buckets"`

	FeeTables         map[string]rangetable.FeeTable `json:"fee_tables" yaml:"fee_tables"`
	FeeTablesUnder3   map[string]rangetable.FeeTable `json:"fee_tables_under_3,omitempty" yaml:"fee_tables_under_3,omitempty"`
	FeeTables3to5     map[string]rangetable.FeeTable `json:"fee_tables_3_5,omitempty" yaml:"fee_tables_3_5,omitempty"`
	FeeTablesElectric map[string]rangetable.FeeTable `json:"fee_tables_electric,omitempty" yaml:"fee_tables_electric,omitempty"`

	Scenarios ScenariosDocument `json:"scenarios" yaml:"scenarios"`
}

// RulesDocument holds optional rule overrides; nil fields keep DefaultRules
type RulesDocument struct {
	FoldOver5Into3to5   *bool            `json:"fold_over_5_into_3_5,omitempty" yaml:"fold_over_5_into_3_5,omitempty"`
	RoundingStep        *decimal.Decimal `json:"rounding_step,omitempty" yaml:"rounding_step,omitempty"`
	DefaultExchangeRate *decimal.Decimal `json:"default_exchange_rate,omitempty" yaml:"default_exchange_rate,omitempty"`
	LocalCurrency       string           `json:"local_currency,omitempty" yaml:"local_currency,omitempty"`
}

// ScenariosDocument holds one section per configured scenario
type ScenariosDocument struct {
	Under3   *ScenarioDocument `json:"under_3,omitempty" yaml:"under_3,omitempty"`
	Age3to5  *ScenarioDocument `json:"age_3_5,omitempty" yaml:"age_3_5,omitempty"`
	Electric *ScenarioDocument `json:"electric,omitempty" yaml:"electric,omitempty"`

	// Legacy3to5 accepts files written before the age_3_5 key existed
	Legacy3to5 *ScenarioDocument `json:"3_5,omitempty" yaml:"3_5,omitempty"`
}

// ScenarioDocument is one scenario section: the expense map plus scenario fields
type ScenarioDocument struct {
	Expenses map[string]Formula `json:"expenses" yaml:"expenses"`

	CustomsClearanceFee *decimal.Decimal `json:"customs_clearance_fee,omitempty" yaml:"customs_clearance_fee,omitempty"`
	Brokerage           *decimal.Decimal `json:"brokerage,omitempty" yaml:"brokerage,omitempty"`

	DutyPercent        *decimal.Decimal       `json:"duty_percent,omitempty" yaml:"duty_percent,omitempty"`
	VATPercent         *decimal.Decimal       `json:"vat_percent,omitempty" yaml:"vat_percent,omitempty"`
	ExciseByKilowatt   []rangetable.ExciseRow `json:"excise_by_kilowatt,omitempty" yaml:"excise_by_kilowatt,omitempty"`
	ExciseByHorsepower []rangetable.ExciseRow `json:"excise_by_horsepower,omitempty" yaml:"excise_by_horsepower,omitempty"`
	FeeTable           string                 `json:"fee_table,omitempty" yaml:"fee_table,omitempty"`

	// PowerFee is keyed by age bucket: under_3 or age_3_5
	PowerFee map[string][]rangetable.FeeRow `json:"power_fee,omitempty" yaml:"power_fee,omitempty"`
}

// Build validates the document and returns the configuration it describes
func (d *Document) Build() (*Configuration, error) {
	cfg := &Configuration{
		Version: strings.TrimSpace(d.Version),
		Rules:   d.Rules.rules(),
	}
	if cfg.Version == "" {
		return nil, apperrors.ConfigInvalid("version is required")
	}

	var err error
	if cfg.DutyRanges, err = rangetable.NewDutyRanges(d.DutyRanges); err != nil {
		return nil, apperrors.Wrap(apperrors.TypeConfigInvalid, "invalid duty ranges", err)
	}
	if cfg.DisplacementBuckets, err = rangetable.NewDisplacementBuckets(d.DisplacementBuckets); err != nil {
		return nil, apperrors.Wrap(apperrors.TypeConfigInvalid, "invalid displacement buckets", err)
	}
	if cfg.FeeTables, err = buildFeeTables("fee_tables", d.FeeTables); err != nil {
		return nil, err
	}
	if cfg.FeeTablesUnder3, err = buildFeeTables("fee_tables_under_3", d.FeeTablesUnder3); err != nil {
		return nil, err
	}
	if cfg.FeeTables3to5, err = buildFeeTables("fee_tables_3_5", d.FeeTables3to5); err != nil {
		return nil, err
	}
	if cfg.FeeTablesElectric, err = buildFeeTables("fee_tables_electric", d.FeeTablesElectric); err != nil {
		return nil, err
	}

	if cfg.Scenarios, err = d.Scenarios.build(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *RulesDocument) rules() Rules {
	rules := DefaultRules()
	if r == nil {
		return rules
	}
	if r.FoldOver5Into3to5 != nil {
		rules.FoldOver5Into3to5 = *r.FoldOver5Into3to5
	}
	if r.RoundingStep != nil {
		rules.RoundingStep = *r.RoundingStep
	}
	if r.DefaultExchangeRate != nil {
		rules.DefaultExchangeRate = *r.DefaultExchangeRate
	}
	if r.LocalCurrency != "" {
		rules.LocalCurrency = Currency(strings.ToUpper(r.LocalCurrency))
	}
	return rules
}

func buildFeeTables(section string, tables map[string]rangetable.FeeTable) (FeeTableSet, error) {
	if tables == nil {
		return nil, nil
	}
	set := make(FeeTableSet, len(tables))
	for name, t := range tables {
		table, err := rangetable.NewFeeTable(section+"."+name, t.Kilowatt, t.Horsepower)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.TypeConfigInvalid, "invalid fee table", err).
				WithContext("table", section+"."+name)
		}
		set[name] = table
	}
	return set, nil
}

func (s ScenariosDocument) build() (Scenarios, error) {
	var out Scenarios

	if s.Under3 == nil {
		return out, missingScenario(ScenarioUnder3)
	}
	if err := s.Under3.fillExpenses(ScenarioUnder3, out.Under3.fields()); err != nil {
		return out, err
	}
	if len(s.Under3.PowerFee) > 0 {
		return out, powerFeeNotSupported(ScenarioUnder3)
	}

	age := s.Age3to5
	if age == nil {
		age = s.Legacy3to5
	}
	if age == nil {
		return out, missingScenario(ScenarioAge3to5)
	}
	if err := age.fillExpenses(ScenarioAge3to5, out.Age3to5.fields()); err != nil {
		return out, err
	}
	if len(age.PowerFee) > 0 {
		return out, powerFeeNotSupported(ScenarioAge3to5)
	}
	out.Age3to5.CustomsClearanceFee = valueOr(age.CustomsClearanceFee, decimal.Zero)
	out.Age3to5.Brokerage = valueOr(age.Brokerage, decimal.Zero)

	el := s.Electric
	if el == nil {
		return out, missingScenario(ScenarioElectric)
	}
	if err := el.fillExpenses(ScenarioElectric, out.Electric.fields()); err != nil {
		return out, err
	}
	out.Electric.CustomsClearanceFee = valueOr(el.CustomsClearanceFee, decimal.Zero)
	out.Electric.Brokerage = valueOr(el.Brokerage, decimal.Zero)
	out.Electric.DutyPercent = valueOr(el.DutyPercent, defaultElectricDutyPercent)
	out.Electric.VATPercent = valueOr(el.VATPercent, defaultElectricVATPercent)
	out.Electric.FeeTable = strings.TrimSpace(el.FeeTable)

	var err error
	if out.Electric.ExciseByKilowatt, err = rangetable.NewExciseTable("electric.excise_by_kilowatt", el.ExciseByKilowatt); err != nil {
		return out, apperrors.Wrap(apperrors.TypeConfigInvalid, "invalid excise table", err)
	}
	if out.Electric.ExciseByHorsepower, err = rangetable.NewExciseTable("electric.excise_by_horsepower", el.ExciseByHorsepower); err != nil {
		return out, apperrors.Wrap(apperrors.TypeConfigInvalid, "invalid excise table", err)
	}
	if out.Electric.PowerFee, err = buildPowerFee(el.PowerFee); err != nil {
		return out, err
	}
	return out, nil
}

func buildPowerFee(doc map[string][]rangetable.FeeRow) (PowerFeeTable, error) {
	if len(doc) == 0 {
		return nil, nil
	}
	out := make(PowerFeeTable, len(doc))
	for key, rows := range doc {
		bucket := ParseScenario(key)
		if !validPowerFeeBucket(bucket) {
			return nil, apperrors.ConfigInvalid("electric.power_fee: unknown age bucket %q", key).
				WithContext("bucket", key)
		}
		if _, dup := out[bucket]; dup {
			return nil, apperrors.ConfigInvalid("electric.power_fee: age bucket %q declared twice", bucket).
				WithContext("bucket", key)
		}
		built, err := rangetable.NewFeeRows("electric.power_fee."+string(bucket), rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.TypeConfigInvalid, "invalid power fee table", err).
				WithContext("bucket", string(bucket))
		}
		out[bucket] = built
	}
	return out, nil
}

func powerFeeNotSupported(s Scenario) error {
	return apperrors.ConfigInvalid("scenarios.%s: power_fee is only supported for electric", s).
		WithContext("scenario", string(s))
}

// fillExpenses copies the expense map into the typed fields. Every required
// field must be present and no other key is accepted.
func (sd *ScenarioDocument) fillExpenses(s Scenario, fields []expenseField) error {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.key] = true
		formula, ok := sd.Expenses[f.key]
		if !ok && optionalExpenses[f.key] {
			*f.formula = Formula{}
			continue
		}
		if !ok {
			return apperrors.ConfigInvalid("scenarios.%s: missing expense %q", s, f.key).
				WithContext("scenario", string(s))
		}
		*f.formula = formula
	}

	var unknown []string
	for key := range sd.Expenses {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return apperrors.ConfigInvalid("scenarios.%s: unknown expenses %s", s, strings.Join(unknown, ", ")).
			WithContext("scenario", string(s))
	}
	return nil
}

func missingScenario(s Scenario) error {
	return apperrors.ConfigInvalid("scenarios.%s is missing", s).WithContext("scenario", string(s))
}

func valueOr(v *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if v == nil {
		return def
	}
	return *v
}

// DocumentFrom renders a configuration back into its declarative shape
func DocumentFrom(cfg *Configuration) *Document {
	fold := cfg.Rules.FoldOver5Into3to5
	step := cfg.Rules.RoundingStep
	rules := &RulesDocument{
		FoldOver5Into3to5: &fold,
		RoundingStep:      &step,
		LocalCurrency:     string(cfg.Rules.LocalCurrency),
	}
	if !cfg.Rules.DefaultExchangeRate.IsZero() {
		rate := cfg.Rules.DefaultExchangeRate
		rules.DefaultExchangeRate = &rate
	}

	sc := cfg.Scenarios
	age := expensesDocument(sc.Age3to5.fields())
	age.CustomsClearanceFee = decimalPtr(sc.Age3to5.CustomsClearanceFee)
	age.Brokerage = decimalPtr(sc.Age3to5.Brokerage)

	el := expensesDocument(sc.Electric.fields())
	el.CustomsClearanceFee = decimalPtr(sc.Electric.CustomsClearanceFee)
	el.Brokerage = decimalPtr(sc.Electric.Brokerage)
	el.DutyPercent = decimalPtr(sc.Electric.DutyPercent)
	el.VATPercent = decimalPtr(sc.Electric.VATPercent)
	el.ExciseByKilowatt = append([]rangetable.ExciseRow(nil), sc.Electric.ExciseByKilowatt...)
	el.ExciseByHorsepower = append([]rangetable.ExciseRow(nil), sc.Electric.ExciseByHorsepower...)
	el.FeeTable = sc.Electric.FeeTable
	if len(sc.Electric.PowerFee) > 0 {
		el.PowerFee = make(map[string][]rangetable.FeeRow, len(sc.Electric.PowerFee))
		for b, rows := range sc.Electric.PowerFee {
			el.PowerFee[string(b)] = append([]rangetable.FeeRow(nil), rows...)
		}
	}

	return &Document{
		Version:             cfg.Version,
		Rules:               rules,
		DutyRanges:          append([]rangetable.DutyRange(nil), cfg.DutyRanges...),
		DisplacementBuckets: append([]rangetable.DisplacementBucket(nil), cfg.DisplacementBuckets...),
		FeeTables:           feeTableMap(cfg.FeeTables),
		FeeTablesUnder3:     feeTableMap(cfg.FeeTablesUnder3),
		FeeTables3to5:       feeTableMap(cfg.FeeTables3to5),
		FeeTablesElectric:   feeTableMap(cfg.FeeTablesElectric),
		Scenarios: ScenariosDocument{
			Under3:   expensesDocument(sc.Under3.fields()),
			Age3to5:  age,
			Electric: el,
		},
	}
}

func expensesDocument(fields []expenseField) *ScenarioDocument {
	doc := &ScenarioDocument{Expenses: make(map[string]Formula, len(fields))}
	for _, f := range fields {
		if optionalExpenses[f.key] && f.formula.IsZero() {
			continue
		}
		doc.Expenses[f.key] = *f.formula
	}
	return doc
}

func feeTableMap(set FeeTableSet) map[string]rangetable.FeeTable {
	if set == nil {
		return nil
	}
	return map[string]rangetable.FeeTable(set.Clone())
}

func decimalPtr(v decimal.Decimal) *decimal.Decimal {
	return &v
}
