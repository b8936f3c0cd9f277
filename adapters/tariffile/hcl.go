package tariffile

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/shopspring/decimal"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"import-cost/core/rangetable"
	"import-cost/core/tariff"
	apperrors "import-cost/internal/errors"
)

// HCL file shape. Numbers are kept as cty values so they convert to decimals
// without passing through float64.
type hclFile struct {
	Version             string         `hcl:"version"`
	Rules               *hclRules      `hcl:"rules,block"`
	DutyRanges          []hclDutyRange `hcl:"duty_range,block"`
	DisplacementBuckets []hclBucket    `hcl:"displacement_bucket,block"`
	FeeTables           []hclFeeTable  `hcl:"fee_table,block"`
	Scenarios           []hclScenario  `hcl:"scenario,block"`
}

type hclRules struct {
	FoldOver5Into3to5   *bool     `hcl:"fold_over_5_into_3_5,optional"`
	RoundingStep        cty.Value `hcl:"rounding_step,optional"`
	DefaultExchangeRate cty.Value `hcl:"default_exchange_rate,optional"`
	LocalCurrency       string    `hcl:"local_currency,optional"`
}

type hclDutyRange struct {
	From int       `hcl:"from"`
	To   int       `hcl:"to"`
	Rate cty.Value `hcl:"rate"`
}

type hclBucket struct {
	From  int    `hcl:"from"`
	To    int    `hcl:"to"`
	Table string `hcl:"table"`
}

// hclFeeTable rows are [from, to, price] tuples
type hclFeeTable struct {
	Name       string    `hcl:"name,label"`
	Set        string    `hcl:"set,optional"`
	Kilowatt   cty.Value `hcl:"kilowatt,optional"`
	Horsepower cty.Value `hcl:"horsepower,optional"`
}

type hclScenario struct {
	Key      string       `hcl:"key,label"`
	Expenses []hclExpense `hcl:"expense,block"`

	CustomsClearanceFee cty.Value `hcl:"customs_clearance_fee,optional"`
	Brokerage           cty.Value `hcl:"brokerage,optional"`
	DutyPercent         cty.Value `hcl:"duty_percent,optional"`
	VATPercent          cty.Value `hcl:"vat_percent,optional"`
	FeeTable            string    `hcl:"fee_table,optional"`

	// excise rows are [from, to, rate] tuples
	ExciseByKilowatt   cty.Value `hcl:"excise_by_kilowatt,optional"`
	ExciseByHorsepower cty.Value `hcl:"excise_by_horsepower,optional"`

	PowerFee []hclPowerFee `hcl:"power_fee,block"`
}

// hclPowerFee rows are [from_hp, to_hp, price] tuples for one age bucket
type hclPowerFee struct {
	Bucket     string    `hcl:"bucket,label"`
	Horsepower cty.Value `hcl:"horsepower"`
}

type hclExpense struct {
	Key     string    `hcl:"key,label"`
	Percent cty.Value `hcl:"percent,optional"`
	Fixed   cty.Value `hcl:"fixed,optional"`
}

func decodeHCL(data []byte, filename string) (*tariff.Document, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, diagError(filename, diags)
	}

	var raw hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, diagError(filename, diags)
	}

	doc, err := raw.document()
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.TypeConfigInvalid, err, "invalid HCL in %s", filename)
	}
	return doc, nil
}

func diagError(filename string, diags hcl.Diagnostics) error {
	var msgs []string
	line := 0
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError {
			continue
		}
		if line == 0 && diag.Subject != nil {
			line = diag.Subject.Start.Line
		}
		msgs = append(msgs, diag.Summary+": "+diag.Detail)
	}
	return apperrors.Newf(apperrors.TypeConfigInvalid, "invalid HCL in %s: %s", filename, strings.Join(msgs, "; ")).
		WithContext("line", line)
}

func (f *hclFile) document() (*tariff.Document, error) {
	doc := &tariff.Document{Version: f.Version}

	if f.Rules != nil {
		rules, err := f.Rules.document()
		if err != nil {
			return nil, err
		}
		doc.Rules = rules
	}

	for _, r := range f.DutyRanges {
		rate, err := number(r.Rate, "duty_range.rate")
		if err != nil {
			return nil, err
		}
		doc.DutyRanges = append(doc.DutyRanges, rangetable.DutyRange{From: r.From, To: r.To, Rate: rate})
	}
	for _, b := range f.DisplacementBuckets {
		doc.DisplacementBuckets = append(doc.DisplacementBuckets, rangetable.DisplacementBucket(b))
	}

	for _, t := range f.FeeTables {
		if err := t.addTo(doc); err != nil {
			return nil, err
		}
	}

	for _, s := range f.Scenarios {
		sd, err := s.document()
		if err != nil {
			return nil, err
		}
		slot, err := scenarioSlot(&doc.Scenarios, s.Key)
		if err != nil {
			return nil, err
		}
		if *slot != nil {
			return nil, fmt.Errorf("scenario %q declared twice", s.Key)
		}
		*slot = sd
	}
	return doc, nil
}

func (r *hclRules) document() (*tariff.RulesDocument, error) {
	out := &tariff.RulesDocument{
		FoldOver5Into3to5: r.FoldOver5Into3to5,
		LocalCurrency:     r.LocalCurrency,
	}
	var err error
	if out.RoundingStep, err = optionalNumber(r.RoundingStep, "rules.rounding_step"); err != nil {
		return nil, err
	}
	if out.DefaultExchangeRate, err = optionalNumber(r.DefaultExchangeRate, "rules.default_exchange_rate"); err != nil {
		return nil, err
	}
	return out, nil
}

func (t hclFeeTable) addTo(doc *tariff.Document) error {
	path := "fee_table." + t.Name
	kw, err := tuples(t.Kilowatt, path+".kilowatt")
	if err != nil {
		return err
	}
	hp, err := tuples(t.Horsepower, path+".horsepower")
	if err != nil {
		return err
	}
	table := rangetable.FeeTable{Kilowatt: feeRows(kw), Horsepower: feeRows(hp)}

	var target *map[string]rangetable.FeeTable
	switch tariff.ParseScenario(t.Set) {
	case "", "default":
		target = &doc.FeeTables
	case tariff.ScenarioUnder3:
		target = &doc.FeeTablesUnder3
	case tariff.ScenarioAge3to5:
		target = &doc.FeeTables3to5
	case tariff.ScenarioElectric:
		target = &doc.FeeTablesElectric
	default:
		return fmt.Errorf("%s: unknown set %q", path, t.Set)
	}
	if *target == nil {
		*target = make(map[string]rangetable.FeeTable)
	}
	if _, dup := (*target)[t.Name]; dup {
		return fmt.Errorf("%s declared twice in set %q", path, t.Set)
	}
	(*target)[t.Name] = table
	return nil
}

func (s hclScenario) document() (*tariff.ScenarioDocument, error) {
	path := "scenario." + s.Key
	sd := &tariff.ScenarioDocument{
		Expenses: make(map[string]tariff.Formula, len(s.Expenses)),
		FeeTable: s.FeeTable,
	}

	for _, e := range s.Expenses {
		if _, dup := sd.Expenses[e.Key]; dup {
			return nil, fmt.Errorf("%s: expense %q declared twice", path, e.Key)
		}
		var f tariff.Formula
		var err error
		if f.Percent, err = numberOrZero(e.Percent, path+".expense."+e.Key+".percent"); err != nil {
			return nil, err
		}
		if f.Fixed, err = numberOrZero(e.Fixed, path+".expense."+e.Key+".fixed"); err != nil {
			return nil, err
		}
		sd.Expenses[e.Key] = f
	}

	var err error
	if sd.CustomsClearanceFee, err = optionalNumber(s.CustomsClearanceFee, path+".customs_clearance_fee"); err != nil {
		return nil, err
	}
	if sd.Brokerage, err = optionalNumber(s.Brokerage, path+".brokerage"); err != nil {
		return nil, err
	}
	if sd.DutyPercent, err = optionalNumber(s.DutyPercent, path+".duty_percent"); err != nil {
		return nil, err
	}
	if sd.VATPercent, err = optionalNumber(s.VATPercent, path+".vat_percent"); err != nil {
		return nil, err
	}

	kw, err := tuples(s.ExciseByKilowatt, path+".excise_by_kilowatt")
	if err != nil {
		return nil, err
	}
	hp, err := tuples(s.ExciseByHorsepower, path+".excise_by_horsepower")
	if err != nil {
		return nil, err
	}
	sd.ExciseByKilowatt = exciseRows(kw)
	sd.ExciseByHorsepower = exciseRows(hp)

	for _, pf := range s.PowerFee {
		rows, err := tuples(pf.Horsepower, path+".power_fee."+pf.Bucket)
		if err != nil {
			return nil, err
		}
		if sd.PowerFee == nil {
			sd.PowerFee = make(map[string][]rangetable.FeeRow)
		}
		if _, dup := sd.PowerFee[pf.Bucket]; dup {
			return nil, fmt.Errorf("%s: power_fee %q declared twice", path, pf.Bucket)
		}
		sd.PowerFee[pf.Bucket] = feeRows(rows)
	}
	return sd, nil
}

func scenarioSlot(s *tariff.ScenariosDocument, key string) (**tariff.ScenarioDocument, error) {
	switch tariff.ParseScenario(key) {
	case tariff.ScenarioUnder3:
		return &s.Under3, nil
	case tariff.ScenarioAge3to5:
		return &s.Age3to5, nil
	case tariff.ScenarioElectric:
		return &s.Electric, nil
	default:
		return nil, fmt.Errorf("unknown scenario %q", key)
	}
}

// number converts a cty number (or numeric string) to an exact decimal
func number(v cty.Value, path string) (decimal.Decimal, error) {
	if v.IsNull() {
		return decimal.Zero, fmt.Errorf("%s is required", path)
	}
	if !v.IsKnown() {
		return decimal.Zero, fmt.Errorf("%s is not a known value", path)
	}
	n, err := convert.Convert(v, cty.Number)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %v", path, err)
	}
	d, err := decimal.NewFromString(n.AsBigFloat().Text('f', -1))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %v", path, err)
	}
	return d, nil
}

func optionalNumber(v cty.Value, path string) (*decimal.Decimal, error) {
	if v.IsNull() {
		return nil, nil
	}
	d, err := number(v, path)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func numberOrZero(v cty.Value, path string) (decimal.Decimal, error) {
	if v.IsNull() {
		return decimal.Zero, nil
	}
	return number(v, path)
}

// tuples reads a list of [a, b, c] number tuples
func tuples(v cty.Value, path string) ([][3]decimal.Decimal, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.CanIterateElements() {
		return nil, fmt.Errorf("%s must be a list of [from, to, value] rows", path)
	}

	var out [][3]decimal.Decimal
	i := 0
	for it := v.ElementIterator(); it.Next(); i++ {
		_, row := it.Element()
		rowPath := fmt.Sprintf("%s[%d]", path, i)
		if !row.CanIterateElements() || row.LengthInt() != 3 {
			return nil, fmt.Errorf("%s must have exactly three numbers", rowPath)
		}
		var triple [3]decimal.Decimal
		j := 0
		for cell := row.ElementIterator(); cell.Next(); j++ {
			_, c := cell.Element()
			d, err := number(c, fmt.Sprintf("%s[%d]", rowPath, j))
			if err != nil {
				return nil, err
			}
			triple[j] = d
		}
		out = append(out, triple)
	}
	return out, nil
}

func feeRows(rows [][3]decimal.Decimal) []rangetable.FeeRow {
	if rows == nil {
		return nil
	}
	out := make([]rangetable.FeeRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, rangetable.FeeRow{From: r[0], To: r[1], Price: r[2]})
	}
	return out
}

func exciseRows(rows [][3]decimal.Decimal) []rangetable.ExciseRow {
	if rows == nil {
		return nil
	}
	out := make([]rangetable.ExciseRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, rangetable.ExciseRow{From: r[0], To: r[1], Rate: r[2]})
	}
	return out
}
