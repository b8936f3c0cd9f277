package rangetable

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// FeeRow maps a closed power interval to a flat fee in local currency
type FeeRow struct {
	From  decimal.Decimal `json:"from" yaml:"from"`
	To    decimal.Decimal `json:"to" yaml:"to"`
	Price decimal.Decimal `json:"price" yaml:"price"`
}

func (r FeeRow) bounds() (decimal.Decimal, decimal.Decimal) { return r.From, r.To }
func (r FeeRow) amount() decimal.Decimal                    { return r.Price }

// ExciseRow maps a closed power interval to a rate per power unit
type ExciseRow struct {
	From decimal.Decimal `json:"from" yaml:"from"`
	To   decimal.Decimal `json:"to" yaml:"to"`
	Rate decimal.Decimal `json:"rate" yaml:"rate"`
}

func (r ExciseRow) bounds() (decimal.Decimal, decimal.Decimal) { return r.From, r.To }
func (r ExciseRow) amount() decimal.Decimal                    { return r.Rate }

// FeeRows is a validated, sorted list of fee rows for one power metric
type FeeRows []FeeRow

// NewFeeRows sorts rows and checks their internal consistency.
// Touching rows are allowed; gaps are left to the lookup's clamping.
func NewFeeRows(name string, rows []FeeRow) (FeeRows, error) {
	sorted := append([]FeeRow(nil), rows...)
	sortPowerRows(sorted)
	if err := validatePowerRows(name, sorted); err != nil {
		return nil, err
	}
	return FeeRows(sorted), nil
}

// Validate checks the rows as they are, without reordering them
func (r FeeRows) Validate(name string) error {
	return validatePowerRows(name, []FeeRow(r))
}

// Lookup finds the row containing v, or the nearest row when v is outside every row
func (r FeeRows) Lookup(v decimal.Decimal) (Match[FeeRow], bool) {
	return lookupPower([]FeeRow(r), v)
}

// FeeTable holds the kilowatt and horsepower views of one fee schedule
type FeeTable struct {
	Kilowatt   FeeRows `json:"kilowatt" yaml:"kilowatt"`
	Horsepower FeeRows `json:"horsepower" yaml:"horsepower"`
}

// NewFeeTable validates both metric lists; a table needs at least one row
func NewFeeTable(name string, kilowatt, horsepower []FeeRow) (FeeTable, error) {
	kw, err := NewFeeRows(name+".kilowatt", kilowatt)
	if err != nil {
		return FeeTable{}, err
	}
	hp, err := NewFeeRows(name+".horsepower", horsepower)
	if err != nil {
		return FeeTable{}, err
	}
	if len(kw) == 0 && len(hp) == 0 {
		return FeeTable{}, fmt.Errorf("fee table %s has no rows", name)
	}
	return FeeTable{Kilowatt: kw, Horsepower: hp}, nil
}

// Validate checks both metric lists of an already built table
func (t FeeTable) Validate(name string) error {
	if err := t.Kilowatt.Validate(name + ".kilowatt"); err != nil {
		return err
	}
	if err := t.Horsepower.Validate(name + ".horsepower"); err != nil {
		return err
	}
	if len(t.Kilowatt) == 0 && len(t.Horsepower) == 0 {
		return fmt.Errorf("fee table %s has no rows", name)
	}
	return nil
}

// Clone returns a deep copy of the table
func (t FeeTable) Clone() FeeTable {
	return FeeTable{
		Kilowatt:   append(FeeRows(nil), t.Kilowatt...),
		Horsepower: append(FeeRows(nil), t.Horsepower...),
	}
}

// ExciseTable is a validated, sorted list of excise rows. It may be empty.
type ExciseTable []ExciseRow

// NewExciseTable sorts rows and checks their internal consistency
func NewExciseTable(name string, rows []ExciseRow) (ExciseTable, error) {
	sorted := append([]ExciseRow(nil), rows...)
	sortPowerRows(sorted)
	if err := validatePowerRows(name, sorted); err != nil {
		return nil, err
	}
	return ExciseTable(sorted), nil
}

// Validate checks the rows as they are, without reordering them
func (t ExciseTable) Validate(name string) error {
	return validatePowerRows(name, []ExciseRow(t))
}

// Lookup finds the row containing v, or the nearest row when v is outside every row
func (t ExciseTable) Lookup(v decimal.Decimal) (Match[ExciseRow], bool) {
	return lookupPower([]ExciseRow(t), v)
}

type powerInterval interface {
	bounds() (from, to decimal.Decimal)
	amount() decimal.Decimal
}

func sortPowerRows[T powerInterval](rows []T) {
	sort.SliceStable(rows, func(i, j int) bool {
		fi, ti := rows[i].bounds()
		fj, tj := rows[j].bounds()
		if !fi.Equal(fj) {
			return fi.LessThan(fj)
		}
		return ti.LessThan(tj)
	})
}

// validatePowerRows rejects unordered, inverted, negative or overlapping rows
func validatePowerRows[T powerInterval](name string, rows []T) error {
	for i, row := range rows {
		from, to := row.bounds()
		if from.IsNegative() {
			return fmt.Errorf("%s: negative bound in [%s-%s]", name, from, to)
		}
		if to.LessThan(from) {
			return fmt.Errorf("%s: invalid range [%s-%s]", name, from, to)
		}
		if row.amount().IsNegative() {
			return fmt.Errorf("%s: negative amount %s in [%s-%s]", name, row.amount(), from, to)
		}
		if i == 0 {
			continue
		}
		prevFrom, prevTo := rows[i-1].bounds()
		if from.LessThan(prevFrom) || (from.Equal(prevFrom) && to.LessThan(prevTo)) {
			return fmt.Errorf("%s: rows out of order: [%s-%s] after [%s-%s]", name, from, to, prevFrom, prevTo)
		}
		if from.LessThan(prevTo) {
			return fmt.Errorf("%s: ranges overlap: [%s-%s] and [%s-%s]", name, prevFrom, prevTo, from, to)
		}
	}
	return nil
}

func lookupPower[T powerInterval](rows []T, v decimal.Decimal) (Match[T], bool) {
	if len(rows) == 0 {
		return Match[T]{Index: -1}, false
	}
	for i, row := range rows {
		from, to := row.bounds()
		if from.LessThanOrEqual(v) && v.LessThanOrEqual(to) {
			return Match[T]{Row: row, Index: i}, true
		}
	}
	if first, _ := rows[0].bounds(); v.LessThan(first) {
		return Match[T]{Row: rows[0], Index: 0, Clamped: true, Bound: BoundBelowMin}, true
	}
	last := len(rows) - 1
	if _, lastTo := rows[last].bounds(); v.GreaterThan(lastTo) {
		return Match[T]{Row: rows[last], Index: last, Clamped: true, Bound: BoundAboveMax}, true
	}
	for i := 0; i < last; i++ {
		_, to := rows[i].bounds()
		next, _ := rows[i+1].bounds()
		if to.LessThan(v) && v.LessThan(next) {
			if next.Sub(v).LessThan(v.Sub(to)) {
				return Match[T]{Row: rows[i+1], Index: i + 1, Clamped: true, Bound: BoundGap}, true
			}
			return Match[T]{Row: rows[i], Index: i, Clamped: true, Bound: BoundGap}, true
		}
	}
	return Match[T]{Row: rows[last], Index: last, Clamped: true, Bound: BoundGap}, true
}
