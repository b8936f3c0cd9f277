// Package rangetable models the closed-interval tables the tariff is built from:
// duty rates per displacement, displacement buckets, power-ranged fee rows and
// excise rows. Constructors validate the tables once; lookups never fail on
// out-of-range input and instead report the boundary row they clamped to.
package rangetable

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Bound describes how a lookup value related to the table it was resolved against
type Bound int

const (
	// BoundNone means the value was inside a row
	BoundNone Bound = iota

	// BoundBelowMin means the value was below the first row
	BoundBelowMin

	// BoundAboveMax means the value was above the last row
	BoundAboveMax

	// BoundGap means the value fell between two rows
	BoundGap
)

// String returns the bound name
func (b Bound) String() string {
	switch b {
	case BoundNone:
		return "none"
	case BoundBelowMin:
		return "below_min"
	case BoundAboveMax:
		return "above_max"
	case BoundGap:
		return "gap"
	default:
		return "unknown"
	}
}

// Match is the outcome of a table lookup
type Match[T any] struct {
	Row     T
	Index   int
	Clamped bool
	Bound   Bound
}

// DutyRange is a duty rate in EUR per cc for a displacement interval
type DutyRange struct {
	From int             `json:"from" yaml:"from"`
	To   int             `json:"to" yaml:"to"`
	Rate decimal.Decimal `json:"rate" yaml:"rate"`
}

func (r DutyRange) interval() (int, int) { return r.From, r.To }

// DisplacementBucket binds a displacement interval to a fee table name
type DisplacementBucket struct {
	From  int    `json:"from" yaml:"from"`
	To    int    `json:"to" yaml:"to"`
	Table string `json:"table" yaml:"table"`
}

func (b DisplacementBucket) interval() (int, int) { return b.From, b.To }

// DutyRanges is a validated, sorted duty table
type DutyRanges []DutyRange

// NewDutyRanges sorts rows by lower bound and checks they form one contiguous cover
func NewDutyRanges(rows []DutyRange) (DutyRanges, error) {
	sorted := append([]DutyRange(nil), rows...)
	sortIntRows(sorted)
	if err := DutyRanges(sorted).Validate(); err != nil {
		return nil, err
	}
	return DutyRanges(sorted), nil
}

// Validate checks the table as it is, rows must already be in ascending order
func (r DutyRanges) Validate() error {
	if err := validateContiguous("duty_ranges", []DutyRange(r)); err != nil {
		return err
	}
	for _, row := range r {
		if row.Rate.IsNegative() {
			return fmt.Errorf("duty_ranges: negative rate %s in [%d-%d]", row.Rate, row.From, row.To)
		}
	}
	return nil
}

// Lookup finds the range containing cc, clamping to the first or last range
func (r DutyRanges) Lookup(cc int) (Match[DutyRange], bool) {
	return lookupInt([]DutyRange(r), cc)
}

// DisplacementBuckets is a validated, sorted bucket list
type DisplacementBuckets []DisplacementBucket

// NewDisplacementBuckets sorts buckets by lower bound and checks they form one contiguous cover
func NewDisplacementBuckets(rows []DisplacementBucket) (DisplacementBuckets, error) {
	sorted := append([]DisplacementBucket(nil), rows...)
	sortIntRows(sorted)
	if err := DisplacementBuckets(sorted).Validate(); err != nil {
		return nil, err
	}
	return DisplacementBuckets(sorted), nil
}

// Validate checks the buckets as they are, without reordering them
func (b DisplacementBuckets) Validate() error {
	if err := validateContiguous("displacement_buckets", []DisplacementBucket(b)); err != nil {
		return err
	}
	for _, bucket := range b {
		if bucket.Table == "" {
			return fmt.Errorf("displacement_buckets: bucket [%d-%d] has no table name", bucket.From, bucket.To)
		}
	}
	return nil
}

// Lookup finds the bucket containing cc, clamping to the first or last bucket
func (b DisplacementBuckets) Lookup(cc int) (Match[DisplacementBucket], bool) {
	return lookupInt([]DisplacementBucket(b), cc)
}

// Tables returns the distinct table names referenced by the buckets, in bucket order
func (b DisplacementBuckets) Tables() []string {
	seen := make(map[string]bool, len(b))
	var names []string
	for _, bucket := range b {
		if !seen[bucket.Table] {
			seen[bucket.Table] = true
			names = append(names, bucket.Table)
		}
	}
	return names
}

type intInterval interface {
	interval() (from, to int)
}

func sortIntRows[T intInterval](rows []T) {
	sort.SliceStable(rows, func(i, j int) bool {
		fi, ti := rows[i].interval()
		fj, tj := rows[j].interval()
		if fi != fj {
			return fi < fj
		}
		return ti < tj
	})
}

// validateContiguous requires sorted rows with next.from == prev.to+1
func validateContiguous[T intInterval](name string, rows []T) error {
	if len(rows) == 0 {
		return fmt.Errorf("%s is empty", name)
	}
	for i, row := range rows {
		from, to := row.interval()
		if from < 0 {
			return fmt.Errorf("%s: negative bound in [%d-%d]", name, from, to)
		}
		if to < from {
			return fmt.Errorf("%s: invalid range [%d-%d]", name, from, to)
		}
		if i == 0 {
			continue
		}
		prevFrom, prevTo := rows[i-1].interval()
		switch {
		case from < prevFrom || (from == prevFrom && to < prevTo):
			return fmt.Errorf("%s: rows out of order: [%d-%d] after [%d-%d]", name, from, to, prevFrom, prevTo)
		case from <= prevTo:
			return fmt.Errorf("%s: ranges overlap: [%d-%d] and [%d-%d]", name, prevFrom, prevTo, from, to)
		case from != prevTo+1:
			return fmt.Errorf("%s: gap between [%d-%d] and [%d-%d]", name, prevFrom, prevTo, from, to)
		}
	}
	return nil
}

func lookupInt[T intInterval](rows []T, v int) (Match[T], bool) {
	if len(rows) == 0 {
		return Match[T]{Index: -1}, false
	}
	for i, row := range rows {
		from, to := row.interval()
		if from <= v && v <= to {
			return Match[T]{Row: row, Index: i}, true
		}
	}
	if first, _ := rows[0].interval(); v < first {
		return Match[T]{Row: rows[0], Index: 0, Clamped: true, Bound: BoundBelowMin}, true
	}
	last := len(rows) - 1
	if _, lastTo := rows[last].interval(); v > lastTo {
		return Match[T]{Row: rows[last], Index: last, Clamped: true, Bound: BoundAboveMax}, true
	}
	// Unreachable for validated tables, kept for hand-built ones.
	for i := 0; i < last; i++ {
		_, to := rows[i].interval()
		next, _ := rows[i+1].interval()
		if to < v && v < next {
			if next-v < v-to {
				return Match[T]{Row: rows[i+1], Index: i + 1, Clamped: true, Bound: BoundGap}, true
			}
			return Match[T]{Row: rows[i], Index: i, Clamped: true, Bound: BoundGap}, true
		}
	}
	return Match[T]{Row: rows[last], Index: last, Clamped: true, Bound: BoundGap}, true
}
