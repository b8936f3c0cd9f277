package rangetable

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dutyRows() []DutyRange {
	return []DutyRange{
		{From: 1001, To: 1500, Rate: d("1.7")},
		{From: 0, To: 1000, Rate: d("1.5")},
		{From: 1501, To: 1800, Rate: d("2.5")},
		{From: 1801, To: 2300, Rate: d("2.7")},
	}
}

func TestNewDutyRangesSortsAndValidates(t *testing.T) {
	ranges, err := NewDutyRanges(dutyRows())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(ranges); i++ {
		if ranges[i].From != ranges[i-1].To+1 {
			t.Errorf("ranges %d and %d are not contiguous", i-1, i)
		}
	}
	if ranges[0].From != 0 {
		t.Errorf("expected first range to start at 0, got %d", ranges[0].From)
	}
}

func TestNewDutyRangesRejectsBrokenTables(t *testing.T) {
	tests := []struct {
		name    string
		rows    []DutyRange
		wantErr string
	}{
		{
			name:    "empty",
			rows:    nil,
			wantErr: "duty_ranges is empty",
		},
		{
			name: "overlap names both intervals",
			rows: []DutyRange{
				{From: 0, To: 1000, Rate: d("1.5")},
				{From: 900, To: 1500, Rate: d("1.7")},
			},
			wantErr: "ranges overlap: [0-1000] and [900-1500]",
		},
		{
			name: "touching bounds overlap",
			rows: []DutyRange{
				{From: 0, To: 1000, Rate: d("1.5")},
				{From: 1000, To: 1500, Rate: d("1.7")},
			},
			wantErr: "ranges overlap: [0-1000] and [1000-1500]",
		},
		{
			name: "gap names both intervals",
			rows: []DutyRange{
				{From: 0, To: 1000, Rate: d("1.5")},
				{From: 1002, To: 1500, Rate: d("1.7")},
			},
			wantErr: "gap between [0-1000] and [1002-1500]",
		},
		{
			name:    "inverted",
			rows:    []DutyRange{{From: 10, To: 5, Rate: d("1")}},
			wantErr: "invalid range [10-5]",
		},
		{
			name:    "negative rate",
			rows:    []DutyRange{{From: 0, To: 5, Rate: d("-1")}},
			wantErr: "negative rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDutyRanges(tt.rows)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDutyRangesLookup(t *testing.T) {
	ranges, err := NewDutyRanges(dutyRows())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		cc       int
		wantRate string
		clamped  bool
		bound    Bound
	}{
		{name: "inside", cc: 1200, wantRate: "1.7"},
		{name: "upper bound belongs to its range", cc: 1500, wantRate: "1.7"},
		{name: "lower bound of next range", cc: 1501, wantRate: "2.5"},
		{name: "above max clamps to last", cc: 9000, wantRate: "2.7", clamped: true, bound: BoundAboveMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := ranges.Lookup(tt.cc)
			if !ok {
				t.Fatal("lookup reported empty table")
			}
			if !m.Row.Rate.Equal(d(tt.wantRate)) {
				t.Errorf("rate = %s, want %s", m.Row.Rate, tt.wantRate)
			}
			if m.Clamped != tt.clamped || m.Bound != tt.bound {
				t.Errorf("clamped=%v bound=%s, want clamped=%v bound=%s", m.Clamped, m.Bound, tt.clamped, tt.bound)
			}
		})
	}
}

func TestDisplacementBucketsBelowMinClampsToFirst(t *testing.T) {
	buckets, err := NewDisplacementBuckets([]DisplacementBucket{
		{From: 100, To: 2000, Table: "cc_100_2000"},
		{From: 2001, To: 3000, Table: "cc_2001_3000"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, _ := buckets.Lookup(50)
	if m.Row.Table != "cc_100_2000" || m.Bound != BoundBelowMin || !m.Clamped {
		t.Errorf("got %+v, want first bucket clamped below min", m)
	}

	m, _ = buckets.Lookup(2000)
	if m.Row.Table != "cc_100_2000" || m.Clamped {
		t.Errorf("2000cc must resolve to the 100-2000 bucket, got %+v", m)
	}

	if got := buckets.Tables(); len(got) != 2 || got[0] != "cc_100_2000" {
		t.Errorf("unexpected table names %v", got)
	}
}

func TestDisplacementBucketsRequireTableName(t *testing.T) {
	_, err := NewDisplacementBuckets([]DisplacementBucket{{From: 0, To: 10}})
	if err == nil || !strings.Contains(err.Error(), "no table name") {
		t.Errorf("expected missing table name error, got %v", err)
	}
}

func TestLookupOnHandBuiltTableWithGap(t *testing.T) {
	ranges := DutyRanges{
		{From: 0, To: 100, Rate: d("1")},
		{From: 200, To: 300, Rate: d("2")},
	}

	m, _ := ranges.Lookup(120)
	if m.Bound != BoundGap || !m.Row.Rate.Equal(d("1")) {
		t.Errorf("120 should clamp to the lower neighbour, got %+v", m)
	}
	m, _ = ranges.Lookup(190)
	if m.Bound != BoundGap || !m.Row.Rate.Equal(d("2")) {
		t.Errorf("190 should clamp to the upper neighbour, got %+v", m)
	}
}

func TestBoundString(t *testing.T) {
	if BoundBelowMin.String() != "below_min" || BoundAboveMax.String() != "above_max" {
		t.Error("unexpected bound names")
	}
	if Bound(42).String() != "unknown" {
		t.Error("unknown bound must stringify as unknown")
	}
}

func TestDutyRangesValidateKeepsOrder(t *testing.T) {
	sorted, err := NewDutyRanges(dutyRows())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sorted.Validate(); err != nil {
		t.Errorf("sorted table rejected: %v", err)
	}

	unsorted := DutyRanges(dutyRows())
	err = unsorted.Validate()
	if err == nil || !strings.Contains(err.Error(), "rows out of order: [0-1000] after [1001-1500]") {
		t.Errorf("expected order error, got %v", err)
	}
	if unsorted[0].From != 1001 {
		t.Error("Validate must not reorder rows")
	}
}

func TestDisplacementBucketsValidateRejectsUnordered(t *testing.T) {
	buckets := DisplacementBuckets{
		{From: 2001, To: 3000, Table: "b"},
		{From: 0, To: 2000, Table: "a"},
	}
	if err := buckets.Validate(); err == nil || !strings.Contains(err.Error(), "out of order") {
		t.Errorf("expected order error, got %v", err)
	}
}
