package tariff_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"import-cost/core/rangetable"
	"import-cost/core/tariff"
	"import-cost/core/tariff/tarifftest"
	apperrors "import-cost/internal/errors"
)

func TestFixtureBuilds(t *testing.T) {
	cfg := tarifftest.Config()

	if cfg.Version != tarifftest.Version {
		t.Errorf("version = %q, want %q", cfg.Version, tarifftest.Version)
	}
	if !cfg.Rules.FoldOver5Into3to5 {
		t.Error("folding must default to true")
	}
	if !cfg.Rules.RoundingStep.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("rounding step = %s, want 10000", cfg.Rules.RoundingStep)
	}
	if cfg.Rules.LocalCurrency != tariff.CurrencyRUB {
		t.Errorf("local currency = %s, want RUB", cfg.Rules.LocalCurrency)
	}
	if got := len(cfg.Scenarios.Under3.Lines()); got != 9 {
		t.Errorf("under_3 lines = %d, want 9", got)
	}
}

func TestDocumentBuildRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(doc *tariff.Document)
		wantErr string
	}{
		{
			name:    "empty version",
			mutate:  func(doc *tariff.Document) { doc.Version = " " },
			wantErr: "version is required",
		},
		{
			name: "overlapping duty ranges",
			mutate: func(doc *tariff.Document) {
				doc.DutyRanges[1].From = 900
			},
			wantErr: "ranges overlap: [0-1000] and [900-1500]",
		},
		{
			name: "bucket gap",
			mutate: func(doc *tariff.Document) {
				doc.DisplacementBuckets[1].From = 2005
			},
			wantErr: "gap between [100-2000] and [2005-3000]",
		},
		{
			name: "bucket points at unknown table",
			mutate: func(doc *tariff.Document) {
				doc.DisplacementBuckets[3].Table = "cc_missing"
			},
			wantErr: `unknown fee table "cc_missing"`,
		},
		{
			name: "missing expense",
			mutate: func(doc *tariff.Document) {
				delete(doc.Scenarios.Age3to5.Expenses, tariff.KeyDelivery)
			},
			wantErr: `scenarios.age_3_5: missing expense "delivery"`,
		},
		{
			name: "unknown expense",
			mutate: func(doc *tariff.Document) {
				doc.Scenarios.Electric.Expenses["spa_day"] = tariff.Formula{}
			},
			wantErr: "unknown expenses spa_day",
		},
		{
			name:    "missing scenario",
			mutate:  func(doc *tariff.Document) { doc.Scenarios.Under3 = nil },
			wantErr: "scenarios.under_3 is missing",
		},
		{
			name: "electric fee table missing",
			mutate: func(doc *tariff.Document) {
				doc.Scenarios.Electric.FeeTable = "nope"
			},
			wantErr: `electric fee table "nope" does not exist`,
		},
		{
			name: "zero rounding step",
			mutate: func(doc *tariff.Document) {
				step := decimal.Zero
				doc.Rules = &tariff.RulesDocument{RoundingStep: &step}
			},
			wantErr: "rounding step must be positive",
		},
		{
			name: "negative expense",
			mutate: func(doc *tariff.Document) {
				doc.Scenarios.Under3.Expenses[tariff.KeyInspection] = tariff.Fixed(decimal.NewFromInt(-1))
			},
			wantErr: "expense inspection must not be negative",
		},
		{
			name: "overlapping fee rows",
			mutate: func(doc *tariff.Document) {
				doc.FeeTables["cc_3001_3500"] = rangetable.FeeTable{
					Horsepower: []rangetable.FeeRow{
						{From: decimal.NewFromInt(0), To: decimal.NewFromInt(200), Price: decimal.NewFromInt(1)},
						{From: decimal.NewFromInt(100), To: decimal.NewFromInt(300), Price: decimal.NewFromInt(2)},
					},
				}
			},
			wantErr: "ranges overlap",
		},
		{
			name: "unknown power fee bucket",
			mutate: func(doc *tariff.Document) {
				doc.Scenarios.Electric.PowerFee = map[string][]rangetable.FeeRow{
					"over_5": {{From: decimal.Zero, To: decimal.NewFromInt(100), Price: decimal.NewFromInt(1)}},
				}
			},
			wantErr: `unknown age bucket "over_5"`,
		},
		{
			name: "power fee bucket declared twice",
			mutate: func(doc *tariff.Document) {
				row := []rangetable.FeeRow{{From: decimal.Zero, To: decimal.NewFromInt(100), Price: decimal.NewFromInt(1)}}
				doc.Scenarios.Electric.PowerFee = map[string][]rangetable.FeeRow{"3_5": row, "age_3_5": row}
			},
			wantErr: "declared twice",
		},
		{
			name: "overlapping power fee rows",
			mutate: func(doc *tariff.Document) {
				doc.Scenarios.Electric.PowerFee = map[string][]rangetable.FeeRow{
					"under_3": {
						{From: decimal.Zero, To: decimal.NewFromInt(200), Price: decimal.NewFromInt(1)},
						{From: decimal.NewFromInt(100), To: decimal.NewFromInt(300), Price: decimal.NewFromInt(2)},
					},
				}
			},
			wantErr: "ranges overlap",
		},
		{
			name: "power fee outside electric",
			mutate: func(doc *tariff.Document) {
				doc.Scenarios.Age3to5.PowerFee = map[string][]rangetable.FeeRow{
					"age_3_5": {{From: decimal.Zero, To: decimal.NewFromInt(100), Price: decimal.NewFromInt(1)}},
				}
			},
			wantErr: "power_fee is only supported for electric",
		},
		{
			name: "negative investor fee",
			mutate: func(doc *tariff.Document) {
				doc.Scenarios.Under3.Expenses[tariff.KeyInvestorFee] = tariff.Fixed(decimal.NewFromInt(-5))
			},
			wantErr: "expense investor_fee must not be negative",
		},
		{
			name: "investor fee outside under 3",
			mutate: func(doc *tariff.Document) {
				doc.Scenarios.Age3to5.Expenses[tariff.KeyInvestorFee] = tariff.Fixed(decimal.NewFromInt(5))
			},
			wantErr: "unknown expenses investor_fee",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := tarifftest.Document()
			tt.mutate(doc)

			_, err := doc.Build()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !apperrors.IsType(err, apperrors.TypeConfigInvalid) {
				t.Errorf("expected %s, got %v", apperrors.TypeConfigInvalid, err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDocumentLegacyAgeKey(t *testing.T) {
	doc := tarifftest.Document()
	doc.Scenarios.Legacy3to5, doc.Scenarios.Age3to5 = doc.Scenarios.Age3to5, nil

	cfg, err := doc.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Scenarios.Age3to5.Brokerage.Equal(decimal.NewFromInt(115000)) {
		t.Errorf("brokerage = %s, want 115000", cfg.Scenarios.Age3to5.Brokerage)
	}
}

func TestElectricDefaults(t *testing.T) {
	doc := tarifftest.Document()
	doc.Scenarios.Electric.DutyPercent = nil
	doc.Scenarios.Electric.VATPercent = nil

	cfg, err := doc.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Scenarios.Electric.DutyPercent.Equal(decimal.RequireFromString("0.15")) {
		t.Errorf("duty percent = %s, want 0.15", cfg.Scenarios.Electric.DutyPercent)
	}
	if !cfg.Scenarios.Electric.VATPercent.Equal(decimal.RequireFromString("0.2")) {
		t.Errorf("vat percent = %s, want 0.2", cfg.Scenarios.Electric.VATPercent)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	cfg := tarifftest.Config()

	data, err := json.Marshal(tariff.DocumentFrom(cfg))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc tariff.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	rebuilt, err := doc.Build()
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if rebuilt.Fingerprint() != cfg.Fingerprint() {
		t.Error("fingerprint changed across a document round trip")
	}
}

func TestFeeTablePrefersScenarioOverride(t *testing.T) {
	cfg := tarifftest.Config()

	table, origin, ok := cfg.FeeTable(tariff.ScenarioAge3to5, "cc_100_2000")
	if !ok || origin != "age_3_5" {
		t.Fatalf("expected age_3_5 override, got origin=%q ok=%v", origin, ok)
	}
	if !table.Horsepower[0].Price.Equal(decimal.NewFromInt(1174000)) {
		t.Errorf("unexpected override row %+v", table.Horsepower[0])
	}

	_, origin, ok = cfg.FeeTable(tariff.ScenarioAge3to5, "cc_2001_3000")
	if !ok || origin != "default" {
		t.Errorf("tables missing from the override set must come from the default set, got %q", origin)
	}

	_, origin, _ = cfg.FeeTable(tariff.ScenarioUnder3, "cc_100_2000")
	if origin != "default" {
		t.Errorf("under_3 has no override set, got origin %q", origin)
	}
}

func TestCloneIsDeep(t *testing.T) {
	cfg := tarifftest.Config()
	before := cfg.Fingerprint()

	clone := cfg.Clone()
	clone.DutyRanges[0].Rate = decimal.NewFromInt(99)
	clone.FeeTables["cc_100_2000"].Horsepower[0].Price = decimal.NewFromInt(1)
	clone.Scenarios.Electric.ExciseByHorsepower[1].Rate = decimal.NewFromInt(1)
	clone.Version = "changed"

	if cfg.Fingerprint() != before {
		t.Error("mutating the clone changed the original")
	}
}

func TestParseScenario(t *testing.T) {
	tests := map[string]tariff.Scenario{
		"3_5":       tariff.ScenarioAge3to5,
		" Age_3_5 ": tariff.ScenarioAge3to5,
		"under_3":   tariff.ScenarioUnder3,
		"electric":  tariff.ScenarioElectric,
		"over_5":    tariff.ScenarioOver5,
	}
	for in, want := range tests {
		if got := tariff.ParseScenario(in); got != want {
			t.Errorf("ParseScenario(%q) = %q, want %q", in, got, want)
		}
	}
	if tariff.ScenarioOver5.Configured() {
		t.Error("over_5 must not be configured")
	}
}

func TestFormulaApply(t *testing.T) {
	f := tariff.Formula{Percent: decimal.RequireFromString("0.01"), Fixed: decimal.NewFromInt(100)}
	got := f.Apply(decimal.NewFromInt(20000))
	if !got.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Apply = %s, want 300", got)
	}
}

func TestInvestorFeeIsOptional(t *testing.T) {
	doc := tarifftest.Document()
	if _, ok := doc.Scenarios.Under3.Expenses[tariff.KeyInvestorFee]; ok {
		t.Fatal("fixture should not set investor_fee")
	}
	cfg, err := doc.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !cfg.Scenarios.Under3.InvestorFee.IsZero() {
		t.Errorf("investor fee = %+v, want zero", cfg.Scenarios.Under3.InvestorFee)
	}
	if _, ok := tariff.DocumentFrom(cfg).Scenarios.Under3.Expenses[tariff.KeyInvestorFee]; ok {
		t.Error("a zero investor fee must not be written back")
	}

	doc.Scenarios.Under3.Expenses[tariff.KeyInvestorFee] = tariff.Fixed(decimal.NewFromInt(300))
	cfg, err = doc.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	lines := cfg.Scenarios.Under3.Lines()
	if last := lines[len(lines)-1]; last.Key != tariff.KeyInvestorFee || last.Title != "Investor fee" {
		t.Errorf("last under_3 line = %+v", last)
	}
}
