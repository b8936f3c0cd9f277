package tariff_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"import-cost/core/tariff"
	"import-cost/core/tariff/tarifftest"
	apperrors "import-cost/internal/errors"
)

var patchDay = time.Date(2024, time.June, 3, 12, 0, 0, 0, time.UTC)

func TestApplyTemplate(t *testing.T) {
	cfg := tarifftest.Config()

	content := strings.Join([]string{
		"# utilization fee patch",
		"",
		"default,cc_100_2000,hp,0,160,700000",
		"age_3_5;cc_2001_3000;horsepower;0;160;2500000",
		"under_3\tcc_3001_3500\tkw\t0\t200\t3300000",
		"default,cc_100_2000,hp,300,200,1",
		"default,cc_100_2000,hp,0,150,1",
		"default,cc_100_2000,torque,0,160,1",
		"default,cc_100_2000,hp,0",
		"over_9,cc_100_2000,hp,0,160,1",
		"3_5,cc_100_2000,hp,abc,160,1",
		"default,cc_3501_10000,hp,0,1000,-5",
	}, "\n")

	stats := tariff.ApplyTemplate(cfg, content, patchDay)

	if stats.Updated != 1 || stats.Added != 2 {
		t.Errorf("updated=%d added=%d, want 1 and 2", stats.Updated, stats.Added)
	}
	if stats.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", stats.Skipped)
	}
	if stats.Errored != 5 || len(stats.Failures) != 5 {
		t.Fatalf("errored = %d (failures %d), want 5", stats.Errored, len(stats.Failures))
	}
	for _, f := range stats.Failures {
		if f.Type != apperrors.TypePatchLine {
			t.Errorf("failure type = %s, want %s", f.Type, apperrors.TypePatchLine)
		}
	}
	if line := stats.Failures[0].Context["line"]; line != 6 {
		t.Errorf("first failure line = %v, want 6", line)
	}
	if stats.Version != "2024_06_03" || cfg.Version != "2024_06_03" {
		t.Errorf("version = %q, want 2024_06_03", stats.Version)
	}

	if got := cfg.FeeTables["cc_100_2000"].Horsepower[0].Price; !got.Equal(decimal.NewFromInt(700000)) {
		t.Errorf("updated price = %s, want 700000", got)
	}
	created, ok := cfg.FeeTables3to5["cc_2001_3000"]
	if !ok || len(created.Horsepower) != 1 {
		t.Fatalf("expected a new age_3_5 table, got %+v", cfg.FeeTables3to5)
	}
	if table, ok := cfg.FeeTablesUnder3["cc_3001_3500"]; !ok || len(table.Kilowatt) != 1 {
		t.Errorf("expected a new under_3 kilowatt row, got %+v", cfg.FeeTablesUnder3)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("patched configuration must stay valid: %v", err)
	}
}

func TestApplyTemplateWithoutChangesKeepsVersion(t *testing.T) {
	cfg := tarifftest.Config()
	stats := tariff.ApplyTemplate(cfg, "# nothing\nbroken line\n", patchDay)

	if stats.Changed() {
		t.Error("no row should change")
	}
	if stats.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", stats.Skipped)
	}
	if cfg.Version != tarifftest.Version {
		t.Errorf("version bumped to %q without changes", cfg.Version)
	}
}

func TestBuildTemplateRoundTrip(t *testing.T) {
	cfg := tarifftest.Config()
	tmpl := tariff.BuildTemplate(cfg)

	if !strings.HasPrefix(tmpl, "#") {
		t.Error("template must start with a comment header")
	}

	clone := cfg.Clone()
	stats := tariff.ApplyTemplate(clone, tmpl, patchDay)
	if stats.Added != 0 || stats.Skipped != 0 || stats.Errored != 0 {
		t.Errorf("re-applying an export must only update rows, got %+v", stats)
	}

	rows := 0
	for _, set := range []tariff.FeeTableSet{cfg.FeeTables, cfg.FeeTablesUnder3, cfg.FeeTables3to5, cfg.FeeTablesElectric} {
		for _, table := range set {
			rows += len(table.Kilowatt) + len(table.Horsepower)
		}
	}
	if stats.Updated != rows {
		t.Errorf("updated = %d, want %d", stats.Updated, rows)
	}
}

func TestNextVersion(t *testing.T) {
	tests := []struct {
		current string
		want    string
	}{
		{current: "2024_05_01", want: "2024_06_03"},
		{current: "", want: "2024_06_03"},
		{current: "2024_06_03", want: "2024_06_03.1"},
		{current: "2024_06_03.1", want: "2024_06_03.2"},
		{current: "2024_06_03.x", want: "2024_06_03"},
	}
	for _, tt := range tests {
		t.Run(tt.current, func(t *testing.T) {
			if got := tariff.NextVersion(tt.current, patchDay); got != tt.want {
				t.Errorf("NextVersion(%q) = %q, want %q", tt.current, got, tt.want)
			}
		})
	}
}
