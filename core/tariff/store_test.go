package tariff_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"import-cost/core/rangetable"
	"import-cost/core/tariff"
	"import-cost/core/tariff/tarifftest"
	apperrors "import-cost/internal/errors"
)

func newStore(t *testing.T) *tariff.Store {
	t.Helper()
	store, err := tariff.NewStore(tarifftest.Config(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestStoreReplaceKeepsOldSnapshotOnFailure(t *testing.T) {
	store := newStore(t)
	before := store.Current()

	broken := before.Clone()
	broken.Version = "broken"
	broken.DisplacementBuckets[0].Table = "nope"

	err := store.Replace(broken)
	if !apperrors.IsType(err, apperrors.TypeConfigInvalid) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if store.Current() != before {
		t.Error("failed replace must keep the previous snapshot")
	}
}

func TestStoreReplaceRunsHooks(t *testing.T) {
	store := newStore(t)

	var seen []string
	store.OnReplace(func(cfg *tariff.Configuration) {
		seen = append(seen, cfg.Version)
	})

	next := store.Current().Clone()
	next.Version = "2024_07_01"
	if err := store.Replace(next); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if store.Version() != "2024_07_01" {
		t.Errorf("version = %q, want 2024_07_01", store.Version())
	}
	if len(seen) != 1 || seen[0] != "2024_07_01" {
		t.Errorf("hooks saw %v", seen)
	}
}

func TestStoreApplyTemplateIsCopyOnWrite(t *testing.T) {
	store := newStore(t)
	before := store.Current()

	stats, err := store.ApplyTemplate("default,cc_100_2000,hp,0,160,700000", patchDay)
	if err != nil {
		t.Fatalf("ApplyTemplate: %v", err)
	}
	if stats.Updated != 1 {
		t.Errorf("updated = %d, want 1", stats.Updated)
	}

	after := store.Current()
	if after == before {
		t.Fatal("store must publish a new snapshot")
	}
	if after.Version != "2024_06_03" {
		t.Errorf("version = %q, want 2024_06_03", after.Version)
	}
	if !before.FeeTables["cc_100_2000"].Horsepower[0].Price.Equal(decimal.NewFromInt(667400)) {
		t.Error("old snapshot was mutated in place")
	}
	if !after.FeeTables["cc_100_2000"].Horsepower[0].Price.Equal(decimal.NewFromInt(700000)) {
		t.Error("new snapshot does not carry the patched price")
	}
}

func TestStoreApplyTemplateWithoutChanges(t *testing.T) {
	store := newStore(t)
	before := store.Current()

	stats, err := store.ApplyTemplate("over_9,cc_100_2000,hp,0,160,1", patchDay)
	if err != nil {
		t.Fatalf("ApplyTemplate: %v", err)
	}
	if stats.Errored != 1 {
		t.Errorf("errored = %d, want 1", stats.Errored)
	}
	if store.Current() != before {
		t.Error("a batch without changes must not swap the snapshot")
	}
}

func TestStoreConcurrentReaders(t *testing.T) {
	store := newStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cfg := store.Current()
				if cfg.Version == "" || len(cfg.DutyRanges) == 0 {
					t.Error("reader observed an incomplete snapshot")
					return
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		if _, err := store.ApplyTemplate("default,cc_100_2000,hp,0,160,70000"+string(rune('0'+i)), patchDay); err != nil {
			t.Errorf("ApplyTemplate: %v", err)
		}
	}
	wg.Wait()

	if store.Version() != "2024_06_03.4" {
		t.Errorf("version after five patches = %q, want 2024_06_03.4", store.Version())
	}
}

func TestNewStoreRejectsNil(t *testing.T) {
	if _, err := tariff.NewStore(nil, nil); err == nil {
		t.Error("expected error for nil configuration")
	}
}

func TestStoreRejectsUnorderedTables(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *tariff.Configuration)
	}{
		{
			name: "duty ranges",
			mutate: func(cfg *tariff.Configuration) {
				cfg.DutyRanges = rangetable.DutyRanges{
					{From: 1001, To: 8000, Rate: decimal.RequireFromString("3.6")},
					{From: 0, To: 1000, Rate: decimal.RequireFromString("1.5")},
				}
			},
		},
		{
			name: "displacement buckets",
			mutate: func(cfg *tariff.Configuration) {
				b := cfg.DisplacementBuckets
				b[0], b[1] = b[1], b[0]
			},
		},
		{
			name: "fee rows",
			mutate: func(cfg *tariff.Configuration) {
				hp := cfg.FeeTables["cc_2001_3000"].Horsepower
				hp[0], hp[1] = hp[1], hp[0]
			},
		},
		{
			name: "excise rows",
			mutate: func(cfg *tariff.Configuration) {
				ex := cfg.Scenarios.Electric.ExciseByHorsepower
				ex[0], ex[1] = ex[1], ex[0]
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tarifftest.Config().Clone()
			tt.mutate(cfg)

			_, err := tariff.NewStore(cfg, zap.NewNop())
			if !apperrors.IsType(err, apperrors.TypeConfigInvalid) {
				t.Fatalf("NewStore: expected configuration error, got %v", err)
			}
			if !strings.Contains(err.Error(), "out of order") {
				t.Errorf("error %q does not mention row order", err)
			}

			store := newStore(t)
			before := store.Current()
			if err := store.Replace(cfg); err == nil {
				t.Fatal("Replace accepted an unordered table")
			}
			if store.Current() != before {
				t.Error("failed replace must keep the previous snapshot")
			}
		})
	}
}
