package tariff

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"import-cost/core/rangetable"
	apperrors "import-cost/internal/errors"
)

const versionDateLayout = "2006_01_02"

// Power metric names used in templates
const (
	MetricKilowatt   = "kilowatt"
	MetricHorsepower = "horsepower"
)

// ApplyStats summarizes one template application
type ApplyStats struct {
	Updated int
	Added   int
	Skipped int
	Errored int

	// Failures holds one PATCH_LINE_ERROR per errored line
	Failures []*apperrors.Error

	// Version is the configuration version after the batch
	Version string
}

// Changed reports whether any row was written
func (s ApplyStats) Changed() bool {
	return s.Updated+s.Added > 0
}

// ApplyTemplate rewrites fee rows of cfg in place from line-oriented records
// "age_bucket,table_name,power_metric,from,to,price". Malformed lines are
// counted and never abort the batch. The version is bumped when anything changed.
// cfg must not be shared; Store.ApplyTemplate works on a clone.
func ApplyTemplate(cfg *Configuration, content string, now time.Time) ApplyStats {
	var stats ApplyStats

	scanner := bufio.NewScanner(strings.NewReader(content))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := splitTemplateLine(line)
		if strings.EqualFold(fields[0], "age_bucket") {
			continue
		}
		if len(fields) < 6 {
			stats.Skipped++
			continue
		}
		metric, ok := parseMetric(fields[2])
		if !ok {
			stats.Skipped++
			continue
		}

		added, err := applyTemplateRow(cfg, fields, metric)
		if err != nil {
			stats.Errored++
			stats.Failures = append(stats.Failures, apperrors.PatchLine(lineNo, err.Error()))
			continue
		}
		if added {
			stats.Added++
		} else {
			stats.Updated++
		}
	}
	if err := scanner.Err(); err != nil {
		stats.Errored++
		stats.Failures = append(stats.Failures, apperrors.PatchLine(lineNo+1, err.Error()))
	}

	if stats.Changed() {
		cfg.Version = NextVersion(cfg.Version, now)
	}
	stats.Version = cfg.Version
	return stats
}

func splitTemplateLine(line string) []string {
	sep := ","
	switch {
	case strings.Contains(line, "\t"):
		sep = "\t"
	case strings.Contains(line, ";"):
		sep = ";"
	}
	parts := strings.Split(line, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMetric(s string) (string, bool) {
	switch strings.ToLower(s) {
	case "kilowatt", "kw":
		return MetricKilowatt, true
	case "horsepower", "hp":
		return MetricHorsepower, true
	default:
		return "", false
	}
}

// feeSetFor returns the fee table set addressed by an age bucket, creating it when absent
func (c *Configuration) feeSetFor(bucket string) (FeeTableSet, error) {
	var slot *FeeTableSet
	switch ParseScenario(bucket) {
	case "", "default":
		slot = &c.FeeTables
	case ScenarioUnder3:
		slot = &c.FeeTablesUnder3
	case ScenarioAge3to5:
		slot = &c.FeeTables3to5
	case ScenarioElectric:
		slot = &c.FeeTablesElectric
	default:
		return nil, fmt.Errorf("unknown age bucket %q", bucket)
	}
	if *slot == nil {
		*slot = make(FeeTableSet)
	}
	return *slot, nil
}

func applyTemplateRow(cfg *Configuration, fields []string, metric string) (added bool, err error) {
	set, err := cfg.feeSetFor(fields[0])
	if err != nil {
		return false, err
	}
	name := fields[1]
	if name == "" {
		return false, fmt.Errorf("empty table name")
	}

	from, err := parseTemplateNumber("from", fields[3])
	if err != nil {
		return false, err
	}
	to, err := parseTemplateNumber("to", fields[4])
	if err != nil {
		return false, err
	}
	price, err := parseTemplateNumber("price", fields[5])
	if err != nil {
		return false, err
	}
	if to.LessThan(from) {
		return false, fmt.Errorf("invalid range [%s-%s]", from, to)
	}
	if price.IsNegative() {
		return false, fmt.Errorf("negative price %s", price)
	}

	table := set[name]
	rows := table.Horsepower
	if metric == MetricKilowatt {
		rows = table.Kilowatt
	}

	updated := append(rangetable.FeeRows(nil), rows...)
	found := false
	for i := range updated {
		if updated[i].From.Equal(from) && updated[i].To.Equal(to) {
			updated[i].Price = price
			found = true
			break
		}
	}
	if !found {
		updated = append(updated, rangetable.FeeRow{From: from, To: to, Price: price})
	}

	validated, err := rangetable.NewFeeRows(name+"."+metric, updated)
	if err != nil {
		return false, err
	}
	if metric == MetricKilowatt {
		table.Kilowatt = validated
	} else {
		table.Horsepower = validated
	}
	set[name] = table
	return !found, nil
}

func parseTemplateNumber(field, s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", field, s)
	}
	return v, nil
}

// NextVersion returns the date-stamped version that follows current.
// A second bump on the same day appends a counter: 2024_05_01, 2024_05_01.1, ...
func NextVersion(current string, now time.Time) string {
	base := now.Format(versionDateLayout)
	if current == base {
		return base + ".1"
	}
	if suffix, ok := strings.CutPrefix(current, base+"."); ok {
		if n, err := strconv.Atoi(suffix); err == nil && n > 0 {
			return fmt.Sprintf("%s.%d", base, n+1)
		}
	}
	return base
}

// BuildTemplate exports every fee row of cfg in the template format
func BuildTemplate(cfg *Configuration) string {
	var b strings.Builder
	b.WriteString("# import-cost utilization fee template\n")
	fmt.Fprintf(&b, "# version: %s\n", cfg.Version)
	b.WriteString("# age_bucket: default | under_3 | age_3_5 | electric; power_metric: kilowatt | horsepower\n")
	b.WriteString("age_bucket,table_name,power_metric,from,to,price\n")

	sets := []struct {
		bucket string
		set    FeeTableSet
	}{
		{"default", cfg.FeeTables},
		{string(ScenarioUnder3), cfg.FeeTablesUnder3},
		{string(ScenarioAge3to5), cfg.FeeTables3to5},
		{string(ScenarioElectric), cfg.FeeTablesElectric},
	}
	for _, s := range sets {
		for _, name := range s.set.Names() {
			table := s.set[name]
			writeTemplateRows(&b, s.bucket, name, MetricKilowatt, table.Kilowatt)
			writeTemplateRows(&b, s.bucket, name, MetricHorsepower, table.Horsepower)
		}
	}
	return b.String()
}

func writeTemplateRows(b *strings.Builder, bucket, name, metric string, rows rangetable.FeeRows) {
	for _, r := range rows {
		fmt.Fprintf(b, "%s,%s,%s,%s,%s,%s\n", bucket, name, metric, r.From, r.To, r.Price)
	}
}
