// Package lookup resolves duty, utilization fee and excise amounts from a
// tariff snapshot. Out-of-range inputs never fail a lookup: they clamp to the
// nearest boundary row, log a warning and leave a note on the result.
package lookup

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"import-cost/core/rangetable"
	"import-cost/core/tariff"
	apperrors "import-cost/internal/errors"
	"import-cost/internal/logging"
)

// HorsepowerPerKilowatt converts metric power units
var HorsepowerPerKilowatt = decimal.RequireFromString("1.35962")

// Power metric names
const (
	MetricKilowatt   = tariff.MetricKilowatt
	MetricHorsepower = tariff.MetricHorsepower
)

// Resolver performs lookups against one configuration snapshot
type Resolver struct {
	cfg *tariff.Configuration
	log *zap.Logger
}

// NewResolver creates a resolver; a nil logger uses the global one
func NewResolver(cfg *tariff.Configuration, log *zap.Logger) *Resolver {
	return &Resolver{cfg: cfg, log: logging.OrDefault(log, "lookup")}
}

// DutyResult is a resolved displacement duty
type DutyResult struct {
	AmountEUR decimal.Decimal
	Rate      decimal.Decimal
	Range     rangetable.DutyRange
	Clamped   bool
	Bound     rangetable.Bound
	Notes     []string
}

// Duty returns displacement × rate for the range containing cc
func (r *Resolver) Duty(cc int) (DutyResult, error) {
	m, ok := r.cfg.DutyRanges.Lookup(cc)
	if !ok {
		return DutyResult{}, apperrors.ConfigInvalid("duty_ranges is empty")
	}

	res := DutyResult{
		AmountEUR: decimal.NewFromInt(int64(cc)).Mul(m.Row.Rate),
		Rate:      m.Row.Rate,
		Range:     m.Row,
		Clamped:   m.Clamped,
		Bound:     m.Bound,
	}
	if m.Clamped {
		res.Notes = append(res.Notes, r.clamped("duty_ranges", decimal.NewFromInt(int64(cc)), m.Bound,
			decimal.NewFromInt(int64(m.Row.From)), decimal.NewFromInt(int64(m.Row.To))))
	}
	return res, nil
}

// FeeResult is a resolved utilization fee
type FeeResult struct {
	Amount decimal.Decimal
	Table  string

	// Origin is the fee table set the table came from: a scenario key or "default"
	Origin  string
	Metric  string
	Row     rangetable.FeeRow
	Clamped bool
	Notes   []string
}

// UtilizationFee resolves the fee for a scenario. kw and hp may be nil.
func (r *Resolver) UtilizationFee(s tariff.Scenario, cc int, kw, hp *decimal.Decimal) (FeeResult, error) {
	var res FeeResult

	name := ""
	if s == tariff.ScenarioElectric {
		name = r.cfg.Scenarios.Electric.FeeTable
	}
	if name == "" {
		m, ok := r.cfg.DisplacementBuckets.Lookup(cc)
		if !ok {
			return res, apperrors.ConfigInvalid("displacement_buckets is empty")
		}
		if m.Clamped {
			res.Clamped = true
			res.Notes = append(res.Notes, r.clamped("displacement_buckets", decimal.NewFromInt(int64(cc)), m.Bound,
				decimal.NewFromInt(int64(m.Row.From)), decimal.NewFromInt(int64(m.Row.To))))
		}
		name = m.Row.Table
	}

	table, origin, ok := r.cfg.FeeTable(s, name)
	if !ok {
		return res, apperrors.ConfigInvalid("fee table %q does not exist", name).WithContext("table", name)
	}
	res.Table = name
	res.Origin = origin

	label := origin + "." + name
	row, metric, clamped, note := r.pickFeeRow(label, table, kw, hp)
	res.Row = row
	res.Metric = metric
	res.Amount = row.Price.Truncate(0)
	if clamped {
		res.Clamped = true
	}
	if note != "" {
		res.Notes = append(res.Notes, note)
	}
	return res, nil
}

// pickFeeRow prefers a containing kilowatt row, then a containing horsepower
// row, then clamps on the kilowatt view. Without any power it takes the first row.
func (r *Resolver) pickFeeRow(label string, table rangetable.FeeTable, kw, hp *decimal.Decimal) (rangetable.FeeRow, string, bool, string) {
	hasKW := positive(kw)
	hasHP := positive(hp)

	if hasKW {
		if m, ok := table.Kilowatt.Lookup(*kw); ok && !m.Clamped {
			return m.Row, MetricKilowatt, false, ""
		}
		if hasHP {
			if m, ok := table.Horsepower.Lookup(*hp); ok && !m.Clamped {
				return m.Row, MetricHorsepower, false, ""
			}
		}
		if m, ok := table.Kilowatt.Lookup(*kw); ok {
			return m.Row, MetricKilowatt, true, r.clamped(label+"."+MetricKilowatt, *kw, m.Bound, m.Row.From, m.Row.To)
		}
		// Horsepower-only table: search it with the known or derived horsepower.
		power := kw.Mul(HorsepowerPerKilowatt)
		if hasHP {
			power = *hp
		}
		return r.pickSingle(label, MetricHorsepower, table.Horsepower, power)
	}

	if hasHP {
		if len(table.Horsepower) > 0 {
			return r.pickSingle(label, MetricHorsepower, table.Horsepower, *hp)
		}
		return r.pickSingle(label, MetricKilowatt, table.Kilowatt, hp.Div(HorsepowerPerKilowatt))
	}

	rows, metric := table.Horsepower, MetricHorsepower
	if len(rows) == 0 {
		rows, metric = table.Kilowatt, MetricKilowatt
	}
	r.log.Warn("missing power, using first fee row",
		zap.String("table", label),
		zap.String("metric", metric),
		zap.String("from", rows[0].From.String()),
		zap.String("to", rows[0].To.String()),
	)
	return rows[0], metric, true, fmt.Sprintf("%s: no power given, used first %s row [%s-%s]", label, metric, rows[0].From, rows[0].To)
}

func (r *Resolver) pickSingle(label, metric string, rows rangetable.FeeRows, power decimal.Decimal) (rangetable.FeeRow, string, bool, string) {
	m, _ := rows.Lookup(power)
	if !m.Clamped {
		return m.Row, metric, false, ""
	}
	return m.Row, metric, true, r.clamped(label+"."+metric, power, m.Bound, m.Row.From, m.Row.To)
}

// ExciseResult is a resolved electric excise
type ExciseResult struct {
	Amount  decimal.Decimal
	Rate    decimal.Decimal
	Power   decimal.Decimal
	Metric  string
	Clamped bool
	Notes   []string
}

// Excise returns rate × power from the electric excise tables. The kilowatt
// table is used when kilowatts are known and the table has rows; otherwise the
// horsepower table, deriving horsepower from kilowatts when needed.
func (r *Resolver) Excise(kw, hp *decimal.Decimal) (ExciseResult, error) {
	el := r.cfg.Scenarios.Electric

	if positive(kw) && len(el.ExciseByKilowatt) > 0 {
		return r.excise("excise_by_kilowatt", MetricKilowatt, el.ExciseByKilowatt, *kw), nil
	}

	var power decimal.Decimal
	var notes []string
	switch {
	case positive(hp):
		power = *hp
	case positive(kw):
		power = kw.Mul(HorsepowerPerKilowatt)
		notes = append(notes, fmt.Sprintf("excise: horsepower derived from %s kW as %s hp", kw, power.StringFixed(2)))
	default:
		return ExciseResult{}, apperrors.MissingInput("power", "power_kw or power_hp is required for electric vehicles")
	}

	if len(el.ExciseByHorsepower) == 0 {
		return ExciseResult{
			Amount: decimal.Zero,
			Power:  power,
			Metric: MetricHorsepower,
			Notes:  append(notes, "excise: no excise table configured, excise is zero"),
		}, nil
	}

	res := r.excise("excise_by_horsepower", MetricHorsepower, el.ExciseByHorsepower, power)
	res.Notes = append(notes, res.Notes...)
	return res, nil
}

func (r *Resolver) excise(table, metric string, rows rangetable.ExciseTable, power decimal.Decimal) ExciseResult {
	m, _ := rows.Lookup(power)
	res := ExciseResult{
		Amount:  m.Row.Rate.Mul(power),
		Rate:    m.Row.Rate,
		Power:   power,
		Metric:  metric,
		Clamped: m.Clamped,
	}
	if m.Clamped {
		res.Notes = append(res.Notes, r.clamped("electric."+table, power, m.Bound, m.Row.From, m.Row.To))
	}
	return res
}

// PowerFeeResult is a matched electric power fee
type PowerFeeResult struct {
	Amount decimal.Decimal
	Bucket tariff.Scenario
	Power  decimal.Decimal
	Row    rangetable.FeeRow
	Notes  []string
}

// PowerFee finds the electric power fee for an age bucket by horsepower,
// deriving horsepower from kilowatts when needed. It never clamps: a vehicle
// outside every row of its bucket pays no power fee and ok is false.
func (r *Resolver) PowerFee(bucket tariff.Scenario, kw, hp *decimal.Decimal) (res PowerFeeResult, ok bool) {
	rows := r.cfg.Scenarios.Electric.PowerFee[bucket]
	if len(rows) == 0 {
		return PowerFeeResult{Bucket: bucket}, false
	}

	res.Bucket = bucket
	switch {
	case positive(hp):
		res.Power = *hp
	case positive(kw):
		res.Power = kw.Mul(HorsepowerPerKilowatt)
		res.Notes = append(res.Notes, fmt.Sprintf("power fee: horsepower derived from %s kW as %s hp", kw, res.Power.StringFixed(2)))
	default:
		return res, false
	}

	m, found := rows.Lookup(res.Power)
	if !found || m.Clamped {
		r.log.Debug("no power fee row",
			zap.String("bucket", string(bucket)),
			zap.String("hp", res.Power.String()),
		)
		return res, false
	}
	res.Row = m.Row
	res.Amount = m.Row.Price
	return res, true
}

// clamped logs a clamping event and returns the matching assumption note
func (r *Resolver) clamped(table string, value decimal.Decimal, bound rangetable.Bound, from, to decimal.Decimal) string {
	r.log.Warn("value outside table, clamped to boundary row",
		zap.String("table", table),
		zap.String("value", value.String()),
		zap.String("bound", bound.String()),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	return fmt.Sprintf("%s: %s is %s, used [%s-%s]", table, value, bound, from, to)
}

func positive(v *decimal.Decimal) bool {
	return v != nil && v.IsPositive()
}
