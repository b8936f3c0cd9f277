// Package estimate composes the scenario pipelines into an itemized,
// currency-tagged breakdown and a ceiling-rounded total.
package estimate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"import-cost/core/lookup"
	"import-cost/core/scenario"
	"import-cost/core/tariff"
	apperrors "import-cost/internal/errors"
	"import-cost/internal/logging"
	"import-cost/internal/validation"
)

// Engine computes estimates. It holds no per-call state and is safe for concurrent use.
type Engine struct {
	log        *zap.Logger
	classifier *scenario.Classifier
}

// NewEngine creates an engine on the wall clock
func NewEngine(log *zap.Logger) *Engine {
	log = logging.OrDefault(log, "estimate")
	return &Engine{log: log, classifier: scenario.NewClassifier(log)}
}

// NewEngineWithClassifier creates an engine with a caller-supplied classifier
func NewEngineWithClassifier(log *zap.Logger, c *scenario.Classifier) *Engine {
	return &Engine{log: logging.OrDefault(log, "estimate"), classifier: c}
}

// Estimate runs one request against cfg. Any error aborts the whole call.
func (e *Engine) Estimate(cfg *tariff.Configuration, req Request) (*Result, error) {
	if cfg == nil {
		return nil, apperrors.ConfigInvalid("no configuration loaded")
	}
	if err := validation.Validate(req); err != nil {
		return nil, err
	}

	sc, err := e.classifier.Classify(req.classifierInput(), cfg.Rules)
	if err != nil {
		return nil, err
	}
	if !sc.Configured() {
		return nil, apperrors.UnresolvedScenario(string(sc))
	}

	b := &builder{
		cfg:      cfg,
		req:      req,
		resolver: lookup.NewResolver(cfg, e.log),
		local:    cfg.Rules.LocalCurrency,
		now:      e.now(),
		result: &Result{
			Scenario:      sc,
			ConfigVersion: cfg.Version,
			Currency:      cfg.Rules.LocalCurrency,
		},
	}
	if requested := tariff.ParseScenario(req.ScenarioOverride); sc == tariff.ScenarioElectric && requested != "" && requested != sc {
		b.note("vehicle is electric, requested scenario %s was ignored", requested)
	}
	if err := b.exchangeRate(); err != nil {
		return nil, err
	}

	switch sc {
	case tariff.ScenarioUnder3:
		err = b.under3()
	case tariff.ScenarioAge3to5:
		err = b.age3to5()
	case tariff.ScenarioElectric:
		err = b.electric()
	}
	if err != nil {
		return nil, err
	}

	res := b.finish()
	e.log.Debug("estimate computed",
		zap.String("scenario", string(res.Scenario)),
		zap.String("version", res.ConfigVersion),
		zap.String("total", res.Total.String()),
		zap.Int("assumptions", len(res.Assumptions)),
	)
	return res, nil
}

func (e *Engine) now() time.Time {
	if e.classifier != nil && e.classifier.Now != nil {
		return e.classifier.Now()
	}
	return time.Now()
}

func (r Request) classifierInput() scenario.Input {
	return scenario.Input{
		Override:          r.ScenarioOverride,
		DisplacementCC:    r.DisplacementCC,
		PowerKW:           r.PowerKW,
		PowerHP:           r.PowerHP,
		IsElectric:        r.IsElectric,
		FuelType:          r.FuelType,
		RegistrationYear:  r.RegistrationYear,
		RegistrationMonth: r.RegistrationMonth,
	}
}

// builder accumulates one estimate
type builder struct {
	cfg      *tariff.Configuration
	req      Request
	resolver *lookup.Resolver
	local    tariff.Currency
	rate     decimal.Decimal
	now      time.Time

	result     *Result
	localTotal decimal.Decimal
}

func (b *builder) exchangeRate() error {
	switch {
	case b.req.ExchangeRate.IsPositive():
		b.rate = b.req.ExchangeRate
	case b.cfg.Rules.DefaultExchangeRate.IsPositive():
		b.rate = b.cfg.Rules.DefaultExchangeRate
		b.note("exchange rate not given, used tariff default %s", b.rate)
	default:
		return apperrors.MissingInput("exchange_rate", "exchange rate is required")
	}
	b.result.ExchangeRateUsed = b.rate
	return nil
}

func (b *builder) note(format string, args ...interface{}) {
	b.result.Assumptions = append(b.result.Assumptions, fmt.Sprintf(format, args...))
}

func (b *builder) notes(n []string) {
	b.result.Assumptions = append(b.result.Assumptions, n...)
}

func (b *builder) add(key, title string, amount decimal.Decimal, currency tariff.Currency) {
	b.result.Breakdown = append(b.result.Breakdown, CostItem{Key: key, Title: title, Amount: amount, Currency: currency})
}

// addLocal appends a local-currency line and counts it toward the total
func (b *builder) addLocal(key string, amount decimal.Decimal) {
	b.add(key, localTitles[key], amount, b.local)
	b.localTotal = b.localTotal.Add(amount)
}

// eurLines adds the net price and the scenario's EUR expense lines, then
// converts their sum to local currency in one multiplication.
func (b *builder) eurLines(lines []tariff.ExpenseLine) {
	net := b.req.NetPriceEUR
	b.add(KeyPriceNet, localTitles[KeyPriceNet], net, tariff.CurrencyEUR)

	accumulated := net
	for _, line := range lines {
		base := net
		if line.OnAccumulated {
			base = accumulated
		}
		amount := line.Formula.Apply(base)
		accumulated = accumulated.Add(amount)
		b.add(line.Key, line.Title, amount, tariff.CurrencyEUR)
	}

	b.result.SubtotalEUR = accumulated
	b.result.SubtotalLocal = accumulated.Mul(b.rate)
	b.localTotal = b.result.SubtotalLocal
}

func (b *builder) displacement() (int, error) {
	if b.req.DisplacementCC == nil || *b.req.DisplacementCC <= 0 {
		return 0, apperrors.MissingInput("displacement_cc", "engine displacement is required for combustion vehicles").
			WithContext("scenario", string(b.result.Scenario))
	}
	return *b.req.DisplacementCC, nil
}

func (b *builder) utilizationFee(cc int) error {
	fee, err := b.resolver.UtilizationFee(b.result.Scenario, cc, b.req.PowerKW, b.req.PowerHP)
	if err != nil {
		return err
	}
	b.notes(fee.Notes)
	b.addLocal(KeyUtilizationFee, fee.Amount)
	return nil
}

// under3 never adds duty, VAT or local customs fees
func (b *builder) under3() error {
	cc, err := b.displacement()
	if err != nil {
		return err
	}
	b.eurLines(b.cfg.Scenarios.Under3.Lines())
	return b.utilizationFee(cc)
}

func (b *builder) age3to5() error {
	cc, err := b.displacement()
	if err != nil {
		return err
	}
	sc := b.cfg.Scenarios.Age3to5
	b.eurLines(sc.Lines())

	b.addLocal(KeyCustomsClearanceFee, sc.CustomsClearanceFee)
	b.addLocal(KeyBrokerage, sc.Brokerage)

	duty, err := b.resolver.Duty(cc)
	if err != nil {
		return err
	}
	b.notes(duty.Notes)
	b.addLocal(KeyDuty, duty.AmountEUR.Mul(b.rate))

	return b.utilizationFee(cc)
}

func (b *builder) electric() error {
	if !positive(b.req.PowerKW) && !positive(b.req.PowerHP) {
		return apperrors.MissingInput("power", "power_kw or power_hp is required for electric vehicles").
			WithContext("scenario", string(tariff.ScenarioElectric))
	}
	sc := b.cfg.Scenarios.Electric
	b.eurLines(sc.Lines())

	b.addLocal(KeyBrokerage, sc.Brokerage)
	b.addLocal(KeyCustomsClearanceFee, sc.CustomsClearanceFee)

	customsValue := b.req.NetPriceEUR.Mul(b.rate)
	b.addLocal(KeyImportDuty, customsValue.Mul(sc.DutyPercent))

	excise, err := b.resolver.Excise(b.req.PowerKW, b.req.PowerHP)
	if err != nil {
		return err
	}
	b.notes(excise.Notes)
	b.addLocal(KeyExcise, excise.Amount)

	if len(sc.PowerFee) > 0 {
		b.powerFee()
	}

	b.addLocal(KeyVAT, customsValue.Add(excise.Amount).Mul(sc.VATPercent))

	cc := 0
	if b.req.DisplacementCC != nil {
		cc = *b.req.DisplacementCC
	}
	return b.utilizationFee(cc)
}

// powerFee adds the age-bucket power fee when a row matches. It is not part of the VAT base.
func (b *builder) powerFee() {
	bucket := tariff.ScenarioUnder3
	if b.req.RegistrationYear != nil && b.req.RegistrationMonth != nil {
		if scenario.AgeMonths(b.now, *b.req.RegistrationYear, *b.req.RegistrationMonth) >= scenario.Under3Months {
			bucket = tariff.ScenarioAge3to5
		}
	} else {
		b.note("power fee: no registration date, assumed younger than %d months", scenario.Under3Months)
	}

	fee, ok := b.resolver.PowerFee(bucket, b.req.PowerKW, b.req.PowerHP)
	if !ok {
		return
	}
	b.notes(fee.Notes)
	b.addLocal(KeyPowerFee, fee.Amount)
}

func (b *builder) finish() *Result {
	res := b.result
	res.UnroundedTotal = b.localTotal
	res.Total = CeilToStep(b.localTotal, b.cfg.Rules.RoundingStep)
	b.add(KeyTotal, TotalTitle, res.Total, b.local)
	return res
}

func positive(v *decimal.Decimal) bool {
	return v != nil && v.IsPositive()
}
