package tariff

import (
	"sort"

	"github.com/shopspring/decimal"

	"import-cost/core/rangetable"
)

// Expense line keys
const (
	KeyBankTransfer          = "bank_transfer"
	KeyPurchaseMarkup        = "purchase_markup"
	KeyInspection            = "inspection"
	KeyDelivery              = "delivery"
	KeyDeliveryToTransit     = "delivery_to_transit"
	KeyTransitCustoms        = "transit_customs"
	KeyCustomsTransferFee    = "customs_transfer_fee"
	KeyDeliveryToDestination = "delivery_to_destination"
	KeyRegistrationDocs      = "registration_docs"
	KeyInsurance             = "insurance"
	KeyInvestorFee           = "investor_fee"
)

// optionalExpenses may be left out of a scenario section; a zero formula emits no line
var optionalExpenses = map[string]bool{
	KeyInvestorFee: true,
}

var lineTitles = map[string]string{
	KeyBankTransfer:          "Bank transfer",
	KeyPurchaseMarkup:        "Purchase markup",
	KeyInspection:            "Inspection",
	KeyDelivery:              "Delivery",
	KeyDeliveryToTransit:     "Delivery to transit country",
	KeyTransitCustoms:        "Transit country customs",
	KeyCustomsTransferFee:    "Customs payment transfer fee",
	KeyDeliveryToDestination: "Delivery to destination",
	KeyRegistrationDocs:      "Registration documents",
	KeyInsurance:             "Insurance and broker commission",
	KeyInvestorFee:           "Investor fee",
}

// Formula is a linear expense: base*Percent + Fixed. Percent is a fraction.
type Formula struct {
	Percent decimal.Decimal `json:"percent" yaml:"percent"`
	Fixed   decimal.Decimal `json:"fixed" yaml:"fixed"`
}

// Apply evaluates the formula against base
func (f Formula) Apply(base decimal.Decimal) decimal.Decimal {
	return base.Mul(f.Percent).Add(f.Fixed)
}

// IsZero reports whether the formula always evaluates to zero
func (f Formula) IsZero() bool {
	return f.Percent.IsZero() && f.Fixed.IsZero()
}

// Fixed returns a formula with only a fixed component
func Fixed(amount decimal.Decimal) Formula {
	return Formula{Fixed: amount}
}

// ExpenseLine is one EUR expense of a scenario, in computation order
type ExpenseLine struct {
	Key     string
	Title   string
	Formula Formula

	// OnAccumulated applies the formula to the net price plus every preceding line
	// instead of the net price alone.
	OnAccumulated bool
}

type expenseField struct {
	key     string
	formula *Formula
}

func linesOf(fields []expenseField) []ExpenseLine {
	lines := make([]ExpenseLine, 0, len(fields))
	for _, f := range fields {
		if optionalExpenses[f.key] && f.formula.IsZero() {
			continue
		}
		lines = append(lines, ExpenseLine{
			Key:           f.key,
			Title:         lineTitles[f.key],
			Formula:       *f.formula,
			OnAccumulated: f.key == KeyCustomsTransferFee,
		})
	}
	return lines
}

// Under3Expenses routes the vehicle through a transit jurisdiction where customs
// are paid in EUR. There are no local flat fees and no duty.
type Under3Expenses struct {
	BankTransfer          Formula
	PurchaseMarkup        Formula
	Inspection            Formula
	DeliveryToTransit     Formula
	TransitCustoms        Formula
	CustomsTransferFee    Formula
	DeliveryToDestination Formula
	RegistrationDocs      Formula
	Insurance             Formula

	// InvestorFee is optional and charged on the net price
	InvestorFee Formula
}

func (e *Under3Expenses) fields() []expenseField {
	return []expenseField{
		{KeyBankTransfer, &e.BankTransfer},
		{KeyPurchaseMarkup, &e.PurchaseMarkup},
		{KeyInspection, &e.Inspection},
		{KeyDeliveryToTransit, &e.DeliveryToTransit},
		{KeyTransitCustoms, &e.TransitCustoms},
		{KeyCustomsTransferFee, &e.CustomsTransferFee},
		{KeyDeliveryToDestination, &e.DeliveryToDestination},
		{KeyRegistrationDocs, &e.RegistrationDocs},
		{KeyInsurance, &e.Insurance},
		{KeyInvestorFee, &e.InvestorFee},
	}
}

// Lines returns the EUR expense lines in computation order
func (e Under3Expenses) Lines() []ExpenseLine {
	return linesOf(e.fields())
}

// Age3to5Expenses is a direct delivery with two flat local fees
type Age3to5Expenses struct {
	BankTransfer   Formula
	PurchaseMarkup Formula
	Inspection     Formula
	Delivery       Formula
	Insurance      Formula

	// CustomsClearanceFee and Brokerage are flat amounts in local currency
	CustomsClearanceFee decimal.Decimal
	Brokerage           decimal.Decimal
}

func (e *Age3to5Expenses) fields() []expenseField {
	return []expenseField{
		{KeyBankTransfer, &e.BankTransfer},
		{KeyPurchaseMarkup, &e.PurchaseMarkup},
		{KeyInspection, &e.Inspection},
		{KeyDelivery, &e.Delivery},
		{KeyInsurance, &e.Insurance},
	}
}

// Lines returns the EUR expense lines in computation order
func (e Age3to5Expenses) Lines() []ExpenseLine {
	return linesOf(e.fields())
}

// ElectricExpenses covers battery electric vehicles: ad valorem duty, excise by power and VAT
type ElectricExpenses struct {
	BankTransfer   Formula
	PurchaseMarkup Formula
	Inspection     Formula
	Delivery       Formula
	Insurance      Formula

	CustomsClearanceFee decimal.Decimal
	Brokerage           decimal.Decimal

	DutyPercent decimal.Decimal
	VATPercent  decimal.Decimal

	ExciseByKilowatt   rangetable.ExciseTable
	ExciseByHorsepower rangetable.ExciseTable

	// FeeTable, when set, names the utilization-fee table used directly,
	// skipping displacement bucket resolution.
	FeeTable string

	// PowerFee is an optional flat fee by age bucket and horsepower
	PowerFee PowerFeeTable
}

// PowerFeeTable maps an age bucket (ScenarioUnder3 or ScenarioAge3to5) to
// horsepower rows priced in local currency. A vehicle outside every row of its
// bucket pays no power fee.
type PowerFeeTable map[Scenario]rangetable.FeeRows

// Buckets returns the configured age buckets in sorted order
func (t PowerFeeTable) Buckets() []Scenario {
	out := make([]Scenario, 0, len(t))
	for b := range t {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a deep copy; nil stays nil
func (t PowerFeeTable) Clone() PowerFeeTable {
	if t == nil {
		return nil
	}
	out := make(PowerFeeTable, len(t))
	for b, rows := range t {
		out[b] = append(rangetable.FeeRows(nil), rows...)
	}
	return out
}

func validPowerFeeBucket(b Scenario) bool {
	return b == ScenarioUnder3 || b == ScenarioAge3to5
}

func (e *ElectricExpenses) fields() []expenseField {
	return []expenseField{
		{KeyBankTransfer, &e.BankTransfer},
		{KeyPurchaseMarkup, &e.PurchaseMarkup},
		{KeyInspection, &e.Inspection},
		{KeyDelivery, &e.Delivery},
		{KeyInsurance, &e.Insurance},
	}
}

// Lines returns the EUR expense lines in computation order
func (e ElectricExpenses) Lines() []ExpenseLine {
	return linesOf(e.fields())
}

// Scenarios groups the three configured rule sets
type Scenarios struct {
	Under3   Under3Expenses
	Age3to5  Age3to5Expenses
	Electric ElectricExpenses
}
