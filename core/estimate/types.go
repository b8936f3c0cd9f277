package estimate

import (
	"github.com/shopspring/decimal"

	"import-cost/core/tariff"
)

// Breakdown line keys
const (
	KeyPriceNet            = "price_net"
	KeyCustomsClearanceFee = "customs_clearance_fee"
	KeyBrokerage           = "brokerage"
	KeyDuty                = "duty"
	KeyImportDuty          = "import_duty"
	KeyExcise              = "excise"
	KeyPowerFee            = "power_fee"
	KeyVAT                 = "vat"
	KeyUtilizationFee      = "utilization_fee"
	KeyTotal               = "total"
)

// TotalTitle is the title of the last breakdown line in every scenario
const TotalTitle = "Total"

var localTitles = map[string]string{
	KeyPriceNet:            "Net price",
	KeyCustomsClearanceFee: "Customs clearance fee",
	KeyBrokerage:           "Broker and registration documents",
	KeyDuty:                "Customs duty",
	KeyImportDuty:          "Import duty",
	KeyExcise:              "Excise",
	KeyPowerFee:            "Power and age fee",
	KeyVAT:                 "VAT",
	KeyUtilizationFee:      "Utilization fee",
	KeyTotal:               TotalTitle,
}

// Request is one estimate call. Pointer fields are optional.
type Request struct {
	ScenarioOverride string          `json:"scenario,omitempty"`
	NetPriceEUR      decimal.Decimal `json:"net_price_eur" validate:"gte=0"`

	// ExchangeRate is local currency per EUR; zero falls back to the tariff default
	ExchangeRate decimal.Decimal `json:"exchange_rate" validate:"gte=0"`

	DisplacementCC *int             `json:"displacement_cc,omitempty" validate:"omitempty,gte=0"`
	PowerHP        *decimal.Decimal `json:"power_hp,omitempty" validate:"omitempty,gte=0"`
	PowerKW        *decimal.Decimal `json:"power_kw,omitempty" validate:"omitempty,gte=0"`
	IsElectric     bool             `json:"is_electric"`
	FuelType       string           `json:"fuel_type,omitempty"`

	RegistrationYear  *int `json:"registration_year,omitempty" validate:"omitempty,gte=1900"`
	RegistrationMonth *int `json:"registration_month,omitempty" validate:"omitempty,min=1,max=12"`
}

// CostItem is one line of the breakdown
type CostItem struct {
	Key      string          `json:"key"`
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Currency tariff.Currency `json:"currency"`
}

// Result is a complete estimate
type Result struct {
	Scenario      tariff.Scenario `json:"scenario"`
	ConfigVersion string          `json:"config_version"`

	// Total is UnroundedTotal ceiling-rounded to the tariff's rounding step
	Total          decimal.Decimal `json:"total"`
	UnroundedTotal decimal.Decimal `json:"unrounded_total"`
	Currency       tariff.Currency `json:"currency"`

	SubtotalEUR      decimal.Decimal `json:"subtotal_eur"`
	SubtotalLocal    decimal.Decimal `json:"subtotal_local"`
	ExchangeRateUsed decimal.Decimal `json:"exchange_rate_used"`

	Breakdown   []CostItem `json:"breakdown"`
	Assumptions []string   `json:"assumptions,omitempty"`
}

// Item returns the breakdown line with key
func (r *Result) Item(key string) (CostItem, bool) {
	for _, item := range r.Breakdown {
		if item.Key == key {
			return item, true
		}
	}
	return CostItem{}, false
}
