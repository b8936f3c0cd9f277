// Package tarifftest provides a complete tariff fixture for tests.
package tarifftest

import (
	"github.com/shopspring/decimal"

	"import-cost/core/rangetable"
	"import-cost/core/tariff"
)

// Version is the version of the fixture document
const Version = "2024_05_01"

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func fixed(s string) tariff.Formula {
	return tariff.Fixed(d(s))
}

func rows(triples ...string) []rangetable.FeeRow {
	out := make([]rangetable.FeeRow, 0, len(triples)/3)
	for i := 0; i+2 < len(triples); i += 3 {
		out = append(out, rangetable.FeeRow{From: d(triples[i]), To: d(triples[i+1]), Price: d(triples[i+2])})
	}
	return out
}

// Document returns a fresh fixture document. Callers may modify it.
func Document() *tariff.Document {
	return &tariff.Document{
		Version: Version,
		DutyRanges: []rangetable.DutyRange{
			{From: 0, To: 1000, Rate: d("1.5")},
			{From: 1001, To: 1500, Rate: d("1.7")},
			{From: 1501, To: 1800, Rate: d("2.5")},
			{From: 1801, To: 2300, Rate: d("2.7")},
			{From: 2301, To: 3000, Rate: d("3.0")},
			{From: 3001, To: 8000, Rate: d("3.6")},
		},
		DisplacementBuckets: []rangetable.DisplacementBucket{
			{From: 100, To: 2000, Table: "cc_100_2000"},
			{From: 2001, To: 3000, Table: "cc_2001_3000"},
			{From: 3001, To: 3500, Table: "cc_3001_3500"},
			{From: 3501, To: 10000, Table: "cc_3501_10000"},
		},
		FeeTables: map[string]rangetable.FeeTable{
			"cc_100_2000": {
				Kilowatt: rows(
					"0", "117.68", "667400",
					"117.69", "139.7", "900000",
					"139.71", "161.8", "952800",
					"161.81", "183.9", "1010400",
					"183.91", "736", "1291200",
				),
				Horsepower: rows(
					"0", "160", "667400",
					"160.01", "190", "900000",
					"190.01", "220", "952800",
					"220.01", "250", "1010400",
					"250.01", "1000", "1291200",
				),
			},
			"cc_2001_3000": {
				Horsepower: rows(
					"0", "160", "2306800",
					"160.01", "1000", "2585200",
				),
			},
			"cc_3001_3500": {
				Horsepower: rows("0", "1000", "3296800"),
			},
			"cc_3501_10000": {
				Horsepower: rows("0", "1000", "3604800"),
			},
			"electric": {
				Kilowatt: rows(
					"0", "30", "0",
					"30", "60", "0",
					"60", "90", "0",
					"90", "120", "0",
					"120", "150", "0",
					"150", "200", "0",
					"200", "250", "0",
					"250", "300", "0",
					"300", "1000", "3648000",
				),
				Horsepower: rows(
					"0", "408", "0",
					"408.01", "1400", "3648000",
				),
			},
		},
		FeeTables3to5: map[string]rangetable.FeeTable{
			"cc_100_2000": {
				Horsepower: rows(
					"0", "160", "1174000",
					"160.01", "1000", "1492800",
				),
			},
		},
		Scenarios: tariff.ScenariosDocument{
			Under3: &tariff.ScenarioDocument{
				Expenses: map[string]tariff.Formula{
					tariff.KeyBankTransfer:          fixed("1500"),
					tariff.KeyPurchaseMarkup:        fixed("2500"),
					tariff.KeyInspection:            fixed("400"),
					tariff.KeyDeliveryToTransit:     fixed("6500"),
					tariff.KeyTransitCustoms:        fixed("29524"),
					tariff.KeyCustomsTransferFee:    {Percent: d("0.004")},
					tariff.KeyDeliveryToDestination: fixed("500"),
					tariff.KeyRegistrationDocs:      fixed("500"),
					tariff.KeyInsurance:             fixed("8000"),
				},
			},
			Age3to5: &tariff.ScenarioDocument{
				Expenses: map[string]tariff.Formula{
					tariff.KeyBankTransfer:   fixed("380"),
					tariff.KeyPurchaseMarkup: fixed("900"),
					tariff.KeyInspection:     fixed("400"),
					tariff.KeyDelivery:       fixed("6000"),
					tariff.KeyInsurance:      fixed("1600"),
				},
				CustomsClearanceFee: dp("30000"),
				Brokerage:           dp("115000"),
			},
			Electric: &tariff.ScenarioDocument{
				Expenses: map[string]tariff.Formula{
					tariff.KeyBankTransfer:   fixed("2200"),
					tariff.KeyPurchaseMarkup: fixed("3500"),
					tariff.KeyInspection:     fixed("400"),
					tariff.KeyDelivery:       fixed("6000"),
					tariff.KeyInsurance:      fixed("12000"),
				},
				CustomsClearanceFee: dp("30000"),
				Brokerage:           dp("115000"),
				DutyPercent:         dp("0.15"),
				VATPercent:          dp("0.20"),
				ExciseByHorsepower: []rangetable.ExciseRow{
					{From: d("0"), To: d("90"), Rate: d("0")},
					{From: d("90.01"), To: d("150"), Rate: d("61")},
					{From: d("150.01"), To: d("200"), Rate: d("583")},
					{From: d("200.01"), To: d("300"), Rate: d("955")},
					{From: d("300.01"), To: d("400"), Rate: d("1628")},
					{From: d("400.01"), To: d("500"), Rate: d("1685")},
					{From: d("500.01"), To: d("5000"), Rate: d("1740")},
				},
				FeeTable: "electric",
			},
		},
	}
}

// Config returns a freshly built fixture configuration
func Config() *tariff.Configuration {
	cfg, err := Document().Build()
	if err != nil {
		panic("tarifftest: fixture does not build: " + err.Error())
	}
	return cfg
}
