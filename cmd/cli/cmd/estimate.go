// Package cmd - estimate command
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"import-cost/core/estimate"
	"import-cost/core/output"
	"import-cost/internal/config"
	"import-cost/internal/logging"
)

var (
	estTariff       string
	estTariffFormat string
	estPrice        string
	estRate         string
	estCC           int
	estHP           string
	estKW           string
	estFuel         string
	estElectric     bool
	estRegYear      int
	estRegMonth     int
	estScenario     string
	estFormat       string
)

// estimateCmd represents the estimate command
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate import costs for one vehicle",
	Long: `Estimate the landed cost of a vehicle from its EUR net price.

The scenario (under_3, age_3_5, electric) is picked from the registration
date and fuel type unless --scenario is given. Electric vehicles always use
the electric scenario.

Examples:
  import-cost estimate --price 20000 --rate 95 --cc 2000 --hp 150 --reg-year 2021 --reg-month 3
  import-cost estimate --price 40000 --rate 100 --kw 150 --fuel Elektro
  import-cost estimate --tariff tariff.hcl --scenario under_3 --price 15000 --cc 1600 --format json`,
	Args: cobra.NoArgs,
	RunE: runEstimate,
}

func init() {
	f := estimateCmd.Flags()
	f.StringVarP(&estTariff, "tariff", "t", "", "tariff file (default from config, or Redis when configured)")
	f.StringVar(&estTariffFormat, "tariff-format", "", "tariff file format (json, yaml, hcl)")
	f.StringVarP(&estPrice, "price", "p", "", "net price in EUR [REQUIRED]")
	f.StringVarP(&estRate, "rate", "r", "", "exchange rate, local currency per EUR (default from tariff)")
	f.IntVar(&estCC, "cc", 0, "engine displacement in cm³")
	f.StringVar(&estHP, "hp", "", "engine power in horsepower")
	f.StringVar(&estKW, "kw", "", "engine power in kilowatts")
	f.StringVar(&estFuel, "fuel", "", "fuel type as listed")
	f.BoolVar(&estElectric, "electric", false, "vehicle is electric")
	f.IntVar(&estRegYear, "reg-year", 0, "first registration year")
	f.IntVar(&estRegMonth, "reg-month", 0, "first registration month (1-12)")
	f.StringVarP(&estScenario, "scenario", "s", "", "force a scenario (under_3, age_3_5, electric)")
	f.StringVarP(&estFormat, "format", "f", "", "output format (cli, json, markdown)")
	_ = estimateCmd.MarkFlagRequired("price")

	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	started := time.Now()

	req, err := estimateRequest(cmd)
	if err != nil {
		return err
	}

	provider, closeProvider, err := tariffProvider(ctx, estTariff, estTariffFormat)
	if err != nil {
		return err
	}
	defer closeProvider()

	cfg, err := loadTariff(ctx, provider)
	if err != nil {
		return fmt.Errorf("failed to load tariff: %w", err)
	}

	format := estFormat
	if format == "" {
		format = config.Get().Output.DefaultFormat
	}
	formatter, err := output.Default().Get(output.Format(format))
	if err != nil {
		return err
	}

	result, err := estimate.NewEngine(logging.Named("estimate")).Estimate(cfg, req)
	if err != nil {
		return err
	}

	report := output.NewReport(result, started, provider.Name(), Version)
	logging.Info("estimate complete",
		zap.String("estimate_id", report.Metadata.EstimateID),
		zap.String("scenario", string(result.Scenario)),
		zap.String("total", result.Total.String()),
	)
	return formatter.Render(cmd.OutOrStdout(), report)
}

// estimateRequest maps flags to a request. Unset optional flags stay nil.
func estimateRequest(cmd *cobra.Command) (estimate.Request, error) {
	flags := cmd.Flags()
	req := estimate.Request{
		ScenarioOverride: estScenario,
		IsElectric:       estElectric,
		FuelType:         estFuel,
	}

	var err error
	if req.NetPriceEUR, err = parseDecimalFlag("price", estPrice); err != nil {
		return req, err
	}
	if estRate != "" {
		if req.ExchangeRate, err = parseDecimalFlag("rate", estRate); err != nil {
			return req, err
		}
	}
	if estHP != "" {
		hp, err := parseDecimalFlag("hp", estHP)
		if err != nil {
			return req, err
		}
		req.PowerHP = &hp
	}
	if estKW != "" {
		kw, err := parseDecimalFlag("kw", estKW)
		if err != nil {
			return req, err
		}
		req.PowerKW = &kw
	}
	if flags.Changed("cc") {
		cc := estCC
		req.DisplacementCC = &cc
	}
	if flags.Changed("reg-year") {
		year := estRegYear
		req.RegistrationYear = &year
	}
	if flags.Changed("reg-month") {
		month := estRegMonth
		req.RegistrationMonth = &month
	}
	return req, nil
}

func parseDecimalFlag(name, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q: not a number", name, value)
	}
	return d, nil
}
