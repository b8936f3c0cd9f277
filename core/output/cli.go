package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"import-cost/core/estimate"
)

const cliWidth = 64

// CLIFormatter prints a boxed breakdown table
type CLIFormatter struct {
	// NoColor disables highlighting even on a terminal
	NoColor bool
}

func (f *CLIFormatter) Format() Format { return FormatCLI }

func (f *CLIFormatter) Render(w io.Writer, report *Report) error {
	r := report.Result
	bold := color.New(color.Bold)
	warn := color.New(color.FgYellow)
	if f.NoColor {
		bold.DisableColor()
		warn.DisableColor()
	}

	rule := strings.Repeat("─", cliWidth)
	fmt.Fprintf(w, "┌%s┐\n", rule)
	fmt.Fprintf(w, "│ %-*s │\n", cliWidth-2, "IMPORT COST ESTIMATE")
	fmt.Fprintf(w, "├%s┤\n", rule)
	fmt.Fprintf(w, "│ %-*s │\n", cliWidth-2, fmt.Sprintf("Scenario: %s   Tariff: %s", r.Scenario, r.ConfigVersion))
	fmt.Fprintf(w, "│ %-*s │\n", cliWidth-2, fmt.Sprintf("Rate: %s %s/EUR", r.ExchangeRateUsed, r.Currency))
	fmt.Fprintf(w, "├%s┤\n", rule)

	for _, item := range r.Breakdown {
		if item.Key == estimate.KeyTotal {
			continue
		}
		fmt.Fprintf(w, "│ %s │\n", line(item.Title, Money(item.Amount), string(item.Currency)))
	}

	fmt.Fprintf(w, "├%s┤\n", rule)
	fmt.Fprintf(w, "│ %s │\n", line("Subtotal EUR", Money(r.SubtotalEUR), "EUR"))
	fmt.Fprintf(w, "│ %s │\n", line("Subtotal "+string(r.Currency), Money(r.SubtotalLocal), string(r.Currency)))
	fmt.Fprintf(w, "│ %s │\n", line("Before rounding", Money(r.UnroundedTotal), string(r.Currency)))
	fmt.Fprintf(w, "│ %s │\n", bold.Sprint(line(estimate.TotalTitle, Money(r.Total), string(r.Currency))))
	fmt.Fprintf(w, "└%s┘\n", rule)

	if len(r.Assumptions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Assumptions:")
		for _, a := range r.Assumptions {
			fmt.Fprintf(w, "  %s %s\n", warn.Sprint("•"), a)
		}
	}

	if report.Metadata.EstimateID != "" {
		fmt.Fprintf(w, "\nEstimate %s (%s)\n", report.Metadata.EstimateID, report.Metadata.Duration)
	}
	return nil
}

func line(title, amount, currency string) string {
	width := cliWidth - 2 - len(currency) - 1
	pad := width - len([]rune(title)) - len(amount)
	if pad < 1 {
		pad = 1
	}
	return title + strings.Repeat(" ", pad) + amount + " " + currency
}

// Money formats an amount with thousands separators and at most two decimals
func Money(d decimal.Decimal) string {
	return humanize.Commaf(d.Round(2).InexactFloat64())
}
