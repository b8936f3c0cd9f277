package output

import (
	"fmt"
	"io"

	"import-cost/core/estimate"
)

// MarkdownFormatter writes a breakdown table suitable for a chat or PR comment
type MarkdownFormatter struct{}

func (MarkdownFormatter) Format() Format { return FormatMarkdown }

func (MarkdownFormatter) Render(w io.Writer, report *Report) error {
	r := report.Result
	fmt.Fprintf(w, "### Import cost estimate (%s)\n\n", r.Scenario)
	fmt.Fprintf(w, "Tariff `%s`, rate %s %s/EUR\n\n", r.ConfigVersion, r.ExchangeRateUsed, r.Currency)
	fmt.Fprintln(w, "| Item | Amount | Currency |")
	fmt.Fprintln(w, "|---|---:|---|")
	for _, item := range r.Breakdown {
		title := item.Title
		if item.Key == estimate.KeyTotal {
			title = "**" + title + "**"
		}
		fmt.Fprintf(w, "| %s | %s | %s |\n", title, Money(item.Amount), item.Currency)
	}
	if len(r.Assumptions) > 0 {
		fmt.Fprintln(w)
		for _, a := range r.Assumptions {
			fmt.Fprintf(w, "- %s\n", a)
		}
	}
	return nil
}
