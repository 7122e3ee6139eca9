package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"tearsheet-api/internal/models"
)

type ratiosCmd struct {
	period string
	asJSON bool
}

func (*ratiosCmd) Name() string     { return "ratios" }
func (*ratiosCmd) Synopsis() string { return "print DuPont, DFL, capital employed and tax ratios" }
func (*ratiosCmd) Usage() string {
	return `tearsheet ratios [-period year|quarter] [-json] <symbol>...

  Fetches financial statements and prints the derived ratios.
`
}

func (c *ratiosCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "year", "statement period: year or quarter")
	f.BoolVar(&c.asJSON, "json", false, "print JSON")
}

func (c *ratiosCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one symbol is required")
		return subcommands.ExitUsageError
	}
	a, err := open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	resp, err := a.Ratios.Fetch(ctx, models.RatioRequest{Symbols: f.Args(), Period: c.period})
	if err != nil {
		return fail(err)
	}
	if c.asJSON {
		err = printJSON(os.Stdout, resp)
	} else {
		err = printMarkdown(os.Stdout, ratiosMarkdown(resp))
	}
	if err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

func period(year, quarter int) string {
	if quarter == 0 {
		return fmt.Sprint(year)
	}
	return fmt.Sprintf("%d Q%d", year, quarter)
}

// ratio formats an optional ratio scaled by scale, "n/a" when undefined.
func ratio(v *float64, format string, scale float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v*scale)
}

func ratiosMarkdown(r *models.RatioResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Ratios: %s (%s)\n\n", strings.Join(r.Symbols, ", "), r.Period)

	b.WriteString("## DuPont\n\n| Ticker | Period | NPM | Asset turnover | Leverage | ROE (DuPont) | ROE (direct) |\n|---|---|--:|--:|--:|--:|--:|\n")
	for _, d := range r.DuPont {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n", d.Ticker, period(d.Year, d.Quarter),
			ratio(d.NetProfitMargin, "%.2f%%", 100), ratio(d.AssetTurnover, "%.3f", 1), ratio(d.FinancialLeverage, "%.3f", 1),
			ratio(d.ROEDuPont, "%.2f%%", 100), ratio(d.ROEDirect, "%.2f%%", 100))
	}

	b.WriteString("\n## Degree of financial leverage\n\n| Ticker | Period | Δ net income | Δ EBIT | DFL |\n|---|---|--:|--:|--:|\n")
	for _, d := range r.DFL {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", d.Ticker, period(d.Year, d.Quarter),
			ratio(d.NetIncomeGrow, "%.2f%%", 100), ratio(d.EBITGrow, "%.2f%%", 100), ratio(d.DFL, "%.3f", 1))
	}

	b.WriteString("\n## Capital employed\n\n| Ticker | Period | Long term debt | Short term debt | Owners' equity | Capital employed |\n|---|---|--:|--:|--:|--:|\n")
	for _, d := range r.Capital {
		fmt.Fprintf(&b, "| %s | %s | %.0f | %.0f | %.0f | %.0f |\n", d.Ticker, period(d.Year, d.Quarter),
			d.LongTermDebt, d.ShortTermDebt, d.OwnersEquity, d.CapitalEmployed)
	}

	b.WriteString("\n## Effective tax rate\n\n| Ticker | Period | Profit before tax | Tax paid | Rate |\n|---|---|--:|--:|--:|\n")
	for _, d := range r.TaxRate {
		fmt.Fprintf(&b, "| %s | %s | %.0f | %.0f | %s |\n", d.Ticker, period(d.Year, d.Quarter),
			d.ProfitBeforeTax, d.TaxPaid, ratio(d.EffectiveTaxRate, "%.2f%%", 100))
	}

	if len(r.Failures) > 0 {
		b.WriteString("\n## Unavailable\n\n")
		for sym, msg := range r.Failures {
			fmt.Fprintf(&b, "- %s: %s\n", sym, msg)
		}
	}
	return b.String()
}
