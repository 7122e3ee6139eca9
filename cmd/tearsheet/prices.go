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

type pricesCmd struct {
	start  string
	end    string
	asJSON bool
}

func (*pricesCmd) Name() string     { return "prices" }
func (*pricesCmd) Synopsis() string { return "print the daily history of a symbol" }
func (*pricesCmd) Usage() string {
	return `tearsheet prices [-start <date>] [-end <date>] [-json] <symbol>

  Prints daily bars, the last year by default. VNINDEX is accepted.
`
}

func (c *pricesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.start, "start", "", "start date YYYY-MM-DD")
	f.StringVar(&c.end, "end", "", "end date YYYY-MM-DD")
	f.BoolVar(&c.asJSON, "json", false, "print JSON")
}

func (c *pricesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one symbol is required")
		return subcommands.ExitUsageError
	}
	a, err := open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	series, err := a.Analysis.Prices(ctx, strings.ToUpper(f.Arg(0)), c.start, c.end)
	if err != nil {
		return fail(err)
	}
	if c.asJSON {
		err = printJSON(os.Stdout, series)
	} else {
		err = printMarkdown(os.Stdout, pricesMarkdown(series))
	}
	if err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

func pricesMarkdown(s *models.PriceSeries) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s to %s, %d sessions from %s\n\n", s.Symbol, s.Start, s.End, len(s.Bars), s.Source)
	b.WriteString("| Date | Open | High | Low | Close | Volume |\n|---|--:|--:|--:|--:|--:|\n")
	for _, bar := range s.Bars {
		fmt.Fprintf(&b, "| %s | %.2f | %.2f | %.2f | %.2f | %.0f |\n", bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	}
	return b.String()
}

