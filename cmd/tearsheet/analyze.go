package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"tearsheet-api/internal/app"
	"tearsheet-api/internal/models"
)

type analyzeCmd struct {
	portfolio portfolioFlags
	format    string
	output    string
}

func (*analyzeCmd) Name() string     { return "analyze" }
func (*analyzeCmd) Synopsis() string { return "analyze a portfolio and print its tearsheet" }
func (*analyzeCmd) Usage() string {
	return `tearsheet analyze -symbols REE,FMC -weights 0.6,0.4 -start <date> -end <date> [-format md|html|json] [-o file]

  Fetches the history of every holding, computes the weighted portfolio
  returns and prints the tearsheet.
`
}

func (c *analyzeCmd) SetFlags(f *flag.FlagSet) {
	c.portfolio.SetFlags(f)
	f.StringVar(&c.format, "format", "md", "output format: md, html or json")
	f.StringVar(&c.output, "o", "", "write the report to this file instead of stdout")
}

func (c *analyzeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	req, err := c.portfolio.request()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if c.format != "md" && c.format != "html" && c.format != "json" {
		fmt.Fprintf(os.Stderr, "Error: unknown format %q\n", c.format)
		return subcommands.ExitUsageError
	}

	a, err := open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	out := os.Stdout
	if c.output != "" {
		file, err := os.Create(c.output)
		if err != nil {
			return fail(err)
		}
		defer file.Close()
		out = file
	}

	if err := c.write(ctx, a, req, out); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

func (c *analyzeCmd) write(ctx context.Context, a *app.App, req models.AnalyzeRequest, out io.Writer) error {
	switch c.format {
	case "json":
		resp, err := a.Analysis.Analyze(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(out, resp)
	case "html":
		page, err := a.Analysis.TearsheetHTML(ctx, req)
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, page)
		return err
	default:
		md, err := a.Analysis.TearsheetMarkdown(ctx, req)
		if err != nil {
			return err
		}
		if c.output != "" {
			_, err = io.WriteString(out, md)
			return err
		}
		return printMarkdown(out, md)
	}
}
