package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"tearsheet-api/internal/config"
	"tearsheet-api/internal/models"
	"tearsheet-api/internal/portfolio"
)

type validateCmd struct {
	portfolio portfolioFlags
}

func (*validateCmd) Name() string     { return "validate" }
func (*validateCmd) Synopsis() string { return "check a portfolio without fetching any data" }
func (*validateCmd) Usage() string {
	return `tearsheet validate -symbols REE,FMC -weights 0.6,0.4 -start <date> -end <date>

  Prints the normalised portfolio, or every rejected field.
`
}

func (c *validateCmd) SetFlags(f *flag.FlagSet) { c.portfolio.SetFlags(f) }

func (c *validateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	req, err := c.portfolio.request()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	cfg, err := config.Load()
	if err != nil {
		return fail(err)
	}

	resp, status := validate(portfolio.NewValidator(cfg.Validation), req)
	if err := printJSON(os.Stdout, resp); err != nil {
		return fail(err)
	}
	return status
}

func validate(v *portfolio.Validator, req models.AnalyzeRequest) (models.ValidateResponse, subcommands.ExitStatus) {
	p, err := v.Validate(portfolio.InputFromRequest(req))
	if err != nil {
		return models.ValidateResponse{Valid: false, Errors: portfolio.FieldErrors(err)}, subcommands.ExitFailure
	}
	view := p.View()
	return models.ValidateResponse{Valid: true, Portfolio: &view}, subcommands.ExitSuccess
}
