package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/goccy/go-json"
	"github.com/google/subcommands"

	"tearsheet-api/internal/app"
	"tearsheet-api/internal/config"
	"tearsheet-api/internal/logging"
	"tearsheet-api/internal/models"
)

// as a CLI the process is short lived, global flags are fine.
var (
	logLevel = flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	plain    = flag.Bool("plain", false, "print raw markdown instead of rendering it for the terminal")
)

// open loads the environment configuration and wires the services.
func open(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.New(os.Stderr, *logLevel, "console")
	return app.New(ctx, cfg, log)
}

// fail reports err and maps it to an exit status.
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

func printMarkdown(w io.Writer, md string) error {
	if *plain {
		_, err := io.WriteString(w, md)
		return err
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(110),
	)
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

// portfolioFlags are the flags shared by the commands taking a portfolio.
type portfolioFlags struct {
	symbols string
	weights string
	capital float64
	start   string
	end     string
	name    string
}

func (p *portfolioFlags) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.symbols, "symbols", "", "comma separated tickers, e.g. REE,FMC,DHC")
	f.StringVar(&p.weights, "weights", "", "comma separated weights summing to 1, e.g. 0.7,0.2,0.1")
	f.Float64Var(&p.capital, "capital", 100_000_000, "initial capital in VND")
	f.StringVar(&p.start, "start", "", "start date YYYY-MM-DD")
	f.StringVar(&p.end, "end", "", "end date YYYY-MM-DD")
	f.StringVar(&p.name, "name", "", "portfolio name")
}

func (p *portfolioFlags) request() (models.AnalyzeRequest, error) {
	weights, err := splitFloats(p.weights)
	if err != nil {
		return models.AnalyzeRequest{}, fmt.Errorf("-weights: %w", err)
	}
	return models.AnalyzeRequest{
		Symbols:   splitList(p.symbols),
		Weights:   weights,
		Capital:   p.capital,
		StartDate: p.start,
		EndDate:   p.end,
		Name:      p.name,
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func splitFloats(s string) ([]float64, error) {
	var out []float64
	for _, v := range splitList(s) {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", v)
		}
		out = append(out, f)
	}
	return out, nil
}
