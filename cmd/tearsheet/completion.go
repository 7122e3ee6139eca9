package main

import (
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// completion describes the command line for shell completion. Install it
// with COMP_INSTALL=1 tearsheet.
func completion() *complete.Command {
	dates := predict.Something
	portfolioFlags := map[string]complete.Predictor{
		"symbols": predict.Something,
		"weights": predict.Something,
		"capital": predict.Something,
		"start":   dates,
		"end":     dates,
		"name":    predict.Something,
	}
	analyze := map[string]complete.Predictor{
		"format": predict.Set{"md", "html", "json"},
		"o":      predict.Files("*"),
	}
	for k, v := range portfolioFlags {
		analyze[k] = v
	}

	return &complete.Command{
		Flags: map[string]complete.Predictor{
			"log-level": predict.Set{"debug", "info", "warn", "error"},
			"plain":     predict.Nothing,
		},
		Sub: map[string]*complete.Command{
			"analyze":  {Flags: analyze},
			"validate": {Flags: portfolioFlags},
			"prices": {
				Flags: map[string]complete.Predictor{"start": dates, "end": dates, "json": predict.Nothing},
				Args:  predict.Something,
			},
			"ratios": {
				Flags: map[string]complete.Predictor{"period": predict.Set{"year", "quarter"}, "json": predict.Nothing},
				Args:  predict.Something,
			},
			"help":  {Args: predict.Set{"analyze", "validate", "prices", "ratios"}},
			"flags": {},
		},
	}
}
