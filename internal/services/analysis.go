package services

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tearsheet-api/internal/apperr"
	"tearsheet-api/internal/config"
	"tearsheet-api/internal/models"
	"tearsheet-api/internal/portfolio"
	"tearsheet-api/internal/tearsheet"
)

// AnalysisOrchestrator runs the analysis pipeline: validate, fetch, align,
// aggregate, measure and optionally render the tearsheet. Nothing it
// computes outlives the request.
type AnalysisOrchestrator struct {
	config     *config.Config
	validator  *portfolio.Validator
	marketData *MarketDataService
	renderer   *tearsheet.Renderer
	log        zerolog.Logger
	now        func() time.Time
}

func NewAnalysisOrchestrator(cfg *config.Config, validator *portfolio.Validator, marketData *MarketDataService, renderer *tearsheet.Renderer, log zerolog.Logger) *AnalysisOrchestrator {
	return &AnalysisOrchestrator{
		config:     cfg,
		validator:  validator,
		marketData: marketData,
		renderer:   renderer,
		log:        log.With().Str("component", "analysis").Logger(),
		now:        time.Now,
	}
}

// Result is a finished analysis together with what the tearsheet needs.
type Result struct {
	Response *models.AnalyzeResponse
	Report   tearsheet.Input
}

// Validate checks a request without fetching anything.
func (o *AnalysisOrchestrator) Validate(req models.AnalyzeRequest) (*portfolio.Portfolio, error) {
	return o.validator.Validate(portfolio.InputFromRequest(req))
}

// Run executes the pipeline up to the metrics.
func (o *AnalysisOrchestrator) Run(ctx context.Context, req models.AnalyzeRequest) (*Result, error) {
	// Step 1: validate
	p, err := o.Validate(req)
	if err != nil {
		return nil, err
	}
	symbols := p.Symbols()

	// Step 2: fetch constituents and benchmark concurrently
	fetch := symbols
	bench := o.config.BenchmarkSymbol
	if bench != "" && !slices.Contains(symbols, bench) {
		fetch = append(slices.Clone(symbols), bench)
	}
	batch, err := o.marketData.FetchBatch(ctx, fetch, p.StartDate, p.EndDate)
	if err != nil {
		return nil, err
	}
	if err := constituentError(batch, symbols); err != nil {
		return nil, err
	}

	// Step 3: align on common dates and aggregate
	series := make([]*models.PriceSeries, len(symbols))
	for i, s := range symbols {
		series[i] = batch.Series[s]
	}
	table, align, err := portfolio.AlignPrices(series)
	if err != nil {
		return nil, err
	}
	returns, err := portfolio.WeightedReturns(table, p.Holdings)
	if err != nil {
		return nil, err
	}

	// Step 4: metrics
	capital, _ := p.Capital.Float64()
	metrics, err := portfolio.ComputeMetrics(returns, capital, o.config.RiskFreeRate)
	if err != nil {
		return nil, err
	}

	summary := models.AnalysisSummary{
		DataPoints:    returns.Len(),
		PortfolioSize: len(symbols),
		TotalCapital:  capital,
	}
	if len(align.Dropped) > 0 {
		summary.DroppedDates = align.Dropped
	}

	var benchReturns *portfolio.ReturnSeries
	if bench != "" {
		if b, ok := batch.Series[bench]; ok {
			// beta pairs returns over the same intervals, so the benchmark
			// joins the constituents' calendar
			pr, br, err := portfolio.BenchmarkReturns(series, p.Holdings, b)
			if err == nil {
				if beta, ok := portfolio.Beta(pr, br); ok {
					metrics.Beta = &beta
				}
				benchReturns = &br
				summary.Benchmark = bench
			} else {
				o.log.Warn().Err(err).Str("benchmark", bench).Msg("benchmark not aligned")
			}
		}
		if benchReturns == nil {
			summary.Warnings = append(summary.Warnings, "benchmark "+bench+" unavailable, beta not computed")
		}
	}

	id := uuid.NewString()
	generated := o.now().UTC()
	o.log.Info().
		Str("analysis", id).
		Strs("symbols", symbols).
		Int("data_points", returns.Len()).
		Float64("sharpe", metrics.SharpeRatio).
		Msg("analysis complete")

	return &Result{
		Response: &models.AnalyzeResponse{
			ID:          id,
			Portfolio:   p.View(),
			Metrics:     *metrics,
			Returns:     models.ReturnsView{Dates: returns.Dates, Values: returns.Values},
			Summary:     summary,
			GeneratedAt: generated,
		},
		Report: tearsheet.Input{
			ID:              id,
			Portfolio:       p,
			Metrics:         metrics,
			Returns:         returns,
			Benchmark:       benchReturns,
			BenchmarkSymbol: bench,
			Align:           align,
			GeneratedAt:     generated,
		},
	}, nil
}

// constituentError fails the analysis when any portfolio symbol has no data;
// the remaining weights would no longer sum to one.
func constituentError(batch *BatchResult, symbols []string) error {
	var failed []string
	notFound := true
	for _, s := range symbols {
		if err, ok := batch.Failures[s]; ok {
			failed = append(failed, s)
			if apperr.KindOf(err) != apperr.KindNotFound {
				notFound = false
			}
		}
	}
	if len(failed) == 0 {
		return nil
	}
	kind := apperr.KindDataFetch
	if notFound {
		kind = apperr.KindNotFound
	}
	e := apperr.New(kind, "market data unavailable for %s", joinSymbols(failed))
	for _, s := range failed {
		e.Fields = append(e.Fields, apperr.FieldError{Field: s, Code: string(apperr.KindOf(batch.Failures[s])), Message: batch.Failures[s].Error()})
	}
	return e
}

// Analyze runs the pipeline and renders the tearsheet when the request asks for it.
func (o *AnalysisOrchestrator) Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	res, err := o.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.IncludeTearsheet {
		html, err := o.renderer.HTML(ctx, res.Report)
		if err != nil {
			return nil, err
		}
		res.Response.Tearsheet = html
	}
	return res.Response, nil
}

// TearsheetHTML runs the pipeline and returns only the rendered page.
func (o *AnalysisOrchestrator) TearsheetHTML(ctx context.Context, req models.AnalyzeRequest) (string, error) {
	res, err := o.Run(ctx, req)
	if err != nil {
		return "", err
	}
	return o.renderer.HTML(ctx, res.Report)
}

// TearsheetMarkdown runs the pipeline and returns the markdown report.
func (o *AnalysisOrchestrator) TearsheetMarkdown(ctx context.Context, req models.AnalyzeRequest) (string, error) {
	res, err := o.Run(ctx, req)
	if err != nil {
		return "", err
	}
	return o.renderer.Markdown(ctx, res.Report)
}

// Prices returns the raw history of one symbol. The range follows the
// portfolio date rules; empty dates default to the year ending today.
func (o *AnalysisOrchestrator) Prices(ctx context.Context, symbol, start, end string) (*models.PriceSeries, error) {
	if symbol != o.config.BenchmarkSymbol || symbol == "" {
		syms, err := o.validator.ValidateSymbols([]string{symbol})
		if err != nil {
			return nil, err
		}
		symbol = syms[0]
	}

	from, to, err := o.validator.ValidateRange(start, end)
	if err != nil {
		return nil, err
	}
	return o.marketData.GetHistory(ctx, symbol, from, to)
}

// PurgeCache clears every cache tier.
func (o *AnalysisOrchestrator) PurgeCache(ctx context.Context) error {
	if err := o.marketData.cache.Purge(ctx); err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "purge %s cache", o.marketData.cache.Backend())
	}
	o.log.Info().Str("backend", o.marketData.cache.Backend()).Msg("cache purged")
	return nil
}
