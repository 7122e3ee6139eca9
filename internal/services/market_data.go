package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tearsheet-api/internal/apperr"
	"tearsheet-api/internal/config"
	"tearsheet-api/internal/models"
	"tearsheet-api/pkg/tcbs"
	"tearsheet-api/pkg/vci"
)

// PriceProvider returns the daily history of a symbol.
type PriceProvider interface {
	GetHistory(ctx context.Context, symbol string, start, end models.Date) (*models.PriceSeries, error)
}

// StatementProvider returns merged financial statements of a ticker.
type StatementProvider interface {
	GetStatements(ctx context.Context, ticker string, period tcbs.Period) ([]models.StatementRow, error)
}

// MarketDataService fetches price history and statements concurrently, with
// caching, provider fallback and bounded retries.
type MarketDataService struct {
	config     *config.Config
	cache      *CacheService
	log        zerolog.Logger
	primary    PriceProvider
	secondary  PriceProvider
	statements StatementProvider
	retry      retryPolicy
}

func NewMarketDataService(cfg *config.Config, cache *CacheService, log zerolog.Logger) *MarketDataService {
	t := tcbs.NewClient(cfg.TCBSBaseURL, cfg.FetchTimeout)
	return &MarketDataService{
		config:     cfg,
		cache:      cache,
		log:        log.With().Str("component", "market_data").Logger(),
		primary:    vci.NewClient(cfg.VCIBaseURL, cfg.FetchTimeout),
		secondary:  t,
		statements: t,
		retry: retryPolicy{
			Attempts: cfg.FetchRetries,
			Base:     200 * time.Millisecond,
			Max:      2 * time.Second,
		},
	}
}

// WithProviders replaces the provider clients. Either price provider may be nil.
func (s *MarketDataService) WithProviders(primary, secondary PriceProvider, statements StatementProvider) *MarketDataService {
	s.primary, s.secondary, s.statements = primary, secondary, statements
	return s
}

// BatchResult holds what a batch fetch produced; a symbol appears in exactly
// one of the maps.
type BatchResult struct {
	Series   map[string]*models.PriceSeries
	Failures map[string]error
}

// FailedSymbols lists the failed symbols in order.
func (b *BatchResult) FailedSymbols() []string {
	out := make([]string, 0, len(b.Failures))
	for s := range b.Failures {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// FetchBatch fetches the history of every symbol with bounded concurrency.
// A failing symbol does not abort the others; only a batch in which every
// symbol failed is an error.
func (s *MarketDataService) FetchBatch(ctx context.Context, symbols []string, start, end models.Date) (*BatchResult, error) {
	res := &BatchResult{
		Series:   make(map[string]*models.PriceSeries, len(symbols)),
		Failures: map[string]error{},
	}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(max(s.config.MaxConcurrentFetches, 1))
	for _, symbol := range symbols {
		g.Go(func() error {
			series, err := s.GetHistory(ctx, symbol, start, end)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failures[symbol] = err
				return nil
			}
			res.Series[symbol] = series
			return nil
		})
	}
	g.Wait()

	if len(symbols) > 0 && len(res.Series) == 0 {
		return res, batchError(res.Failures)
	}
	return res, nil
}

func batchError(failures map[string]error) error {
	kind := apperr.KindNotFound
	errs := make([]error, 0, len(failures))
	for _, err := range failures {
		if apperr.KindOf(err) != apperr.KindNotFound {
			kind = apperr.KindDataFetch
		}
		errs = append(errs, err)
	}
	return apperr.Wrap(kind, errors.Join(errs...), "all %d fetches failed", len(failures))
}

// GetHistory returns the history of one symbol, from the cache when possible.
func (s *MarketDataService) GetHistory(ctx context.Context, symbol string, start, end models.Date) (*models.PriceSeries, error) {
	if cached, found := s.cache.GetPrices(ctx, symbol, start, end); found {
		return cached, nil
	}

	series, err := s.fetchSingle(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	s.cache.SetPrices(ctx, series)
	return series, nil
}

// fetchSingle queries both providers at once and keeps the first success.
func (s *MarketDataService) fetchSingle(ctx context.Context, symbol string, start, end models.Date) (*models.PriceSeries, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		source string
		data   *models.PriceSeries
		err    error
	}

	providers := map[string]PriceProvider{vci.Source: s.primary, tcbs.Source: s.secondary}
	results := make(chan result, len(providers))
	pending := 0
	for name, p := range providers {
		if p == nil {
			continue
		}
		pending++
		go func() {
			data, err := retry(ctx, s.retry, func(ctx context.Context) (*models.PriceSeries, error) {
				return p.GetHistory(ctx, symbol, start, end)
			})
			results <- result{name, data, err}
		}()
	}
	if pending == 0 {
		return nil, apperr.New(apperr.KindConfiguration, "no price provider configured")
	}

	var errs []error
	notFound := true
	for ; pending > 0; pending-- {
		select {
		case res := <-results:
			if res.err == nil {
				s.log.Debug().Str("symbol", symbol).Str("source", res.source).Int("bars", len(res.data.Bars)).Msg("fetched history")
				return res.data, nil
			}
			s.log.Warn().Err(res.err).Str("symbol", symbol).Str("source", res.source).Msg("provider failed")
			if !isNoData(res.err) {
				notFound = false
			}
			errs = append(errs, fmt.Errorf("%s: %w", res.source, res.err))
		case <-ctx.Done():
			return nil, apperr.Wrap(apperr.KindDataFetch, ctx.Err(), "fetch %s", symbol)
		}
	}

	if notFound {
		return nil, apperr.Wrap(apperr.KindNotFound, errors.Join(errs...), "no price data for %s between %s and %s", symbol, start, end)
	}
	return nil, apperr.Wrap(apperr.KindDataFetch, errors.Join(errs...), "all sources failed for %s", symbol)
}

// StatementBatch holds statements per ticker and the tickers that failed.
type StatementBatch struct {
	Rows     []models.StatementRow
	Failures map[string]error
}

// FetchStatements fetches statements of every ticker with bounded
// concurrency. As with prices, only a batch where everything failed is an error.
func (s *MarketDataService) FetchStatements(ctx context.Context, tickers []string, period tcbs.Period) (*StatementBatch, error) {
	if s.statements == nil {
		return nil, apperr.New(apperr.KindConfiguration, "no statement provider configured")
	}
	perTicker := make(map[string][]models.StatementRow, len(tickers))
	batch := &StatementBatch{Failures: map[string]error{}}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(max(s.config.MaxConcurrentFetches, 1))
	for _, ticker := range tickers {
		g.Go(func() error {
			rows, err := retry(ctx, s.retry, func(ctx context.Context) ([]models.StatementRow, error) {
				return s.statements.GetStatements(ctx, ticker, period)
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case isNoData(err):
				batch.Failures[ticker] = apperr.Wrap(apperr.KindNotFound, err, "no statements for %s", ticker)
			case err != nil:
				batch.Failures[ticker] = apperr.Wrap(apperr.KindDataFetch, err, "fetch statements for %s", ticker)
			default:
				perTicker[ticker] = rows
			}
			return nil
		})
	}
	g.Wait()

	for _, t := range tickers {
		batch.Rows = append(batch.Rows, perTicker[t]...)
	}
	if len(tickers) > 0 && len(perTicker) == 0 {
		return batch, batchError(batch.Failures)
	}
	return batch, nil
}

func isNoData(err error) bool {
	return errors.Is(err, vci.ErrNoData) || errors.Is(err, tcbs.ErrNoData)
}

// FailureMessages renders a failure map for responses.
func FailureMessages(failures map[string]error) map[string]string {
	if len(failures) == 0 {
		return nil
	}
	out := make(map[string]string, len(failures))
	for k, err := range failures {
		out[k] = err.Error()
	}
	return out
}

// joinSymbols is used in error messages.
func joinSymbols(symbols []string) string { return strings.Join(symbols, ", ") }
