package services

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tearsheet-api/internal/config"
	"tearsheet-api/internal/models"
	"tearsheet-api/internal/store"
	"tearsheet-api/pkg/tcbs"
)

func testConfig() *config.Config {
	return &config.Config{
		BenchmarkSymbol:      "VNINDEX",
		MaxConcurrentFetches: 2,
		FetchRetries:         3,
		CacheBackend:         "memory",
		CacheTTL:             time.Hour,
		CacheMaxEntries:      16,
		Validation:           config.DefaultValidation(),
	}
}

// fakeProvider serves synthetic history and counts calls per symbol.
type fakeProvider struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(symbol string, call int, start, end models.Date) (*models.PriceSeries, error)
}

func newFake(fn func(symbol string, call int, start, end models.Date) (*models.PriceSeries, error)) *fakeProvider {
	return &fakeProvider{calls: map[string]int{}, fn: fn}
}

func (f *fakeProvider) GetHistory(ctx context.Context, symbol string, start, end models.Date) (*models.PriceSeries, error) {
	f.mu.Lock()
	f.calls[symbol]++
	n := f.calls[symbol]
	f.mu.Unlock()
	return f.fn(symbol, n, start, end)
}

func (f *fakeProvider) Calls(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

// synthetic builds weekday bars with a deterministic, symbol dependent path.
func synthetic(symbol string, start, end models.Date) *models.PriceSeries {
	seed := 0.0
	for _, r := range symbol {
		seed += float64(r)
	}
	s := &models.PriceSeries{Symbol: symbol, Start: start, End: end, Source: "fake", FetchedAt: time.Now().UTC()}
	price := 10_000 + seed*10
	for d, i := start, 0; !d.After(end.Time); d, i = d.AddDays(1), i+1 {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		price *= 1 + 0.012*math.Sin(float64(i)*0.37+seed) + 0.0004
		s.Bars = append(s.Bars, models.PriceBar{Date: d, Open: price, High: price, Low: price, Close: price, Volume: 1000})
	}
	return s
}

func ok(symbol string, _ int, start, end models.Date) (*models.PriceSeries, error) {
	return synthetic(symbol, start, end), nil
}

type fakeStatements struct {
	rows map[string][]models.StatementRow
	err  map[string]error
}

func (f *fakeStatements) GetStatements(_ context.Context, ticker string, _ tcbs.Period) ([]models.StatementRow, error) {
	if err := f.err[ticker]; err != nil {
		return nil, err
	}
	return f.rows[ticker], nil
}

func newTestMarketData(cfg *config.Config, ps store.PriceStore, primary, secondary PriceProvider, st StatementProvider) *MarketDataService {
	log := zerolog.Nop()
	s := NewMarketDataService(cfg, NewCacheService(cfg, ps, log), log).WithProviders(primary, secondary, st)
	s.retry = retryPolicy{Attempts: 3, Base: time.Millisecond, Max: 2 * time.Millisecond}
	return s
}
