package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"tearsheet-api/internal/config"
	"tearsheet-api/internal/models"
	"tearsheet-api/internal/portfolio"
	"tearsheet-api/internal/ratios"
	"tearsheet-api/internal/services"
	"tearsheet-api/internal/tearsheet"
	"tearsheet-api/pkg/tcbs"
	"tearsheet-api/pkg/vci"
)

type stubPrices struct{}

func (stubPrices) GetHistory(_ context.Context, symbol string, start, end models.Date) (*models.PriceSeries, error) {
	if symbol == "XYZ" {
		return nil, fmt.Errorf("%w for XYZ", vci.ErrNoData)
	}
	s := &models.PriceSeries{Symbol: symbol, Start: start, End: end, Source: vci.Source, FetchedAt: time.Now().UTC()}
	price := 20_000.0 + float64(len(symbol))*1_000
	for d, i := start, 0; !d.After(end.Time); d, i = d.AddDays(1), i+1 {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		price *= 1 + 0.01*float64(i%7-3)/3
		s.Bars = append(s.Bars, models.PriceBar{Date: d, Close: price})
	}
	return s, nil
}

type stubStatements struct{}

func (stubStatements) GetStatements(_ context.Context, ticker string, _ tcbs.Period) ([]models.StatementRow, error) {
	return []models.StatementRow{
		{Ticker: ticker, Year: 2022, Values: map[string]float64{ratios.Revenue: 100, ratios.NetIncome: 10, ratios.EBIT: 15, ratios.TotalAssets: 200, ratios.OwnersEquity: 100}},
		{Ticker: ticker, Year: 2023, Values: map[string]float64{ratios.Revenue: 120, ratios.NetIncome: 13, ratios.EBIT: 18, ratios.TotalAssets: 220, ratios.OwnersEquity: 110}},
	}, nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := &config.Config{
		BenchmarkSymbol:      "VNINDEX",
		MaxConcurrentFetches: 4,
		FetchRetries:         1,
		CacheBackend:         "memory",
		CacheTTL:             time.Hour,
		CacheMaxEntries:      32,
		Validation:           config.DefaultValidation(),
	}
	log := zerolog.Nop()
	validator := portfolio.NewValidator(cfg.Validation).WithClock(func() models.Date {
		return models.NewDate(2025, time.June, 1)
	})
	cache := services.NewCacheService(cfg, nil, log)
	t.Cleanup(func() { cache.Close() })
	market := services.NewMarketDataService(cfg, cache, log).WithProviders(stubPrices{}, nil, stubStatements{})
	orchestrator := services.NewAnalysisOrchestrator(cfg, validator, market, tearsheet.NewRenderer(nil, log), log)

	app := fiber.New(AppConfig("test"))
	Register(app,
		NewHealthHandler("test", cache),
		NewAnalysisHandler(orchestrator, time.Minute),
		NewRatioHandler(services.NewRatioService(validator, market, log), time.Minute),
	)
	return app
}

const analyzeBody = `{"symbols":["REE","FMC","DHC"],"weights":[0.7,0.2,0.1],"capital":500000000,
	"start_date":"2023-01-01","end_date":"2025-04-15","name":"Scenario"}`

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, body
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/", "/health", "/health/ready"} {
		resp, body := do(t, app, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d: %s", path, resp.StatusCode, body)
		}
	}
}

func TestValidate(t *testing.T) {
	app := newTestApp(t)

	resp, body := do(t, app, jsonRequest(http.MethodPost, "/v1/validate", analyzeBody))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var ok models.ValidateResponse
	if err := json.Unmarshal(body, &ok); err != nil {
		t.Fatal(err)
	}
	if !ok.Valid || ok.Portfolio == nil || len(ok.Portfolio.Holdings) != 3 {
		t.Errorf("response = %s", body)
	}

	bad := `{"symbols":["REE"],"weights":[1],"capital":500000000,"start_date":"2025-04-15","end_date":"2023-01-01"}`
	resp, body = do(t, app, jsonRequest(http.MethodPost, "/v1/validate", bad))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var invalid models.ValidateResponse
	if err := json.Unmarshal(body, &invalid); err != nil {
		t.Fatal(err)
	}
	if invalid.Valid || len(invalid.Errors) != 1 || invalid.Errors[0].Code != "end_before_start" {
		t.Errorf("response = %s", body)
	}
}

func TestAnalyze_JSON(t *testing.T) {
	app := newTestApp(t)
	resp, body := do(t, app, jsonRequest(http.MethodPost, "/v1/analyze", analyzeBody))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var got models.AnalyzeResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Returns.Values) == 0 || got.Metrics.MaxDrawdown > 0 || got.Metrics.Beta == nil {
		t.Errorf("metrics = %+v", got.Metrics)
	}
	if got.Portfolio.Name != "Scenario" {
		t.Errorf("name = %q", got.Portfolio.Name)
	}
}

func TestAnalyze_Form(t *testing.T) {
	app := newTestApp(t)
	form := url.Values{}
	form.Add("symbols", "REE")
	form.Add("symbols", "FMC")
	form.Add("weights", "0.5")
	form.Add("weights", "0.5")
	form.Set("capital", "100000000")
	form.Set("start_date", "2024-01-01")
	form.Set("end_date", "2024-12-31")

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, body := do(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	app := newTestApp(t)
	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"malformed", `{"symbols":`, http.StatusBadRequest, "validation"},
		{"invalid weights", `{"symbols":["REE","FMC"],"weights":[0.9,0.2],"capital":1e8,"start_date":"2024-01-01","end_date":"2024-12-31"}`,
			http.StatusBadRequest, "validation"},
		{"unknown symbol", `{"symbols":["XYZ"],"weights":[1],"capital":1e8,"start_date":"2024-01-01","end_date":"2024-12-31"}`,
			http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, jsonRequest(http.MethodPost, "/v1/analyze", tt.body))
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.status, body)
			}
			var e models.ErrorResponse
			if err := json.Unmarshal(body, &e); err != nil {
				t.Fatal(err)
			}
			if e.Kind != tt.kind || e.Code != tt.status {
				t.Errorf("error response = %s", body)
			}
		})
	}
}

func TestTearsheet(t *testing.T) {
	app := newTestApp(t)
	resp, body := do(t, app, jsonRequest(http.MethodPost, "/v1/tearsheet", analyzeBody))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(string(body), "<svg") {
		t.Error("tearsheet has no charts")
	}
}

func TestPrices(t *testing.T) {
	app := newTestApp(t)
	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/v1/prices/REE?start=2024-01-01&end=2024-02-01", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var s models.PriceSeries
	if err := json.Unmarshal(body, &s); err != nil {
		t.Fatal(err)
	}
	if s.Symbol != "REE" || len(s.Bars) == 0 {
		t.Errorf("series = %s", body)
	}

	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/v1/prices/REE?start=bad", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad start status = %d", resp.StatusCode)
	}
}

func TestPrices_RangeRules(t *testing.T) {
	app := newTestApp(t)
	tests := []struct {
		name  string
		query string
		code  string
	}{
		{"future end", "start=2025-01-01&end=2100-01-01", "end_in_future"},
		{"window too long", "start=2010-01-01&end=2025-05-01", "window_too_long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/v1/prices/REE?"+tt.query, nil))
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", resp.StatusCode, body)
			}
			var e models.ErrorResponse
			if err := json.Unmarshal(body, &e); err != nil {
				t.Fatal(err)
			}
			found := false
			for _, f := range e.Fields {
				found = found || f.Code == tt.code
			}
			if !found {
				t.Errorf("fields = %+v, want code %s", e.Fields, tt.code)
			}
		})
	}
}

func TestRatios(t *testing.T) {
	app := newTestApp(t)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/v1/ratios/REE?period=year", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d: %s", resp.StatusCode, body)
	}
	var got models.RatioResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.DuPont) != 2 || got.DFL[1].DFL == nil {
		t.Errorf("ratios = %s", body)
	}

	resp, body = do(t, app, jsonRequest(http.MethodPost, "/v1/ratios", `{"symbols":["REE","FMC"],"period":"quarter"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST status = %d: %s", resp.StatusCode, body)
	}

	compute := `{"rows":[{"ticker":"AAA","year":2024,"values":{"long_term_debt":1,"short_term_debt":2,"owners_equity":3}}]}`
	resp, body = do(t, app, jsonRequest(http.MethodPost, "/v1/ratios/compute", compute))
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"capital_employed":6`) {
		t.Errorf("compute = %d: %s", resp.StatusCode, body)
	}

	resp, _ = do(t, app, jsonRequest(http.MethodPost, "/v1/ratios", `{"symbols":[],"period":"year"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty symbols status = %d", resp.StatusCode)
	}
}

func TestPurgeCache(t *testing.T) {
	app := newTestApp(t)
	resp, body := do(t, app, httptest.NewRequest(http.MethodPost, "/v1/admin/cache/purge", nil))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d: %s", resp.StatusCode, body)
	}
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t)
	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(string(body), `"code":404`) {
		t.Errorf("status = %d: %s", resp.StatusCode, body)
	}
}
