// Package tcbs talks to the TCBS public API: long term daily bars and
// company financial statements.
package tcbs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/goccy/go-json"

	"tearsheet-api/internal/models"
)

const DefaultBaseURL = "https://apipubaws.tcbs.com.vn"

// Source names this provider in fetched series.
const Source = "tcbs"

var ErrNoData = errors.New("tcbs: no data")

type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("tcbs returned status %d", e.Code) }

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Period selects annual or quarterly statements.
type Period string

const (
	Yearly    Period = "year"
	Quarterly Period = "quarter"
)

// ParsePeriod accepts "year" (the default when empty) or "quarter".
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "year", "yearly", "annual":
		return Yearly, nil
	case "quarter", "quarterly":
		return Quarterly, nil
	}
	return "", fmt.Errorf("unknown period %q, want year or quarter", s)
}

// FieldMap maps a canonical statement field to the JSONPath that extracts it
// from one provider row.
type FieldMap map[string]string

// Statement field paths. Values are reported in billions of VND.
var (
	IncomeFields = FieldMap{
		"revenue":           "$.revenue",
		"net_income":        "$.postTaxProfit",
		"ebit":              "$.operationProfit",
		"profit_before_tax": "$.preTaxProfit",
	}
	BalanceFields = FieldMap{
		"total_assets":    "$.asset",
		"owners_equity":   "$.equity",
		"short_term_debt": "$.shortDebt",
		"long_term_debt":  "$.longDebt",
	}
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

type barsResponse struct {
	Ticker string `json:"ticker"`
	Data   []struct {
		Open        float64 `json:"open"`
		High        float64 `json:"high"`
		Low         float64 `json:"low"`
		Close       float64 `json:"close"`
		Volume      float64 `json:"volume"`
		TradingDate string  `json:"tradingDate"`
	} `json:"data"`
}

// IsIndex reports whether symbol names a market index rather than a stock.
func IsIndex(symbol string) bool {
	switch symbol {
	case "VNINDEX", "VN30", "HNXINDEX", "HNX30", "UPCOMINDEX":
		return true
	}
	return false
}

// GetHistory returns the daily bars of symbol between start and end inclusive.
func (c *Client) GetHistory(ctx context.Context, symbol string, start, end models.Date) (*models.PriceSeries, error) {
	kind := "stock"
	if IsIndex(symbol) {
		kind = "index"
	}
	q := url.Values{}
	q.Set("ticker", symbol)
	q.Set("type", kind)
	q.Set("resolution", "D")
	q.Set("from", fmt.Sprint(start.Unix()))
	q.Set("to", fmt.Sprint(end.AddDays(1).Unix()))

	var bars barsResponse
	if err := c.get(ctx, "/stock-insight/v2/stock/bars-long-term", q, &bars); err != nil {
		return nil, fmt.Errorf("tcbs bars for %s: %w", symbol, err)
	}

	series := &models.PriceSeries{
		Symbol:    symbol,
		Start:     start,
		End:       end,
		Source:    Source,
		FetchedAt: time.Now().UTC(),
	}
	for _, b := range bars.Data {
		day, err := parseTradingDate(b.TradingDate)
		if err != nil {
			return nil, fmt.Errorf("tcbs bars for %s: %w", symbol, err)
		}
		if day.Before(start.Time) || day.After(end.Time) {
			continue
		}
		series.Bars = append(series.Bars, models.PriceBar{
			Date:   day,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	if len(series.Bars) == 0 {
		return nil, fmt.Errorf("%w for %s between %s and %s", ErrNoData, symbol, start, end)
	}
	sort.Slice(series.Bars, func(i, j int) bool { return series.Bars[i].Date.Before(series.Bars[j].Date.Time) })
	return series, nil
}

// parseTradingDate accepts "2024-01-02T00:00:00.000Z" as well as a bare date.
func parseTradingDate(s string) (models.Date, error) {
	if len(s) >= len(models.DateLayout) {
		return models.ParseDate(s[:len(models.DateLayout)])
	}
	return models.Date{}, fmt.Errorf("bad trading date %q", s)
}

// GetStatements fetches the income statement and balance sheet of ticker and
// merges them into one row per period, oldest first.
func (c *Client) GetStatements(ctx context.Context, ticker string, period Period) ([]models.StatementRow, error) {
	merged := map[[2]int]*models.StatementRow{}

	for _, part := range []struct {
		path   string
		fields FieldMap
	}{
		{"incomestatement", IncomeFields},
		{"balancesheet", BalanceFields},
	} {
		q := url.Values{}
		q.Set("yearly", "1")
		if period == Quarterly {
			q.Set("yearly", "0")
		}
		q.Set("isAll", "true")

		var raw []any
		if err := c.get(ctx, "/tcanalysis/v1/finance/"+ticker+"/"+part.path, q, &raw); err != nil {
			return nil, fmt.Errorf("tcbs %s for %s: %w", part.path, ticker, err)
		}
		for _, item := range raw {
			year, quarter, ok := periodOf(item)
			if !ok {
				continue
			}
			if period == Yearly {
				quarter = 0
			}
			key := [2]int{year, quarter}
			row, exists := merged[key]
			if !exists {
				row = &models.StatementRow{Ticker: ticker, Year: year, Quarter: quarter, Values: map[string]float64{}}
				merged[key] = row
			}
			for field, path := range part.fields {
				if v, ok := Extract(item, path); ok {
					row.Values[field] = v
				}
			}
		}
	}

	if len(merged) == 0 {
		return nil, fmt.Errorf("%w: no statements for %s", ErrNoData, ticker)
	}

	rows := make([]models.StatementRow, 0, len(merged))
	for _, r := range merged {
		// Income tax is the gap between pre and post tax profit.
		pbt, okP := r.Values["profit_before_tax"]
		ni, okN := r.Values["net_income"]
		if _, has := r.Values["tax_paid"]; !has && okP && okN {
			r.Values["tax_paid"] = ni - pbt
		}
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Year != rows[j].Year {
			return rows[i].Year < rows[j].Year
		}
		return rows[i].Quarter < rows[j].Quarter
	})
	return rows, nil
}

func periodOf(item any) (year, quarter int, ok bool) {
	y, ok := Extract(item, "$.year")
	if !ok || y <= 0 {
		return 0, 0, false
	}
	q, _ := Extract(item, "$.quarter")
	return int(y), int(q), true
}

// Extract evaluates a JSONPath against a decoded JSON value and returns the
// number it selects. Missing keys, nulls and non-numbers are reported as !ok.
func Extract(obj any, path string) (float64, bool) {
	v, err := jsonpath.Get(path, obj)
	if err != nil {
		return 0, false
	}
	// a path may select a one element list rather than the element itself
	if list, isList := v.([]any); isList {
		if len(list) == 0 {
			return 0, false
		}
		v = list[0]
	}
	f, ok := v.(float64)
	return f, ok
}
