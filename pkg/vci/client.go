// Package vci fetches daily price history from the Vietcap (VCI) chart API.
package vci

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"tearsheet-api/internal/models"
)

const DefaultBaseURL = "https://trading.vietcap.com.vn/api"

// Source names this provider in fetched series.
const Source = "vci"

// ErrNoData is returned when the provider knows nothing about the symbol in
// the requested range.
var ErrNoData = errors.New("vci: no data")

// StatusError is a non-200 reply.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("vci returned status %d", e.Code) }

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Trading days are stamped in Vietnam time.
var ict = time.FixedZone("ICT", 7*60*60)

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

type chartRequest struct {
	TimeFrame string   `json:"timeFrame"`
	Symbols   []string `json:"symbols"`
	To        int64    `json:"to"`
	CountBack int      `json:"countBack"`
}

// chartResponse holds one entry per requested symbol, with parallel arrays.
// Timestamps are unix seconds encoded as strings.
type chartResponse []struct {
	Symbol string    `json:"symbol"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []float64 `json:"v"`
	Time   []string  `json:"t"`
}

// GetHistory returns the daily bars of symbol between start and end inclusive.
func (c *Client) GetHistory(ctx context.Context, symbol string, start, end models.Date) (*models.PriceSeries, error) {
	to := end.AddDays(1).Unix()
	payload, err := json.Marshal(chartRequest{
		TimeFrame: "ONE_DAY",
		Symbols:   []string{symbol},
		To:        to,
		CountBack: start.DaysUntil(end) + 1,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chart/OHLCChart/gap-chart", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("decode vci chart for %s: %w", symbol, err)
	}
	if len(chart) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}

	data := chart[0]
	n := len(data.Time)
	if len(data.Close) != n || len(data.Open) != n || len(data.High) != n || len(data.Low) != n || len(data.Volume) != n {
		return nil, fmt.Errorf("vci chart for %s has ragged columns", symbol)
	}

	series := &models.PriceSeries{
		Symbol:    symbol,
		Start:     start,
		End:       end,
		Source:    Source,
		FetchedAt: time.Now().UTC(),
	}
	for i, ts := range data.Time {
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("vci chart for %s: bad timestamp %q", symbol, ts)
		}
		day := models.DateOf(time.Unix(sec, 0).In(ict))
		if day.Before(start.Time) || day.After(end.Time) {
			continue
		}
		series.Bars = append(series.Bars, models.PriceBar{
			Date:   day,
			Open:   data.Open[i],
			High:   data.High[i],
			Low:    data.Low[i],
			Close:  data.Close[i],
			Volume: data.Volume[i],
		})
	}

	if len(series.Bars) == 0 {
		return nil, fmt.Errorf("%w for %s between %s and %s", ErrNoData, symbol, start, end)
	}
	return series, nil
}
