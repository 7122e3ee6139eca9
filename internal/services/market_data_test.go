package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"tearsheet-api/internal/apperr"
	"tearsheet-api/internal/models"
	"tearsheet-api/internal/ratios"
	"tearsheet-api/pkg/tcbs"
	"tearsheet-api/pkg/vci"
)

var (
	jan1  = models.NewDate(2024, 1, 1)
	jan31 = models.NewDate(2024, 1, 31)
)

func failing(err error) func(string, int, models.Date, models.Date) (*models.PriceSeries, error) {
	return func(string, int, models.Date, models.Date) (*models.PriceSeries, error) { return nil, err }
}

func TestGetHistory_FallsBackToSecondary(t *testing.T) {
	primary := newFake(failing(&vci.StatusError{Code: 400}))
	secondary := newFake(ok)
	s := newTestMarketData(testConfig(), nil, primary, secondary, nil)

	got, err := s.GetHistory(context.Background(), "REE", jan1, jan31)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if got.Symbol != "REE" || len(got.Bars) == 0 {
		t.Errorf("GetHistory() = %+v", got)
	}
	if primary.Calls("REE") > 1 {
		t.Errorf("non retryable error retried: %d calls", primary.Calls("REE"))
	}

	// second call is served from cache
	if _, err := s.GetHistory(context.Background(), "REE", jan1, jan31); err != nil {
		t.Fatal(err)
	}
	if secondary.Calls("REE") != 1 {
		t.Errorf("secondary called %d times, want 1 (cached)", secondary.Calls("REE"))
	}
}

func TestGetHistory_RetriesTransientErrors(t *testing.T) {
	primary := newFake(func(symbol string, call int, start, end models.Date) (*models.PriceSeries, error) {
		if call < 3 {
			return nil, &vci.StatusError{Code: 503}
		}
		return synthetic(symbol, start, end), nil
	})
	s := newTestMarketData(testConfig(), nil, primary, nil, nil)

	if _, err := s.GetHistory(context.Background(), "FMC", jan1, jan31); err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if primary.Calls("FMC") != 3 {
		t.Errorf("calls = %d, want 3", primary.Calls("FMC"))
	}
}

// transportError is what net/http returns when the connection fails.
func transportError() error {
	return &url.Error{Op: "Post", URL: "https://trading.vietcap.com.vn/api", Err: errors.New("connection reset by peer")}
}

func TestGetHistory_RetryIsBounded(t *testing.T) {
	primary := newFake(failing(transportError()))
	s := newTestMarketData(testConfig(), nil, primary, nil, nil)

	_, err := s.GetHistory(context.Background(), "FMC", jan1, jan31)
	if !apperr.Is(err, apperr.KindDataFetch) {
		t.Errorf("GetHistory() error = %v, want data fetch error", err)
	}
	if primary.Calls("FMC") != 3 {
		t.Errorf("calls = %d, want 3", primary.Calls("FMC"))
	}
}

func TestGetHistory_NotFound(t *testing.T) {
	s := newTestMarketData(testConfig(), nil,
		newFake(failing(fmt.Errorf("%w for XYZ", vci.ErrNoData))),
		newFake(failing(fmt.Errorf("%w for XYZ", tcbs.ErrNoData))), nil)

	_, err := s.GetHistory(context.Background(), "XYZ", jan1, jan31)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("GetHistory() error = %v, want not found", err)
	}
}

func TestFetchBatch_PartialFailure(t *testing.T) {
	primary := newFake(func(symbol string, call int, start, end models.Date) (*models.PriceSeries, error) {
		if symbol == "BAD" {
			return nil, fmt.Errorf("%w for BAD", vci.ErrNoData)
		}
		return synthetic(symbol, start, end), nil
	})
	s := newTestMarketData(testConfig(), nil, primary, nil, nil)

	res, err := s.FetchBatch(context.Background(), []string{"REE", "BAD", "FMC", "DHC"}, jan1, jan31)
	if err != nil {
		t.Fatalf("FetchBatch() error = %v", err)
	}
	if len(res.Series) != 3 {
		t.Errorf("len(Series) = %d, want 3", len(res.Series))
	}
	if got := res.FailedSymbols(); len(got) != 1 || got[0] != "BAD" {
		t.Errorf("FailedSymbols() = %v", got)
	}
	if !apperr.Is(res.Failures["BAD"], apperr.KindNotFound) {
		t.Errorf("BAD failure = %v", res.Failures["BAD"])
	}
}

func TestFetchBatch_AllFailed(t *testing.T) {
	s := newTestMarketData(testConfig(), nil, newFake(failing(&vci.StatusError{Code: 500})), nil, nil)

	_, err := s.FetchBatch(context.Background(), []string{"REE", "FMC"}, jan1, jan31)
	if !apperr.Is(err, apperr.KindDataFetch) {
		t.Errorf("FetchBatch() error = %v, want data fetch error", err)
	}
}

func TestFetchStatements(t *testing.T) {
	st := &fakeStatements{
		rows: map[string][]models.StatementRow{
			"REE": {{Ticker: "REE", Year: 2023, Values: map[string]float64{ratios.NetIncome: 1}}},
		},
		err: map[string]error{"FMC": fmt.Errorf("%w: no statements", tcbs.ErrNoData)},
	}
	s := newTestMarketData(testConfig(), nil, nil, nil, st)

	batch, err := s.FetchStatements(context.Background(), []string{"REE", "FMC"}, tcbs.Yearly)
	if err != nil {
		t.Fatalf("FetchStatements() error = %v", err)
	}
	if len(batch.Rows) != 1 || !apperr.Is(batch.Failures["FMC"], apperr.KindNotFound) {
		t.Errorf("batch = %+v", batch)
	}

	_, err = s.FetchStatements(context.Background(), []string{"FMC"}, tcbs.Yearly)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("FetchStatements() error = %v, want not found", err)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := retry(ctx, retryPolicy{Attempts: 5, Base: 1 << 40, Max: 1 << 40}, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, transportError()
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Errorf("retry() = %v after %d calls", err, calls)
	}
}

func TestGetHistory_DoesNotRetryMalformedReplies(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"decode", fmt.Errorf("decode vci chart for FMC: %w", errors.New("invalid character '<'"))},
		{"ragged", errors.New("vci chart for FMC has ragged columns")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := newFake(failing(tt.err))
			s := newTestMarketData(testConfig(), nil, primary, nil, nil)

			_, err := s.GetHistory(context.Background(), "FMC", jan1, jan31)
			if !apperr.Is(err, apperr.KindDataFetch) {
				t.Errorf("GetHistory() error = %v, want data fetch error", err)
			}
			if primary.Calls("FMC") != 1 {
				t.Errorf("calls = %d, want 1", primary.Calls("FMC"))
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", transportError(), true},
		{"wrapped transport", fmt.Errorf("tcbs bars for REE: %w", transportError()), true},
		{"rate limited", &vci.StatusError{Code: 429}, true},
		{"server error", &tcbs.StatusError{Code: 503}, true},
		{"client error", &vci.StatusError{Code: 404}, false},
		{"no data", fmt.Errorf("%w for REE", vci.ErrNoData), false},
		{"cancelled", &url.Error{Op: "Get", URL: "x", Err: context.Canceled}, false},
		{"decode", errors.New("unexpected end of JSON input"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.err); got != tt.want {
				t.Errorf("shouldRetry(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := retryPolicy{Attempts: 5, Base: 200, Max: 1000}
	want := []int64{200, 400, 800, 1000, 1000}
	for i, w := range want {
		if got := int64(p.delay(i)); got != w {
			t.Errorf("delay(%d) = %d, want %d", i, got, w)
		}
	}
}
