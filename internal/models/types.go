package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnalyzeRequest represents the incoming portfolio analysis request.
// It binds from JSON and from form-encoded bodies.
type AnalyzeRequest struct {
	Symbols          []string  `json:"symbols" form:"symbols"`
	Weights          []float64 `json:"weights" form:"weights"`
	Capital          float64   `json:"capital" form:"capital"`
	StartDate        string    `json:"start_date" form:"start_date"`
	EndDate          string    `json:"end_date" form:"end_date"`
	Name             string    `json:"name,omitempty" form:"name"`
	IncludeTearsheet bool      `json:"include_tearsheet,omitempty" form:"include_tearsheet"`
}

// PortfolioView is the validated portfolio echoed back to the caller.
type PortfolioView struct {
	Name        string          `json:"name,omitempty"`
	Capital     decimal.Decimal `json:"capital"`
	StartDate   Date            `json:"start_date"`
	EndDate     Date            `json:"end_date"`
	Holdings    []HoldingView   `json:"holdings"`
	TotalWeight float64         `json:"total_weight"`
}

type HoldingView struct {
	Symbol     string          `json:"symbol"`
	Weight     float64         `json:"weight"`
	Allocation decimal.Decimal `json:"allocation"`
}

// Metrics are the scalar performance statistics of a return series.
type Metrics struct {
	TotalReturn      float64  `json:"total_return"`
	AnnualizedReturn float64  `json:"annualized_return"`
	Volatility       float64  `json:"volatility"`
	SharpeRatio      float64  `json:"sharpe_ratio"`
	SortinoRatio     float64  `json:"sortino_ratio"`
	CalmarRatio      float64  `json:"calmar_ratio"`
	MaxDrawdown      float64  `json:"max_drawdown"`
	WinRate          float64  `json:"win_rate"`
	BestDay          float64  `json:"best_day"`
	WorstDay         float64  `json:"worst_day"`
	Beta             *float64 `json:"beta"`
	FinalValue       float64  `json:"final_value"`
	TotalPeriods     int      `json:"total_periods"`
	StartDate        Date     `json:"start_date"`
	EndDate          Date     `json:"end_date"`
}

// ReturnsView carries the portfolio return series in parallel arrays.
type ReturnsView struct {
	Dates  []Date    `json:"dates"`
	Values []float64 `json:"values"`
}

type AnalysisSummary struct {
	DataPoints    int            `json:"data_points"`
	PortfolioSize int            `json:"portfolio_size"`
	TotalCapital  float64        `json:"total_capital"`
	DroppedDates  map[string]int `json:"dropped_dates,omitempty"`
	Benchmark     string         `json:"benchmark,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// AnalyzeResponse represents the analysis result.
type AnalyzeResponse struct {
	ID          string          `json:"id"`
	Portfolio   PortfolioView   `json:"portfolio"`
	Metrics     Metrics         `json:"metrics"`
	Returns     ReturnsView     `json:"returns"`
	Summary     AnalysisSummary `json:"analysis_summary"`
	Tearsheet   string          `json:"tearsheet_html,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type ValidateResponse struct {
	Valid     bool           `json:"valid"`
	Portfolio *PortfolioView `json:"portfolio,omitempty"`
	Errors    []FieldError   `json:"errors,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PriceBar is one daily OHLCV observation.
type PriceBar struct {
	Date   Date    `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// PriceSeries is the history of a symbol over a date range, oldest first.
type PriceSeries struct {
	Symbol    string     `json:"symbol"`
	Start     Date       `json:"start"`
	End       Date       `json:"end"`
	Bars      []PriceBar `json:"bars"`
	Source    string     `json:"source"` // "vci" or "tcbs"
	FetchedAt time.Time  `json:"fetched_at"`
}

// RatioRequest asks for ratios of symbols fetched from the statements provider.
type RatioRequest struct {
	Symbols []string `json:"symbols" form:"symbols"`
	Period  string   `json:"period" form:"period"` // "year" or "quarter"
}

// ComputeRatiosRequest carries caller supplied statement rows.
type ComputeRatiosRequest struct {
	Rows []StatementRow `json:"rows"`
}

// StatementRow is one period of merged financial statements for a ticker.
type StatementRow struct {
	Ticker  string             `json:"ticker"`
	Year    int                `json:"year"`
	Quarter int                `json:"quarter,omitempty"`
	Values  map[string]float64 `json:"values"`
}

type RatioResponse struct {
	Symbols  []string          `json:"symbols"`
	Period   string            `json:"period"`
	DuPont   []DuPontRow       `json:"dupont"`
	DFL      []LeverageRow     `json:"dfl"`
	Capital  []CapitalRow      `json:"capital_employed"`
	TaxRate  []TaxRow          `json:"effective_tax_rate"`
	Failures map[string]string `json:"failures,omitempty"`
}

type DuPontRow struct {
	Ticker             string   `json:"ticker"`
	Year               int      `json:"year"`
	Quarter            int      `json:"quarter,omitempty"`
	NetProfitMargin    *float64 `json:"net_profit_margin"`
	AssetTurnover      *float64 `json:"asset_turnover"`
	FinancialLeverage  *float64 `json:"financial_leverage"`
	ROEDuPont          *float64 `json:"roe_dupont"`
	ROEDirect          *float64 `json:"roe_direct"`
	AveragedAssets     float64  `json:"avg_total_assets"`
	AveragedEquity     float64  `json:"avg_owners_equity"`
	HasPriorPeriodData bool     `json:"has_prior_period"`
}

type LeverageRow struct {
	Ticker        string   `json:"ticker"`
	Year          int      `json:"year"`
	Quarter       int      `json:"quarter,omitempty"`
	NetIncomeGrow *float64 `json:"net_income_change"`
	EBITGrow      *float64 `json:"ebit_change"`
	DFL           *float64 `json:"dfl"`
}

type CapitalRow struct {
	Ticker          string  `json:"ticker"`
	Year            int     `json:"year"`
	Quarter         int     `json:"quarter,omitempty"`
	LongTermDebt    float64 `json:"long_term_debt"`
	ShortTermDebt   float64 `json:"short_term_debt"`
	OwnersEquity    float64 `json:"owners_equity"`
	CapitalEmployed float64 `json:"capital_employed"`
}

type TaxRow struct {
	Ticker           string   `json:"ticker"`
	Year             int      `json:"year"`
	Quarter          int      `json:"quarter,omitempty"`
	ProfitBeforeTax  float64  `json:"profit_before_tax"`
	TaxPaid          float64  `json:"tax_paid"`
	EffectiveTaxRate *float64 `json:"effective_tax_rate"`
}

// ErrorResponse represents API error response
type ErrorResponse struct {
	Error   string       `json:"error"`
	Kind    string       `json:"kind,omitempty"`
	Message string       `json:"message,omitempty"`
	Code    int          `json:"code"`
	Fields  []FieldError `json:"fields,omitempty"`
}
