// Package ratios derives financial ratios from statement rows.
//
// Every calculator groups its input by ticker, orders each group by period and
// returns freshly allocated rows; the input is never modified. A ratio whose
// inputs are missing or whose denominator is (near) zero is reported as nil
// rather than as an infinity or NaN.
package ratios

import (
	"math"
	"sort"

	"tearsheet-api/internal/models"
)

// Canonical statement fields.
const (
	Revenue         = "revenue"
	NetIncome       = "net_income"
	EBIT            = "ebit"
	ProfitBeforeTax = "profit_before_tax"
	TaxPaid         = "tax_paid"
	TotalAssets     = "total_assets"
	OwnersEquity    = "owners_equity"
	LongTermDebt    = "long_term_debt"
	ShortTermDebt   = "short_term_debt"
)

// Fields lists every canonical field, in statement order.
var Fields = []string{
	Revenue, NetIncome, EBIT, ProfitBeforeTax, TaxPaid,
	TotalAssets, OwnersEquity, LongTermDebt, ShortTermDebt,
}

// Epsilon is the magnitude below which a denominator counts as zero.
const Epsilon = 1e-9

// group splits rows by ticker and sorts each group by (year, quarter). Tickers
// come back in lexical order.
func group(rows []models.StatementRow) ([]string, map[string][]models.StatementRow) {
	byTicker := map[string][]models.StatementRow{}
	for _, r := range rows {
		byTicker[r.Ticker] = append(byTicker[r.Ticker], r)
	}
	tickers := make([]string, 0, len(byTicker))
	for t, g := range byTicker {
		tickers = append(tickers, t)
		sort.SliceStable(g, func(i, j int) bool {
			if g[i].Year != g[j].Year {
				return g[i].Year < g[j].Year
			}
			return g[i].Quarter < g[j].Quarter
		})
	}
	sort.Strings(tickers)
	return tickers, byTicker
}

func value(r models.StatementRow, field string) (float64, bool) {
	v, ok := r.Values[field]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// average is (current + prior)/2, or current alone when there is no prior
// period or the prior period lacks the field.
func average(cur models.StatementRow, prior *models.StatementRow, field string) (avg float64, ok, averaged bool) {
	c, ok := value(cur, field)
	if !ok {
		return 0, false, false
	}
	if prior == nil {
		return c, true, false
	}
	p, ok := value(*prior, field)
	if !ok {
		return c, true, false
	}
	return (c + p) / 2, true, true
}

func ratio(num, den float64) *float64 {
	if math.Abs(den) < Epsilon {
		return nil
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func mul(vs ...*float64) *float64 {
	out := 1.0
	for _, v := range vs {
		if v == nil {
			return nil
		}
		out *= *v
	}
	return &out
}

// DuPont decomposes return on equity into net profit margin, asset turnover
// and financial leverage, all computed against averaged balance sheet values.
func DuPont(rows []models.StatementRow) []models.DuPontRow {
	tickers, groups := group(rows)
	out := make([]models.DuPontRow, 0, len(rows))
	for _, t := range tickers {
		var prior *models.StatementRow
		for _, cur := range groups[t] {
			row := models.DuPontRow{Ticker: cur.Ticker, Year: cur.Year, Quarter: cur.Quarter}

			assets, okA, avgA := average(cur, prior, TotalAssets)
			equity, okE, avgE := average(cur, prior, OwnersEquity)
			row.AveragedAssets, row.AveragedEquity = assets, equity
			row.HasPriorPeriodData = avgA && avgE

			ni, okNI := value(cur, NetIncome)
			rev, okRev := value(cur, Revenue)
			if okNI && okRev {
				row.NetProfitMargin = ratio(ni, rev)
			}
			if okRev && okA {
				row.AssetTurnover = ratio(rev, assets)
			}
			if okA && okE {
				row.FinancialLeverage = ratio(assets, equity)
			}
			if okNI && okE {
				row.ROEDirect = ratio(ni, equity)
			}
			row.ROEDuPont = mul(row.NetProfitMargin, row.AssetTurnover, row.FinancialLeverage)

			out = append(out, row)
			c := cur
			prior = &c
		}
	}
	return out
}

func change(cur, prior float64) *float64 {
	return ratio(cur-prior, prior)
}

// DFL computes the degree of financial leverage, %ΔNetIncome / %ΔEBIT, period
// over period. The first period of each ticker has no change and so no DFL.
func DFL(rows []models.StatementRow) []models.LeverageRow {
	tickers, groups := group(rows)
	out := make([]models.LeverageRow, 0, len(rows))
	for _, t := range tickers {
		g := groups[t]
		for i, cur := range g {
			row := models.LeverageRow{Ticker: cur.Ticker, Year: cur.Year, Quarter: cur.Quarter}
			if i > 0 {
				prev := g[i-1]
				if c, ok := value(cur, NetIncome); ok {
					if p, ok := value(prev, NetIncome); ok {
						row.NetIncomeGrow = change(c, p)
					}
				}
				if c, ok := value(cur, EBIT); ok {
					if p, ok := value(prev, EBIT); ok {
						row.EBITGrow = change(c, p)
					}
				}
				if row.NetIncomeGrow != nil && row.EBITGrow != nil {
					row.DFL = ratio(*row.NetIncomeGrow, *row.EBITGrow)
				}
			}
			out = append(out, row)
		}
	}
	return out
}

// CapitalEmployed sums long term debt, short term debt and owners' equity.
// Missing fields count as zero.
func CapitalEmployed(rows []models.StatementRow) []models.CapitalRow {
	tickers, groups := group(rows)
	out := make([]models.CapitalRow, 0, len(rows))
	for _, t := range tickers {
		for _, cur := range groups[t] {
			lt, _ := value(cur, LongTermDebt)
			st, _ := value(cur, ShortTermDebt)
			eq, _ := value(cur, OwnersEquity)
			out = append(out, models.CapitalRow{
				Ticker:          cur.Ticker,
				Year:            cur.Year,
				Quarter:         cur.Quarter,
				LongTermDebt:    lt,
				ShortTermDebt:   st,
				OwnersEquity:    eq,
				CapitalEmployed: lt + st + eq,
			})
		}
	}
	return out
}

// EffectiveTaxRate is |tax paid| / profit before tax, clipped to [0, 1].
// Statements report tax paid as a negative cash flow, hence the absolute value.
func EffectiveTaxRate(rows []models.StatementRow) []models.TaxRow {
	tickers, groups := group(rows)
	out := make([]models.TaxRow, 0, len(rows))
	for _, t := range tickers {
		for _, cur := range groups[t] {
			pbt, okP := value(cur, ProfitBeforeTax)
			tax, okT := value(cur, TaxPaid)
			row := models.TaxRow{
				Ticker: cur.Ticker, Year: cur.Year, Quarter: cur.Quarter,
				ProfitBeforeTax: pbt, TaxPaid: tax,
			}
			if okP && okT {
				if r := ratio(math.Abs(tax), pbt); r != nil {
					v := math.Min(math.Max(*r, 0), 1)
					row.EffectiveTaxRate = &v
				}
			}
			out = append(out, row)
		}
	}
	return out
}

// Compute runs every calculator over rows.
func Compute(rows []models.StatementRow) models.RatioResponse {
	tickers, _ := group(rows)
	return models.RatioResponse{
		Symbols: tickers,
		DuPont:  DuPont(rows),
		DFL:     DFL(rows),
		Capital: CapitalEmployed(rows),
		TaxRate: EffectiveTaxRate(rows),
	}
}
