package portfolio

import (
	"math"

	"tearsheet-api/internal/apperr"
	"tearsheet-api/internal/models"
)

// TradingDaysPerYear is the annualisation factor for daily returns.
const TradingDaysPerYear = 252.0

// ComputeMetrics derives the performance statistics of a daily return series.
// riskFree is an annual rate. A series shorter than two observations, or any
// statistic that comes out NaN or infinite, is an analysis error.
func ComputeMetrics(r ReturnSeries, capital, riskFree float64) (*models.Metrics, error) {
	n := r.Len()
	if n == 0 {
		return nil, apperr.New(apperr.KindAnalysis, "no returns data available for metrics calculation")
	}
	if n < 2 {
		return nil, apperr.New(apperr.KindAnalysis, "need at least 2 return observations for statistics, got %d", n)
	}

	growth := 1.0
	mean := 0.0
	wins := 0
	best, worst := r.Values[0], r.Values[0]
	for _, v := range r.Values {
		growth *= 1 + v
		mean += v
		if v > 0 {
			wins++
		}
		best = math.Max(best, v)
		worst = math.Min(worst, v)
	}
	mean /= float64(n)

	variance, downside := 0.0, 0.0
	for _, v := range r.Values {
		variance += (v - mean) * (v - mean)
		if v < 0 {
			downside += v * v
		}
	}
	variance /= float64(n - 1)
	downside = math.Sqrt(downside/float64(n)) * math.Sqrt(TradingDaysPerYear)

	annualized := math.Pow(1+mean, TradingDaysPerYear) - 1
	volatility := math.Sqrt(variance) * math.Sqrt(TradingDaysPerYear)
	excess := annualized - riskFree

	maxDD := 0.0
	for _, dd := range Drawdowns(r) {
		maxDD = math.Min(maxDD, dd)
	}

	m := &models.Metrics{
		TotalReturn:      growth - 1,
		AnnualizedReturn: annualized,
		Volatility:       volatility,
		SharpeRatio:      safeDiv(excess, volatility),
		SortinoRatio:     safeDiv(excess, downside),
		CalmarRatio:      safeDiv(annualized, math.Abs(maxDD)),
		MaxDrawdown:      maxDD,
		WinRate:          float64(wins) / float64(n),
		BestDay:          best,
		WorstDay:         worst,
		FinalValue:       capital * growth,
		TotalPeriods:     n,
		StartDate:        r.Dates[0],
		EndDate:          r.Dates[n-1],
	}

	for name, v := range map[string]float64{
		"total return":      m.TotalReturn,
		"annualized return": m.AnnualizedReturn,
		"volatility":        m.Volatility,
		"sharpe ratio":      m.SharpeRatio,
		"sortino ratio":     m.SortinoRatio,
		"calmar ratio":      m.CalmarRatio,
		"max drawdown":      m.MaxDrawdown,
		"final value":       m.FinalValue,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, apperr.New(apperr.KindAnalysis, "invalid %s: %v", name, v)
		}
	}
	return m, nil
}

// Beta is cov(portfolio, benchmark) / var(benchmark) over the common dates.
// ok is false when fewer than two dates overlap or the benchmark is flat.
func Beta(portfolio, benchmark ReturnSeries) (beta float64, ok bool) {
	p, b := Intersect(portfolio, benchmark)
	n := p.Len()
	if n < 2 {
		return 0, false
	}
	mp, mb := 0.0, 0.0
	for i := range p.Values {
		mp += p.Values[i]
		mb += b.Values[i]
	}
	mp /= float64(n)
	mb /= float64(n)

	cov, varB := 0.0, 0.0
	for i := range p.Values {
		cov += (p.Values[i] - mp) * (b.Values[i] - mb)
		varB += (b.Values[i] - mb) * (b.Values[i] - mb)
	}
	if varB == 0 {
		return 0, false
	}
	beta = cov / varB
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0, false
	}
	return beta, true
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
