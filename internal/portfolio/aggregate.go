package portfolio

import (
	"math"
	"slices"
	"sort"
	"time"

	"tearsheet-api/internal/apperr"
	"tearsheet-api/internal/models"
)

// PriceTable holds closing prices on the dates shared by every symbol.
// Closes[i][t] is the close of Symbols[i] on Dates[t].
type PriceTable struct {
	Dates   []models.Date
	Symbols []string
	Closes  [][]float64
}

// Column returns the closes of symbol, or nil when the table does not hold it.
func (t *PriceTable) Column(symbol string) []float64 {
	for i, s := range t.Symbols {
		if s == symbol {
			return t.Closes[i]
		}
	}
	return nil
}

// AlignReport tells how many dates of each symbol were dropped by the join.
type AlignReport struct {
	Dropped map[string]int
}

// ReturnSeries is a date indexed sequence of simple returns.
type ReturnSeries struct {
	Dates  []models.Date
	Values []float64
}

func (r ReturnSeries) Len() int { return len(r.Values) }

// AlignPrices joins the series on the dates for which every symbol has a
// close (inner join). Dates missing for any symbol are dropped rather than
// forward filled, so no return is ever computed from a stale price.
func AlignPrices(series []*models.PriceSeries) (*PriceTable, AlignReport, error) {
	report := AlignReport{Dropped: map[string]int{}}
	if len(series) == 0 {
		return nil, report, apperr.New(apperr.KindAnalysis, "no price series to align")
	}

	byDate := make([]map[time.Time]float64, len(series))
	count := map[time.Time]int{}
	for i, s := range series {
		byDate[i] = make(map[time.Time]float64, len(s.Bars))
		for _, b := range s.Bars {
			if _, dup := byDate[i][b.Date.Time]; dup {
				continue
			}
			byDate[i][b.Date.Time] = b.Close
			count[b.Date.Time]++
		}
	}

	var common []time.Time
	for d, c := range count {
		if c == len(series) {
			common = append(common, d)
		}
	}
	sort.Slice(common, func(i, j int) bool { return common[i].Before(common[j]) })

	table := &PriceTable{Closes: make([][]float64, len(series))}
	for _, d := range common {
		table.Dates = append(table.Dates, models.Date{Time: d})
	}
	for i, s := range series {
		table.Symbols = append(table.Symbols, s.Symbol)
		if dropped := len(byDate[i]) - len(common); dropped > 0 {
			report.Dropped[s.Symbol] = dropped
		}
		closes := make([]float64, len(common))
		for t, d := range common {
			c := byDate[i][d]
			if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
				return nil, report, apperr.New(apperr.KindAnalysis,
					"invalid close %v for %s on %s", c, s.Symbol, models.Date{Time: d})
			}
			closes[t] = c
		}
		table.Closes[i] = closes
	}
	return table, report, nil
}

// DailyReturns computes r[t] = price[t]/price[t-1] - 1. The result has one
// element less than closes.
func DailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for t := 1; t < len(closes); t++ {
		out[t-1] = closes[t]/closes[t-1] - 1
	}
	return out
}

// WeightedReturns combines the per-symbol daily returns of the table into the
// portfolio return Σ weight_i * r_i[t]. Weights are fixed at their initial
// allocation; there is no rebalancing and no transaction cost.
func WeightedReturns(table *PriceTable, holdings []Holding) (ReturnSeries, error) {
	if table == nil || len(table.Dates) < 2 {
		return ReturnSeries{}, apperr.New(apperr.KindAnalysis,
			"not enough overlapping trading days to compute returns")
	}

	n := len(table.Dates) - 1
	values := make([]float64, n)
	for _, h := range holdings {
		closes := table.Column(h.Symbol)
		if closes == nil {
			return ReturnSeries{}, apperr.New(apperr.KindAnalysis, "missing price column for %s", h.Symbol)
		}
		for t, r := range DailyReturns(closes) {
			values[t] += h.Weight * r
		}
	}
	for t, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ReturnSeries{}, apperr.New(apperr.KindAnalysis,
				"invalid portfolio return on %s", table.Dates[t+1])
		}
	}

	dates := make([]models.Date, n)
	copy(dates, table.Dates[1:])
	return ReturnSeries{Dates: dates, Values: values}, nil
}

// Equity compounds returns into a value curve starting at initial. The curve
// has one point more than the series, the first one being initial.
func Equity(r ReturnSeries, initial float64) []float64 {
	out := make([]float64, r.Len()+1)
	out[0] = initial
	for i, v := range r.Values {
		out[i+1] = out[i] * (1 + v)
	}
	return out
}

// Drawdowns returns, for every point of the compounded curve, the relative
// distance to its running peak (always ≤ 0).
func Drawdowns(r ReturnSeries) []float64 {
	curve := Equity(r, 1)
	out := make([]float64, r.Len())
	peak := curve[0]
	for i := 1; i < len(curve); i++ {
		if curve[i] > peak {
			peak = curve[i]
		}
		out[i-1] = curve[i]/peak - 1
	}
	return out
}

// Intersect restricts two return series to their common dates.
func Intersect(a, b ReturnSeries) (ReturnSeries, ReturnSeries) {
	idx := make(map[time.Time]int, b.Len())
	for i, d := range b.Dates {
		idx[d.Time] = i
	}
	var oa, ob ReturnSeries
	for i, d := range a.Dates {
		j, ok := idx[d.Time]
		if !ok {
			continue
		}
		oa.Dates = append(oa.Dates, d)
		oa.Values = append(oa.Values, a.Values[i])
		ob.Dates = append(ob.Dates, d)
		ob.Values = append(ob.Values, b.Values[j])
	}
	return oa, ob
}

// BenchmarkReturns aligns the constituents together with the benchmark and
// returns the portfolio and benchmark returns over identical intervals. Any
// day missing from one series is dropped from both before returns are taken.
func BenchmarkReturns(constituents []*models.PriceSeries, holdings []Holding, benchmark *models.PriceSeries) (ReturnSeries, ReturnSeries, error) {
	all := make([]*models.PriceSeries, 0, len(constituents)+1)
	all = append(all, constituents...)
	all = append(all, benchmark)
	table, _, err := AlignPrices(all)
	if err != nil {
		return ReturnSeries{}, ReturnSeries{}, err
	}
	p, err := WeightedReturns(table, holdings)
	if err != nil {
		return ReturnSeries{}, ReturnSeries{}, err
	}
	b := ReturnSeries{
		Dates:  slices.Clone(p.Dates),
		Values: DailyReturns(table.Closes[len(all)-1]),
	}
	return p, b, nil
}
