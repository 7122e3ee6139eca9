package tearsheet

import (
	"fmt"

	"github.com/vicanso/go-charts/v2"

	"tearsheet-api/internal/portfolio"
)

const (
	chartWidth  = 900
	chartHeight = 360
)

// Charts renders the cumulative return, drawdown and composition charts as
// SVG documents.
func Charts(in Input) ([]string, error) {
	if in.Returns.Len() == 0 {
		return nil, nil
	}
	cum, err := cumulativeChart(in)
	if err != nil {
		return nil, fmt.Errorf("cumulative chart: %w", err)
	}
	dd, err := drawdownChart(in.Returns)
	if err != nil {
		return nil, fmt.Errorf("drawdown chart: %w", err)
	}
	out := []string{cum, dd}
	if in.Portfolio != nil && len(in.Portfolio.Holdings) > 1 {
		pie, err := compositionChart(in.Portfolio)
		if err != nil {
			return nil, fmt.Errorf("composition chart: %w", err)
		}
		out = append(out, pie)
	}
	return out, nil
}

func labels(r portfolio.ReturnSeries) []string {
	out := make([]string, r.Len())
	for i, d := range r.Dates {
		out[i] = d.String()
	}
	return out
}

// splitFor keeps roughly eight labels on the x axis.
func splitFor(n int) int {
	return max(min(n, 8), 1)
}

// cumulative turns returns into a percentage growth curve.
func cumulative(r portfolio.ReturnSeries) []float64 {
	eq := portfolio.Equity(r, 1)[1:]
	for i := range eq {
		eq[i] = (eq[i] - 1) * 100
	}
	return eq
}

func cumulativeChart(in Input) (string, error) {
	values := [][]float64{cumulative(in.Returns)}
	legend := []string{"Portfolio"}
	if in.Benchmark != nil && in.Benchmark.Len() > 0 {
		// restrict the benchmark to portfolio dates, carrying the last value over gaps
		_, bench := portfolio.Intersect(in.Returns, *in.Benchmark)
		byDate := map[string]float64{}
		for i, v := range cumulative(bench) {
			byDate[bench.Dates[i].String()] = v
		}
		line := make([]float64, in.Returns.Len())
		last := 0.0
		for i, d := range in.Returns.Dates {
			if v, ok := byDate[d.String()]; ok {
				last = v
			}
			line[i] = last
		}
		values = append(values, line)
		legend = append(legend, in.BenchmarkSymbol)
	}

	p, err := charts.LineRender(
		values,
		charts.SVGTypeOption(),
		charts.TitleTextOptionFunc("Cumulative return (%)"),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels(in.Returns),
			SplitNumber: splitFor(in.Returns.Len()),
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.LegendOptionFunc(charts.LegendOption{Data: legend, Left: charts.PositionRight}),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return "", err
	}
	buf, err := p.Bytes()
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func drawdownChart(r portfolio.ReturnSeries) (string, error) {
	dd := portfolio.Drawdowns(r)
	for i := range dd {
		dd[i] *= 100
	}
	p, err := charts.LineRender(
		[][]float64{dd},
		charts.SVGTypeOption(),
		charts.TitleTextOptionFunc("Drawdown (%)"),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels(r),
			SplitNumber: splitFor(r.Len()),
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return "", err
	}
	buf, err := p.Bytes()
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func compositionChart(p *portfolio.Portfolio) (string, error) {
	var values []float64
	var names []string
	for _, h := range p.Holdings {
		if h.Weight <= 0 {
			continue
		}
		values = append(values, h.Weight*100)
		names = append(names, h.Symbol)
	}
	painter, err := charts.PieRender(
		values,
		charts.SVGTypeOption(),
		charts.TitleTextOptionFunc("Composition"),
		charts.LegendOptionFunc(charts.LegendOption{Data: names, Top: charts.PositionBottom}),
		charts.PieSeriesShowLabel(),
		charts.WidthOptionFunc(chartWidth/2),
		charts.HeightOptionFunc(chartHeight),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return "", err
	}
	buf, err := painter.Bytes()
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
