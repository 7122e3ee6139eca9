// Package tearsheet renders the performance report of an analysed portfolio:
// a markdown document, and an HTML page built from it with embedded SVG charts.
package tearsheet

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"tearsheet-api/internal/apperr"
	"tearsheet-api/internal/models"
	"tearsheet-api/internal/portfolio"
)

// Input is everything a report is built from.
type Input struct {
	ID              string
	Portfolio       *portfolio.Portfolio
	Metrics         *models.Metrics
	Returns         portfolio.ReturnSeries
	Benchmark       *portfolio.ReturnSeries
	BenchmarkSymbol string
	Align           portfolio.AlignReport
	GeneratedAt     time.Time
}

// Commentator writes a short narrative about a markdown report.
type Commentator interface {
	Comment(ctx context.Context, report string) (string, error)
}

type Renderer struct {
	commentator Commentator
	log         zerolog.Logger
	md          goldmark.Markdown
}

// NewRenderer builds a renderer; commentator may be nil.
func NewRenderer(commentator Commentator, log zerolog.Logger) *Renderer {
	return &Renderer{
		commentator: commentator,
		log:         log.With().Str("component", "tearsheet").Logger(),
		// raw HTML in the markdown, commentary included, is dropped
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Markdown renders the report body. Commentary is appended when a
// commentator is configured and answers; its failures are only logged.
func (r *Renderer) Markdown(ctx context.Context, in Input) (string, error) {
	if in.Portfolio == nil || in.Metrics == nil {
		return "", apperr.New(apperr.KindExport, "tearsheet needs a portfolio and its metrics")
	}

	var b strings.Builder
	p, m := in.Portfolio, in.Metrics

	title := p.Name
	if title == "" {
		title = "Portfolio"
	}
	fmt.Fprintf(&b, "# %s tearsheet\n\n", title)
	fmt.Fprintf(&b, "Period **%s** to **%s** · %d trading days · initial capital **%s**\n\n",
		m.StartDate, m.EndDate, m.TotalPeriods, portfolio.FormatMoney(p.Capital))

	b.WriteString("## Composition\n\n")
	b.WriteString("| Symbol | Weight | Allocation |\n|---|---:|---:|\n")
	alloc := p.Allocation()
	for _, h := range p.Holdings {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", h.Symbol, pct(h.Weight), portfolio.FormatMoney(alloc[h.Symbol]))
	}

	b.WriteString("\n## Performance\n\n")
	b.WriteString("| Metric | Value |\n|---|---:|\n")
	rows := [][2]string{
		{"Total return", pct(m.TotalReturn)},
		{"Annualized return", pct(m.AnnualizedReturn)},
		{"Annualized volatility", pct(m.Volatility)},
		{"Sharpe ratio", num(m.SharpeRatio)},
		{"Sortino ratio", num(m.SortinoRatio)},
		{"Calmar ratio", num(m.CalmarRatio)},
		{"Max drawdown", pct(m.MaxDrawdown)},
		{"Win rate", pct(m.WinRate)},
		{"Best day", pct(m.BestDay)},
		{"Worst day", pct(m.WorstDay)},
	}
	if m.Beta != nil {
		rows = append(rows, [2]string{"Beta vs " + in.BenchmarkSymbol, num(*m.Beta)})
	}
	rows = append(rows, [2]string{"Final value", portfolio.FormatMoney(decimal.NewFromFloat(m.FinalValue).Round(0))})
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", row[0], row[1])
	}

	if months := MonthlyReturns(in.Returns); len(months) > 0 {
		b.WriteString("\n## Monthly returns\n\n")
		writeMonthly(&b, months)
	}

	b.WriteString("\n## Drawdowns\n\n")
	writeDrawdowns(&b, in.Returns)

	if len(in.Align.Dropped) > 0 {
		b.WriteString("\n## Data notes\n\n")
		syms := make([]string, 0, len(in.Align.Dropped))
		for s := range in.Align.Dropped {
			syms = append(syms, s)
		}
		sort.Strings(syms)
		for _, s := range syms {
			fmt.Fprintf(&b, "- %s: %d non-common trading days dropped\n", s, in.Align.Dropped[s])
		}
	}

	if r.commentator != nil {
		comment, err := r.commentator.Comment(ctx, b.String())
		if err != nil {
			r.log.Warn().Err(err).Str("report", in.ID).Msg("commentary unavailable")
		} else if comment = strings.TrimSpace(comment); comment != "" {
			b.WriteString("\n## Commentary\n\n")
			b.WriteString(comment)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

var page = template.Must(template.New("tearsheet").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{font-family:-apple-system,"Segoe UI",Roboto,sans-serif;max-width:960px;margin:2rem auto;color:#222}
table{border-collapse:collapse;margin:1rem 0}
th,td{border:1px solid #ddd;padding:.3rem .7rem}
.chart{margin:1.5rem 0}
footer{color:#888;font-size:.8rem}
</style>
</head>
<body>
{{.Body}}
<h2>Charts</h2>
{{range .Charts}}<div class="chart">{{.}}</div>
{{end}}
<footer>Report {{.ID}} generated {{.Generated}}</footer>
</body>
</html>
`))

// HTML renders the full tearsheet page.
func (r *Renderer) HTML(ctx context.Context, in Input) (string, error) {
	md, err := r.Markdown(ctx, in)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	if err := r.md.Convert([]byte(md), &body); err != nil {
		return "", apperr.Wrap(apperr.KindExport, err, "convert tearsheet markdown")
	}

	svgs, err := Charts(in)
	if err != nil {
		return "", apperr.Wrap(apperr.KindExport, err, "render tearsheet charts")
	}
	charts := make([]template.HTML, len(svgs))
	for i, s := range svgs {
		charts[i] = template.HTML(s)
	}

	title := "Portfolio tearsheet"
	if in.Portfolio.Name != "" {
		title = in.Portfolio.Name + " tearsheet"
	}
	var out bytes.Buffer
	err = page.Execute(&out, map[string]any{
		"Title":     title,
		"Body":      template.HTML(body.String()),
		"Charts":    charts,
		"ID":        in.ID,
		"Generated": in.GeneratedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindExport, err, "render tearsheet page")
	}
	return out.String(), nil
}

// MonthReturn is the compounded return of one calendar month.
type MonthReturn struct {
	Year   int
	Month  time.Month
	Return float64
}

// MonthlyReturns compounds daily returns per calendar month, oldest first.
func MonthlyReturns(r portfolio.ReturnSeries) []MonthReturn {
	var out []MonthReturn
	for i, d := range r.Dates {
		y, m := d.Year(), d.Month()
		if n := len(out); n == 0 || out[n-1].Year != y || out[n-1].Month != m {
			out = append(out, MonthReturn{Year: y, Month: m, Return: 0})
		}
		last := &out[len(out)-1]
		last.Return = (1+last.Return)*(1+r.Values[i]) - 1
	}
	return out
}

func writeMonthly(b *strings.Builder, months []MonthReturn) {
	b.WriteString("| Year |")
	for m := time.January; m <= time.December; m++ {
		fmt.Fprintf(b, " %s |", m.String()[:3])
	}
	b.WriteString(" Year |\n|---|")
	b.WriteString(strings.Repeat("---:|", 13))
	b.WriteString("\n")

	byYear := map[int]map[time.Month]float64{}
	var years []int
	for _, mr := range months {
		if _, ok := byYear[mr.Year]; !ok {
			byYear[mr.Year] = map[time.Month]float64{}
			years = append(years, mr.Year)
		}
		byYear[mr.Year][mr.Month] = mr.Return
	}
	for _, y := range years {
		fmt.Fprintf(b, "| %d |", y)
		total := 1.0
		for m := time.January; m <= time.December; m++ {
			v, ok := byYear[y][m]
			if !ok {
				b.WriteString("  |")
				continue
			}
			total *= 1 + v
			fmt.Fprintf(b, " %s |", pct(v))
		}
		fmt.Fprintf(b, " %s |\n", pct(total-1))
	}
}

// writeDrawdowns lists the worst peak to trough episodes.
func writeDrawdowns(b *strings.Builder, r portfolio.ReturnSeries) {
	eps := Episodes(r)
	if len(eps) == 0 {
		b.WriteString("No drawdown over the period.\n")
		return
	}
	sort.SliceStable(eps, func(i, j int) bool { return eps[i].Depth < eps[j].Depth })
	if len(eps) > 5 {
		eps = eps[:5]
	}
	b.WriteString("| Start | Trough | Recovered | Depth |\n|---|---|---|---:|\n")
	for _, e := range eps {
		rec := "not yet"
		if !e.Recovery.IsZero() {
			rec = e.Recovery.String()
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n", e.Start, e.Trough, rec, pct(e.Depth))
	}
}

// Episode is one drawdown, from the last peak to recovery.
type Episode struct {
	Start    models.Date
	Trough   models.Date
	Recovery models.Date
	Depth    float64
}

// Episodes splits the drawdown curve into its distinct episodes.
func Episodes(r portfolio.ReturnSeries) []Episode {
	dd := portfolio.Drawdowns(r)
	var out []Episode
	var cur *Episode
	for i, v := range dd {
		switch {
		case v < 0 && cur == nil:
			start := r.Dates[i]
			if i > 0 {
				start = r.Dates[i-1]
			}
			cur = &Episode{Start: start, Trough: r.Dates[i], Depth: v}
		case v < 0:
			if v < cur.Depth {
				cur.Depth, cur.Trough = v, r.Dates[i]
			}
		case cur != nil:
			cur.Recovery = r.Dates[i]
			out = append(out, *cur)
			cur = nil
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

func pct(v float64) string { return fmt.Sprintf("%.2f%%", v*100) }

func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
