package ratios

import (
	"math"
	"testing"

	"tearsheet-api/internal/models"
)

func row(ticker string, year int, values map[string]float64) models.StatementRow {
	return models.StatementRow{Ticker: ticker, Year: year, Values: values}
}

func statements() []models.StatementRow {
	// deliberately out of order
	return []models.StatementRow{
		row("REE", 2023, map[string]float64{
			Revenue: 8_500, NetIncome: 2_100, EBIT: 3_000,
			TotalAssets: 36_000, OwnersEquity: 19_000,
			LongTermDebt: 7_000, ShortTermDebt: 3_000,
			ProfitBeforeTax: 2_500, TaxPaid: -400,
		}),
		row("FMC", 2023, map[string]float64{
			Revenue: 5_000, NetIncome: 300, EBIT: 400,
			TotalAssets: 3_000, OwnersEquity: 1_500,
		}),
		row("REE", 2022, map[string]float64{
			Revenue: 9_300, NetIncome: 2_600, EBIT: 3_500,
			TotalAssets: 34_000, OwnersEquity: 17_000,
			ProfitBeforeTax: 3_000, TaxPaid: -450,
		}),
	}
}

func TestDuPont(t *testing.T) {
	got := DuPont(statements())
	if len(got) != 3 {
		t.Fatalf("len(DuPont()) = %d, want 3", len(got))
	}
	if got[0].Ticker != "FMC" || got[1].Year != 2022 || got[2].Year != 2023 {
		t.Fatalf("rows not grouped by ticker and sorted by period: %+v", got)
	}

	first := got[1]
	if first.HasPriorPeriodData {
		t.Error("first REE period should not have prior data")
	}
	if first.AveragedAssets != 34_000 {
		t.Errorf("first period averaged assets = %v, want current value", first.AveragedAssets)
	}

	second := got[2]
	if !second.HasPriorPeriodData || second.AveragedAssets != 35_000 || second.AveragedEquity != 18_000 {
		t.Errorf("second period averages = %v / %v", second.AveragedAssets, second.AveragedEquity)
	}
	if want := 2_100.0 / 8_500; math.Abs(*second.NetProfitMargin-want) > 1e-12 {
		t.Errorf("NetProfitMargin = %v, want %v", *second.NetProfitMargin, want)
	}
	if want := 8_500.0 / 35_000; math.Abs(*second.AssetTurnover-want) > 1e-12 {
		t.Errorf("AssetTurnover = %v, want %v", *second.AssetTurnover, want)
	}
	if want := 35_000.0 / 18_000; math.Abs(*second.FinancialLeverage-want) > 1e-12 {
		t.Errorf("FinancialLeverage = %v, want %v", *second.FinancialLeverage, want)
	}
}

func TestDuPont_IdentityHolds(t *testing.T) {
	for _, r := range DuPont(statements()) {
		if r.ROEDuPont == nil || r.ROEDirect == nil {
			t.Fatalf("%s %d: ROE undefined", r.Ticker, r.Year)
		}
		if math.Abs(*r.ROEDuPont-*r.ROEDirect) > 1e-12 {
			t.Errorf("%s %d: ROE DuPont %v != direct %v", r.Ticker, r.Year, *r.ROEDuPont, *r.ROEDirect)
		}
	}
}

func TestDuPont_Undefined(t *testing.T) {
	got := DuPont([]models.StatementRow{
		row("AAA", 2024, map[string]float64{NetIncome: 10, Revenue: 0, TotalAssets: 100, OwnersEquity: 50}),
		row("BBB", 2024, map[string]float64{NetIncome: 10, Revenue: 100}),
	})
	if got[0].NetProfitMargin != nil || got[0].ROEDuPont != nil {
		t.Error("zero revenue should leave margin and DuPont ROE undefined")
	}
	if got[0].ROEDirect == nil || *got[0].ROEDirect != 0.2 {
		t.Errorf("ROEDirect = %v, want 0.2", got[0].ROEDirect)
	}
	if got[1].AssetTurnover != nil || got[1].FinancialLeverage != nil || got[1].ROEDirect != nil {
		t.Errorf("missing balance sheet should leave ratios undefined: %+v", got[1])
	}
}

func TestDFL(t *testing.T) {
	rows := []models.StatementRow{
		row("AAA", 2021, map[string]float64{NetIncome: 100, EBIT: 200}),
		row("AAA", 2022, map[string]float64{NetIncome: 130, EBIT: 220}),
		row("AAA", 2023, map[string]float64{NetIncome: 150, EBIT: 220}),
		row("AAA", 2024, map[string]float64{NetIncome: 150}),
	}
	got := DFL(rows)
	if got[0].DFL != nil {
		t.Error("first period DFL should be undefined")
	}
	if got[1].DFL == nil || math.Abs(*got[1].DFL-3) > 1e-12 {
		t.Errorf("DFL 2022 = %v, want 3", got[1].DFL)
	}
	if got[2].DFL != nil {
		t.Errorf("DFL with unchanged EBIT = %v, want undefined", *got[2].DFL)
	}
	if got[3].DFL != nil || got[3].EBITGrow != nil {
		t.Error("DFL with missing EBIT should be undefined")
	}
}

func TestDFL_QuarterOrdering(t *testing.T) {
	rows := []models.StatementRow{
		{Ticker: "AAA", Year: 2024, Quarter: 2, Values: map[string]float64{NetIncome: 120, EBIT: 110}},
		{Ticker: "AAA", Year: 2024, Quarter: 1, Values: map[string]float64{NetIncome: 100, EBIT: 100}},
	}
	got := DFL(rows)
	if got[0].Quarter != 1 || got[1].DFL == nil || math.Abs(*got[1].DFL-2) > 1e-9 {
		t.Errorf("DFL() = %+v", got)
	}
}

func TestCapitalEmployed(t *testing.T) {
	got := CapitalEmployed(statements())
	want := map[int]float64{2022: 17_000, 2023: 29_000}
	for _, r := range got {
		if r.Ticker != "REE" {
			continue
		}
		if r.CapitalEmployed != want[r.Year] {
			t.Errorf("REE %d capital employed = %v, want %v", r.Year, r.CapitalEmployed, want[r.Year])
		}
	}
}

func TestEffectiveTaxRate(t *testing.T) {
	got := EffectiveTaxRate([]models.StatementRow{
		row("AAA", 2022, map[string]float64{ProfitBeforeTax: 1_000, TaxPaid: -200}),
		row("AAA", 2023, map[string]float64{ProfitBeforeTax: -500, TaxPaid: -10}),
		row("AAA", 2024, map[string]float64{ProfitBeforeTax: 10, TaxPaid: -50}),
		row("AAA", 2025, map[string]float64{ProfitBeforeTax: 0, TaxPaid: -50}),
	})
	want := []*float64{ptr(0.2), ptr(0), ptr(1), nil}
	for i, w := range want {
		g := got[i].EffectiveTaxRate
		switch {
		case w == nil && g != nil:
			t.Errorf("row %d: rate = %v, want undefined", i, *g)
		case w != nil && (g == nil || *g != *w):
			t.Errorf("row %d: rate = %v, want %v", i, g, *w)
		}
	}
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	in := statements()
	res := Compute(in)
	if in[0].Year != 2023 || in[0].Ticker != "REE" {
		t.Error("input rows were reordered")
	}
	if len(res.Symbols) != 2 || res.Symbols[0] != "FMC" {
		t.Errorf("Symbols = %v", res.Symbols)
	}
}

func ptr(v float64) *float64 { return &v }
