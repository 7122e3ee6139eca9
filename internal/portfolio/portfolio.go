// Package portfolio validates portfolio submissions and turns price history into
// a portfolio return series and its performance statistics.
package portfolio

import (
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"tearsheet-api/internal/models"
)

// Currency of every capital amount handled by the service.
const Currency = money.VND

// Holding is a symbol and its fixed allocation weight.
type Holding struct {
	Symbol string
	Weight float64
}

// Portfolio is a validated submission. It lives for one request.
type Portfolio struct {
	Name      string
	Holdings  []Holding
	Capital   decimal.Decimal
	StartDate models.Date
	EndDate   models.Date
}

func (p *Portfolio) Symbols() []string {
	out := make([]string, len(p.Holdings))
	for i, h := range p.Holdings {
		out[i] = h.Symbol
	}
	return out
}

func (p *Portfolio) Weights() []float64 {
	out := make([]float64, len(p.Holdings))
	for i, h := range p.Holdings {
		out[i] = h.Weight
	}
	return out
}

func (p *Portfolio) TotalWeight() float64 {
	total := 0.0
	for _, h := range p.Holdings {
		total += h.Weight
	}
	return total
}

// Allocation returns the capital assigned to each symbol, rounded to whole dong.
func (p *Portfolio) Allocation() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(p.Holdings))
	for _, h := range p.Holdings {
		out[h.Symbol] = p.Capital.Mul(decimal.NewFromFloat(h.Weight)).Round(0)
	}
	return out
}

// FormatMoney renders an amount in whole dong with the currency sign.
func FormatMoney(amount decimal.Decimal) string {
	return money.New(amount.Round(0).IntPart(), Currency).Display()
}

// View converts the portfolio to its wire representation.
func (p *Portfolio) View() models.PortfolioView {
	alloc := p.Allocation()
	v := models.PortfolioView{
		Name:        p.Name,
		Capital:     p.Capital,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		TotalWeight: p.TotalWeight(),
	}
	for _, h := range p.Holdings {
		v.Holdings = append(v.Holdings, models.HoldingView{
			Symbol:     h.Symbol,
			Weight:     h.Weight,
			Allocation: alloc[h.Symbol],
		})
	}
	return v
}

var vietnam = loadVietnam()

func loadVietnam() *time.Location {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}

// Today returns the current calendar day on the Vietnamese exchanges.
func Today() models.Date {
	return models.DateOf(time.Now().In(vietnam))
}
