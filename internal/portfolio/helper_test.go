package portfolio

import (
	"math"
	"time"

	"tearsheet-api/internal/config"
	"tearsheet-api/internal/models"
)

func fixedToday() models.Date { return models.NewDate(2025, time.June, 1) }

func newTestValidator() *Validator {
	return NewValidator(config.DefaultValidation()).WithClock(fixedToday)
}

// series builds a price series with one close per consecutive calendar day
// starting at start.
func series(symbol string, start models.Date, closes ...float64) *models.PriceSeries {
	s := &models.PriceSeries{Symbol: symbol}
	for i, c := range closes {
		s.Bars = append(s.Bars, models.PriceBar{Date: start.AddDays(i), Close: c})
	}
	return s
}

func almostEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }
