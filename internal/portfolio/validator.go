package portfolio

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"tearsheet-api/internal/apperr"
	"tearsheet-api/internal/config"
	"tearsheet-api/internal/models"
)

var (
	symbolPattern = regexp.MustCompile(`^[A-Z]{3,4}$`)
	unsafeChars   = regexp.MustCompile(`[<>"';\\]`)
)

const maxNameLength = 50

// Input is the raw, unvalidated portfolio submission.
type Input struct {
	Symbols   []string
	Weights   []float64
	Capital   float64
	StartDate string
	EndDate   string
	Name      string
}

// InputFromRequest adapts the HTTP request body.
func InputFromRequest(req models.AnalyzeRequest) Input {
	return Input{
		Symbols:   req.Symbols,
		Weights:   req.Weights,
		Capital:   req.Capital,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Name:      req.Name,
	}
}

// Validator rejects malformed portfolios before any external call is made.
type Validator struct {
	rules config.Validation
	today func() models.Date
}

func NewValidator(rules config.Validation) *Validator {
	return &Validator{rules: rules, today: Today}
}

// WithClock returns a copy of v using today as the current date.
func (v *Validator) WithClock(today func() models.Date) *Validator {
	c := *v
	c.today = today
	return &c
}

// Validate checks every field of in and returns the normalised portfolio.
// All failing fields are reported together in an *apperr.Error of kind
// validation.
func (v *Validator) Validate(in Input) (*Portfolio, error) {
	var fields []apperr.FieldError

	symbols, errs := v.checkSymbols(in.Symbols)
	fields = append(fields, errs...)

	n := len(symbols)
	if n == 0 {
		n = len(in.Symbols)
	}
	weights, errs := v.checkWeights(in.Weights, n)
	fields = append(fields, errs...)

	capital, errs := v.checkCapital(in.Capital)
	fields = append(fields, errs...)

	start, end, errs := v.checkDates(in.StartDate, in.EndDate, v.rules.MinWindowDays)
	fields = append(fields, errs...)

	if len(fields) > 0 {
		return nil, apperr.Validation(fields...)
	}

	p := &Portfolio{
		Name:      SanitizeName(in.Name),
		Capital:   capital,
		StartDate: start,
		EndDate:   end,
	}
	for i, s := range symbols {
		p.Holdings = append(p.Holdings, Holding{Symbol: s, Weight: weights[i]})
	}
	return p, nil
}

// ValidateSymbols checks a symbol list on its own, as the ratio endpoints do.
func (v *Validator) ValidateSymbols(symbols []string) ([]string, error) {
	out, errs := v.checkSymbols(symbols)
	if len(errs) > 0 {
		return nil, apperr.Validation(errs...)
	}
	return out, nil
}

// ValidateRange applies the date rules of a portfolio to a bare history
// request, except the minimum window: any range of at least one day passes.
// An empty end defaults to today and an empty start to a year before end.
func (v *Validator) ValidateRange(rawStart, rawEnd string) (start, end models.Date, err error) {
	if rawEnd == "" {
		rawEnd = v.today().String()
	}
	if rawStart == "" {
		if e, perr := models.ParseDate(rawEnd); perr == nil {
			rawStart = e.AddDays(-365).String()
		}
	}
	start, end, errs := v.checkDates(rawStart, rawEnd, 0)
	if len(errs) > 0 {
		return start, end, apperr.Validation(errs...)
	}
	return start, end, nil
}

func (v *Validator) checkSymbols(raw []string) ([]string, []apperr.FieldError) {
	var cleaned []string
	for _, s := range raw {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return nil, []apperr.FieldError{{Field: "symbols", Code: "required", Message: "at least one symbol is required"}}
	}

	var errs []apperr.FieldError
	if len(cleaned) > v.rules.MaxSymbols {
		errs = append(errs, apperr.FieldError{
			Field: "symbols", Code: "too_many",
			Message: fmt.Sprintf("portfolio cannot exceed %d stocks", v.rules.MaxSymbols),
		})
	}
	seen := make(map[string]bool, len(cleaned))
	for _, s := range cleaned {
		if seen[s] {
			errs = append(errs, apperr.FieldError{Field: "symbols", Code: "duplicate", Message: "duplicate symbol " + s})
		}
		seen[s] = true
		if !symbolPattern.MatchString(s) {
			errs = append(errs, apperr.FieldError{
				Field: "symbols", Code: "format",
				Message: fmt.Sprintf("invalid symbol %q: expected 3 or 4 letters", s),
			})
		}
	}
	return cleaned, errs
}

// checkWeights validates and normalises weights so they sum exactly to 1.
func (v *Validator) checkWeights(weights []float64, numSymbols int) ([]float64, []apperr.FieldError) {
	if len(weights) == 0 {
		return nil, []apperr.FieldError{{Field: "weights", Code: "required", Message: "weights are required"}}
	}
	if len(weights) != numSymbols {
		return nil, []apperr.FieldError{{
			Field: "weights", Code: "count",
			Message: fmt.Sprintf("got %d weights for %d symbols", len(weights), numSymbols),
		}}
	}

	sum := 0.0
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 || w > 1 {
			return nil, []apperr.FieldError{{
				Field: "weights", Code: "range",
				Message: fmt.Sprintf("weight #%d (%g) must be between 0 and 1", i+1, w),
			}}
		}
		sum += w
	}
	if math.Abs(sum-1) > v.rules.WeightTolerance {
		return nil, []apperr.FieldError{{
			Field: "weights", Code: "sum",
			Message: fmt.Sprintf("weights sum to %.6g, must sum to 1 within %g", sum, v.rules.WeightTolerance),
		}}
	}

	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = w / sum
	}
	return out, nil
}

func (v *Validator) checkCapital(c float64) (decimal.Decimal, []apperr.FieldError) {
	switch {
	case math.IsNaN(c) || math.IsInf(c, 0) || c <= 0:
		return decimal.Zero, []apperr.FieldError{{Field: "capital", Code: "positive", Message: "capital must be a positive number"}}
	case c < v.rules.MinCapital:
		return decimal.Zero, []apperr.FieldError{{
			Field: "capital", Code: "too_small",
			Message: fmt.Sprintf("capital must be at least %s", FormatMoney(decimal.NewFromFloat(v.rules.MinCapital))),
		}}
	case c > v.rules.MaxCapital:
		return decimal.Zero, []apperr.FieldError{{
			Field: "capital", Code: "too_large",
			Message: fmt.Sprintf("capital must not exceed %s", FormatMoney(decimal.NewFromFloat(v.rules.MaxCapital))),
		}}
	}
	return decimal.NewFromFloat(c), nil
}

func (v *Validator) checkDates(rawStart, rawEnd string, minWindow int) (start, end models.Date, errs []apperr.FieldError) {
	start, err := models.ParseDate(rawStart)
	if err != nil {
		errs = append(errs, apperr.FieldError{Field: "start_date", Code: "format", Message: "date must be in YYYY-MM-DD format"})
	}
	end, err = models.ParseDate(rawEnd)
	if err != nil {
		errs = append(errs, apperr.FieldError{Field: "end_date", Code: "format", Message: "date must be in YYYY-MM-DD format"})
	}
	if len(errs) > 0 {
		return start, end, errs
	}

	today := v.today()
	days := start.DaysUntil(end)
	switch {
	case !end.After(start.Time):
		errs = append(errs, apperr.FieldError{Field: "end_date", Code: "end_before_start", Message: "end date must be after start date"})
	case days < minWindow:
		errs = append(errs, apperr.FieldError{
			Field: "end_date", Code: "window_too_short",
			Message: fmt.Sprintf("date range must cover at least %d days", minWindow),
		})
	case days > v.rules.MaxWindowDays:
		errs = append(errs, apperr.FieldError{
			Field: "end_date", Code: "window_too_long",
			Message: fmt.Sprintf("date range too large (max %d days)", v.rules.MaxWindowDays),
		})
	}
	if end.After(today.Time) {
		errs = append(errs, apperr.FieldError{Field: "end_date", Code: "end_in_future", Message: "end date cannot be in the future"})
	}
	if start.Before(today.AddDays(-v.rules.MaxLookbackDays).Time) {
		errs = append(errs, apperr.FieldError{
			Field: "start_date", Code: "too_old",
			Message: fmt.Sprintf("start date cannot be more than %d days ago", v.rules.MaxLookbackDays),
		})
	}
	return start, end, errs
}

// SanitizeName trims the optional portfolio name and strips markup characters.
func SanitizeName(name string) string {
	name = unsafeChars.ReplaceAllString(strings.TrimSpace(name), "")
	if r := []rune(name); len(r) > maxNameLength {
		name = string(r[:maxNameLength])
	}
	return name
}

// FieldErrors converts a validation error to its wire form. Other errors yield nil.
func FieldErrors(err error) []models.FieldError {
	var e *apperr.Error
	if !errors.As(err, &e) {
		return nil
	}
	var out []models.FieldError
	for _, f := range e.Fields {
		out = append(out, models.FieldError{Field: f.Field, Code: f.Code, Message: f.Message})
	}
	return out
}
