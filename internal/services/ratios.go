package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tearsheet-api/internal/apperr"
	"tearsheet-api/internal/models"
	"tearsheet-api/internal/portfolio"
	"tearsheet-api/internal/ratios"
	"tearsheet-api/pkg/tcbs"
)

// RatioService fetches financial statements and derives ratios from them.
type RatioService struct {
	validator  *portfolio.Validator
	marketData *MarketDataService
	log        zerolog.Logger
}

func NewRatioService(validator *portfolio.Validator, marketData *MarketDataService, log zerolog.Logger) *RatioService {
	return &RatioService{
		validator:  validator,
		marketData: marketData,
		log:        log.With().Str("component", "ratios").Logger(),
	}
}

// Fetch computes ratios for the requested symbols. Symbols whose statements
// cannot be fetched are listed in Failures unless every symbol failed.
func (s *RatioService) Fetch(ctx context.Context, req models.RatioRequest) (*models.RatioResponse, error) {
	var fields []apperr.FieldError
	symbols, err := s.validator.ValidateSymbols(req.Symbols)
	if err != nil {
		fields = append(fields, portfolioFields(err)...)
	}
	period, err := tcbs.ParsePeriod(req.Period)
	if err != nil {
		fields = append(fields, apperr.FieldError{Field: "period", Code: "format", Message: err.Error()})
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields...)
	}

	batch, err := s.marketData.FetchStatements(ctx, symbols, period)
	if err != nil {
		return nil, err
	}

	res := ratios.Compute(batch.Rows)
	res.Symbols = symbols
	res.Period = string(period)
	res.Failures = FailureMessages(batch.Failures)
	s.log.Info().Strs("symbols", symbols).Str("period", res.Period).Int("rows", len(batch.Rows)).Msg("ratios computed")
	return &res, nil
}

// Compute derives ratios from caller supplied rows.
func (s *RatioService) Compute(rows []models.StatementRow) (*models.RatioResponse, error) {
	if len(rows) == 0 {
		return nil, apperr.Validation(apperr.FieldError{Field: "rows", Code: "required", Message: "at least one statement row is required"})
	}
	var fields []apperr.FieldError
	for i, r := range rows {
		if r.Ticker == "" {
			fields = append(fields, apperr.FieldError{Field: fmt.Sprintf("rows[%d].ticker", i), Code: "required", Message: "ticker is required"})
		}
		if r.Year <= 0 {
			fields = append(fields, apperr.FieldError{Field: fmt.Sprintf("rows[%d].year", i), Code: "range", Message: "year must be positive"})
		}
		if r.Quarter < 0 || r.Quarter > 4 {
			fields = append(fields, apperr.FieldError{Field: fmt.Sprintf("rows[%d].quarter", i), Code: "range", Message: "quarter must be between 0 and 4"})
		}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields...)
	}
	res := ratios.Compute(rows)
	return &res, nil
}

func portfolioFields(err error) []apperr.FieldError {
	var out []apperr.FieldError
	for _, f := range portfolio.FieldErrors(err) {
		out = append(out, apperr.FieldError{Field: f.Field, Code: f.Code, Message: f.Message})
	}
	return out
}
