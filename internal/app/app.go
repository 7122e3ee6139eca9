// Package app wires the services shared by the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tearsheet-api/internal/apperr"
	"tearsheet-api/internal/config"
	"tearsheet-api/internal/portfolio"
	"tearsheet-api/internal/services"
	"tearsheet-api/internal/store"
	"tearsheet-api/internal/tearsheet"
)

type App struct {
	Config     *config.Config
	Log        zerolog.Logger
	Cache      *services.CacheService
	MarketData *services.MarketDataService
	Analysis   *services.AnalysisOrchestrator
	Ratios     *services.RatioService
}

// New opens the configured cache tier and builds the services on top of it.
// A Gemini client failure only disables commentary.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	ps, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, err, "open %s cache", cfg.CacheBackend)
	}

	var commentator tearsheet.Commentator
	if cfg.GeminiAPIKey != "" {
		g, err := tearsheet.NewGeminiCommentator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Warn().Err(err).Msg("commentary disabled")
		} else {
			commentator = g
		}
	}

	validator := portfolio.NewValidator(cfg.Validation)
	cache := services.NewCacheService(cfg, ps, log)
	marketData := services.NewMarketDataService(cfg, cache, log)
	renderer := tearsheet.NewRenderer(commentator, log)

	return &App{
		Config:     cfg,
		Log:        log,
		Cache:      cache,
		MarketData: marketData,
		Analysis:   services.NewAnalysisOrchestrator(cfg, validator, marketData, renderer, log),
		Ratios:     services.NewRatioService(validator, marketData, log),
	}, nil
}

func (a *App) Close() error {
	if err := a.Cache.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	return nil
}
