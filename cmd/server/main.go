package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"

	"tearsheet-api/internal/app"
	"tearsheet-api/internal/config"
	"tearsheet-api/internal/handlers"
	"tearsheet-api/internal/logging"
)

const version = "1.0.0"

func main() {
	boot := logging.New(os.Stderr, "info", os.Getenv("LOG_FORMAT"))

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise services")
	}

	requestTimeout := 2 * time.Minute
	healthHandler := handlers.NewHealthHandler(version, a.Cache)
	analysisHandler := handlers.NewAnalysisHandler(a.Analysis, requestTimeout)
	ratioHandler := handlers.NewRatioHandler(a.Ratios, requestTimeout)

	srv := fiber.New(handlers.AppConfig("Tearsheet v" + version))

	// Middleware stack
	srv.Use(recover.New())
	srv.Use(requestid.New())
	srv.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid}\n",
		Output: accessLog{log},
	}))
	srv.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	srv.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))
	srv.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
				"code":  fiber.StatusTooManyRequests,
			})
		},
	}))

	handlers.Register(srv, healthHandler, analysisHandler, ratioHandler)

	// Graceful shutdown
	go func() {
		if err := srv.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("environment", cfg.Environment).
		Str("cache", a.Cache.Backend()).
		Str("benchmark", cfg.BenchmarkSymbol).
		Msg("tearsheet API started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := a.Close(); err != nil {
		log.Error().Err(err).Msg("cache close failed")
	}
	log.Info().Msg("server shutdown complete")
}

// accessLog forwards Fiber's access log lines to zerolog.
type accessLog struct{ log zerolog.Logger }

func (w accessLog) Write(p []byte) (int, error) {
	n := len(p)
	if n > 0 && p[n-1] == '\n' {
		p = p[:n-1]
	}
	w.log.Info().Str("component", "http").Msg(string(p))
	return n, nil
}
