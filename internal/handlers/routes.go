package handlers

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// AppConfig is the Fiber configuration shared by the server and its tests.
func AppConfig(appName string) fiber.Config {
	return fiber.Config{
		Prefork:                  false,
		StrictRouting:            true,
		CaseSensitive:            true,
		ServerHeader:             "Tearsheet-API",
		AppName:                  appName,
		ReadTimeout:              10 * time.Second,
		WriteTimeout:             90 * time.Second,
		BodyLimit:                4 * 1024 * 1024, // 4MB
		EnableSplittingOnParsers: true,           // symbols=REE,FMC in forms and queries
		JSONEncoder:              json.Marshal,
		JSONDecoder:              json.Unmarshal,
		ErrorHandler:             CustomErrorHandler,
	}
}

// Register mounts every route on app.
func Register(app *fiber.App, health *HealthHandler, analysis *AnalysisHandler, ratios *RatioHandler) {
	app.Get("/", health.Root)
	app.Get("/health", health.Health)
	app.Get("/health/ready", health.Ready)

	v1 := app.Group("/v1")
	v1.Post("/validate", analysis.Validate)
	v1.Post("/analyze", analysis.Analyze)
	v1.Post("/tearsheet", analysis.Tearsheet)
	v1.Get("/prices/:symbol", analysis.Prices)
	v1.Post("/ratios", ratios.Fetch)
	v1.Post("/ratios/compute", ratios.Compute)
	v1.Get("/ratios/:symbol", ratios.Symbol)
	v1.Post("/admin/cache/purge", analysis.PurgeCache)
}
