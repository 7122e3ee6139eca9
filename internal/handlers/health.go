package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
	Backend() string
}

type HealthHandler struct {
	startTime time.Time
	version   string
	cache     Pinger
}

func NewHealthHandler(version string, cache Pinger) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		version:   version,
		cache:     cache,
	}
}

// Root handles GET /
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "Tearsheet API",
		"version": h.version,
		"status":  "running",
	})
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "tearsheet-api",
		"version": h.version,
		"uptime":  time.Since(h.startTime).String(),
		"time":    time.Now(),
	})
}

// Ready handles GET /health/ready
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	status, cache := fiber.StatusOK, "ok"
	if err := h.cache.Ping(ctx); err != nil {
		status, cache = fiber.StatusServiceUnavailable, err.Error()
	}
	ready := "ready"
	if status != fiber.StatusOK {
		ready = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{
		"status": ready,
		"checks": fiber.Map{
			"api":   "ok",
			"cache": fiber.Map{"backend": h.cache.Backend(), "status": cache},
		},
	})
}
