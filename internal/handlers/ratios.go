package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"tearsheet-api/internal/models"
	"tearsheet-api/internal/services"
)

type RatioHandler struct {
	ratios  *services.RatioService
	timeout time.Duration
}

func NewRatioHandler(ratios *services.RatioService, timeout time.Duration) *RatioHandler {
	return &RatioHandler{ratios: ratios, timeout: timeout}
}

// Fetch handles POST /v1/ratios
func (h *RatioHandler) Fetch(c *fiber.Ctx) error {
	var req models.RatioRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	return h.fetch(c, req)
}

// Symbol handles GET /v1/ratios/:symbol
func (h *RatioHandler) Symbol(c *fiber.Ctx) error {
	return h.fetch(c, models.RatioRequest{
		Symbols: []string{c.Params("symbol")},
		Period:  c.Query("period"),
	})
}

func (h *RatioHandler) fetch(c *fiber.Ctx, req models.RatioRequest) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	resp, err := h.ratios.Fetch(ctx, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}

// Compute handles POST /v1/ratios/compute
func (h *RatioHandler) Compute(c *fiber.Ctx) error {
	var req models.ComputeRatiosRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	resp, err := h.ratios.Compute(req.Rows)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}
