package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"tearsheet-api/internal/models"
	"tearsheet-api/internal/portfolio"
	"tearsheet-api/internal/services"
)

type AnalysisHandler struct {
	orchestrator *services.AnalysisOrchestrator
	timeout      time.Duration
}

func NewAnalysisHandler(orchestrator *services.AnalysisOrchestrator, timeout time.Duration) *AnalysisHandler {
	return &AnalysisHandler{
		orchestrator: orchestrator,
		timeout:      timeout,
	}
}

func (h *AnalysisHandler) parse(c *fiber.Ctx) (models.AnalyzeRequest, error) {
	var req models.AnalyzeRequest
	err := c.BodyParser(&req)
	return req, err
}

// Validate handles POST /v1/validate
func (h *AnalysisHandler) Validate(c *fiber.Ctx) error {
	req, err := h.parse(c)
	if err != nil {
		return badBody(c, err)
	}

	p, err := h.orchestrator.Validate(req)
	if err != nil {
		fields := portfolio.FieldErrors(err)
		if fields == nil {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusBadRequest).JSON(models.ValidateResponse{Valid: false, Errors: fields})
	}
	view := p.View()
	return c.JSON(models.ValidateResponse{Valid: true, Portfolio: &view})
}

// Analyze handles POST /v1/analyze
func (h *AnalysisHandler) Analyze(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	req, err := h.parse(c)
	if err != nil {
		return badBody(c, err)
	}

	resp, err := h.orchestrator.Analyze(ctx, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}

// Tearsheet handles POST /v1/tearsheet
func (h *AnalysisHandler) Tearsheet(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	req, err := h.parse(c)
	if err != nil {
		return badBody(c, err)
	}

	page, err := h.orchestrator.TearsheetHTML(ctx, req)
	if err != nil {
		return writeError(c, err)
	}
	c.Type("html", "utf-8")
	return c.SendString(page)
}

// Prices handles GET /v1/prices/:symbol
func (h *AnalysisHandler) Prices(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	series, err := h.orchestrator.Prices(ctx, c.Params("symbol"), c.Query("start"), c.Query("end"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(series)
}

// PurgeCache handles POST /v1/admin/cache/purge
func (h *AnalysisHandler) PurgeCache(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	if err := h.orchestrator.PurgeCache(ctx); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Cache purged",
		"time":    time.Now(),
	})
}
