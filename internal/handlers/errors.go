package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"tearsheet-api/internal/apperr"
	"tearsheet-api/internal/models"
	"tearsheet-api/internal/portfolio"
)

var titles = map[apperr.Kind]string{
	apperr.KindValidation:    "Invalid request",
	apperr.KindDataFetch:     "Market data unavailable",
	apperr.KindNotFound:      "No market data",
	apperr.KindAnalysis:      "Analysis failed",
	apperr.KindConfiguration: "Service misconfigured",
	apperr.KindExport:        "Report rendering failed",
	apperr.KindInternal:      "Internal error",
}

// writeError renders err as an ErrorResponse with the status of its kind.
func writeError(c *fiber.Ctx, err error) error {
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = apperr.Wrap(apperr.KindInternal, err, "unexpected error")
	}
	code := e.Status()
	return c.Status(code).JSON(models.ErrorResponse{
		Error:   titles[e.Kind],
		Kind:    string(e.Kind),
		Message: e.Error(),
		Code:    code,
		Fields:  portfolio.FieldErrors(e),
	})
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
		Error:   "Invalid request body",
		Kind:    string(apperr.KindValidation),
		Message: err.Error(),
		Code:    fiber.StatusBadRequest,
	})
}

// CustomErrorHandler handles errors returned by routes and middleware.
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{
			Error:   "Request failed",
			Message: fe.Message,
			Code:    fe.Code,
		})
	}
	return writeError(c, err)
}
