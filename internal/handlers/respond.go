package handlers

import (
	"errors"
	"net/http"

	"agriguard/internal/models"
	"agriguard/internal/utils"

	"github.com/gofiber/fiber/v3"
)

// respondError maps the typed error taxonomy onto HTTP responses. Validation,
// authorization and state conflicts carry enough context for the caller to
// self-correct; anything else is an internal failure surfaced generically so
// infra details stay in the logs.
func respondError(c fiber.Ctx, err error) error {
	var validation *models.ValidationError
	if errors.As(err, &validation) {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_PARAMETERS", validation.Error()))
	}

	var authz *models.AuthorizationError
	if errors.As(err, &authz) {
		return c.Status(http.StatusForbidden).JSON(
			utils.CreateErrorResponse("UNAUTHORIZED", authz.Error()))
	}

	var conflict *models.StateConflictError
	if errors.As(err, &conflict) {
		return c.Status(http.StatusConflict).JSON(
			utils.CreateErrorResponse("STATE_CONFLICT", conflict.Error()))
	}

	return c.Status(http.StatusInternalServerError).JSON(
		utils.CreateErrorResponse("OPERATION_FAILED", "The operation could not be completed"))
}
