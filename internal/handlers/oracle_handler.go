package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"agriguard/internal/models"
	"agriguard/internal/services"
	"agriguard/internal/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type OracleHandler struct {
	oracleService *services.OracleService
}

func NewOracleHandler(oracleService *services.OracleService) *OracleHandler {
	return &OracleHandler{oracleService: oracleService}
}

func (h *OracleHandler) Register(app *fiber.App) {
	admin := app.Group("/api/v1/oracles")
	admin.Post("/:account_id/authorize", h.Authorize)
	admin.Post("/:account_id/revoke", h.Revoke)
	admin.Get("/:account_id", h.GetAuthorization)

	obs := app.Group("/api/v1/observations")
	obs.Post("/", h.SubmitObservation)
	obs.Get("/:id", h.GetObservation)
	obs.Get("/by-station/:station_id", h.GetObservationsByStation)
}

// Authorize grants an oracle account the right to submit observations.
// The caller identity is checked against the registry admin inside the
// service.
func (h *OracleHandler) Authorize(c fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(http.StatusUnauthorized).JSON(
			utils.CreateErrorResponse("UNAUTHORIZED", "User ID is required"))
	}

	accountID := c.Params("account_id")
	if err := h.oracleService.Authorize(c.Context(), userID, accountID); err != nil {
		slog.Error("Failed to authorize oracle", "account_id", accountID, "caller", userID, "error", err)
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]interface{}{
		"account_id": accountID,
		"authorized": true,
	}))
}

func (h *OracleHandler) Revoke(c fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(http.StatusUnauthorized).JSON(
			utils.CreateErrorResponse("UNAUTHORIZED", "User ID is required"))
	}

	accountID := c.Params("account_id")
	if err := h.oracleService.Revoke(c.Context(), userID, accountID); err != nil {
		slog.Error("Failed to revoke oracle", "account_id", accountID, "caller", userID, "error", err)
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]interface{}{
		"account_id": accountID,
		"authorized": false,
	}))
}

func (h *OracleHandler) GetAuthorization(c fiber.Ctx) error {
	accountID := c.Params("account_id")

	authorized, err := h.oracleService.IsAuthorized(c.Context(), accountID)
	if err != nil {
		slog.Error("Failed to check oracle authorization", "account_id", accountID, "error", err)
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]interface{}{
		"account_id": accountID,
		"authorized": authorized,
	}))
}

// SubmitObservation records an oracle-signed weather reading. Only accounts
// present in the authorization registry may call this.
func (h *OracleHandler) SubmitObservation(c fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(http.StatusUnauthorized).JSON(
			utils.CreateErrorResponse("UNAUTHORIZED", "User ID is required"))
	}

	var req models.SubmitObservationRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_BODY", "Failed to parse request body"))
	}

	obs, err := h.oracleService.SubmitObservation(c.Context(), userID, &req)
	if err != nil {
		slog.Error("Failed to submit observation", "station_id", req.StationID, "submitter", userID, "error", err)
		return respondError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(obs))
}

func (h *OracleHandler) GetObservation(c fiber.Ctx) error {
	obsID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_ID", "Invalid observation ID format"))
	}

	obs, err := h.oracleService.GetObservation(c.Context(), obsID)
	if err != nil {
		return c.Status(http.StatusNotFound).JSON(
			utils.CreateErrorResponse("NOT_FOUND", "Observation not found"))
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(obs))
}

func (h *OracleHandler) GetObservationsByStation(c fiber.Ctx) error {
	stationID := c.Params("station_id")

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			return c.Status(http.StatusBadRequest).JSON(
				utils.CreateErrorResponse("INVALID_PARAMETERS", "limit must be between 1 and 500"))
		}
		limit = parsed
	}

	observations, err := h.oracleService.GetObservationsByStation(c.Context(), stationID, limit)
	if err != nil {
		slog.Error("Failed to get observations", "station_id", stationID, "error", err)
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]interface{}{
		"observations": observations,
		"count":        len(observations),
	}))
}
