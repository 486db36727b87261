package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"agriguard/internal/models"
	"agriguard/internal/services"
	"agriguard/internal/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type PolicyHandler struct {
	policyService *services.PolicyService
}

func NewPolicyHandler(policyService *services.PolicyService) *PolicyHandler {
	return &PolicyHandler{policyService: policyService}
}

func (h *PolicyHandler) Register(app *fiber.App) {
	group := app.Group("/api/v1/policies")

	group.Post("/", h.CreatePolicy)
	group.Get("/stats", h.GetStats)
	group.Get("/:id", h.GetPolicy)
	group.Get("/", h.ListPolicies)
}

// CreatePolicy registers a new pending policy for the authenticated owner.
func (h *PolicyHandler) CreatePolicy(c fiber.Ctx) error {
	ownerID := c.Get("X-User-ID")
	if ownerID == "" {
		return c.Status(http.StatusUnauthorized).JSON(
			utils.CreateErrorResponse("UNAUTHORIZED", "User ID is required"))
	}

	var req models.CreatePolicyRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_BODY", "Failed to parse request body"))
	}

	policy, err := h.policyService.CreatePolicy(c.Context(), ownerID, &req)
	if err != nil {
		slog.Error("Failed to create policy", "owner_id", ownerID, "error", err)
		return respondError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(models.CreatePolicyResponse{
		PolicyID:      policy.ID,
		PremiumAmount: policy.PremiumAmount,
		Status:        policy.Status,
	}))
}

func (h *PolicyHandler) GetPolicy(c fiber.Ctx) error {
	policyID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_ID", "Invalid policy ID format"))
	}

	policy, err := h.policyService.GetPolicy(c.Context(), policyID)
	if err != nil {
		return c.Status(http.StatusNotFound).JSON(
			utils.CreateErrorResponse("NOT_FOUND", "Policy not found"))
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(policy))
}

// ListPolicies supports station, status and owner filters.
func (h *PolicyHandler) ListPolicies(c fiber.Ctx) error {
	filters := map[string]interface{}{}

	if stationID := c.Query("station_id"); stationID != "" {
		filters["station_id"] = stationID
	}
	if status := c.Query("status"); status != "" {
		filters["status"] = models.PolicyStatus(strings.ToLower(status))
	}
	if ownerID := c.Query("owner_id"); ownerID != "" {
		filters["owner_id"] = ownerID
	}

	policies, err := h.policyService.ListPolicies(c.Context(), filters)
	if err != nil {
		slog.Error("Failed to list policies", "error", err)
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]interface{}{
		"policies": policies,
		"count":    len(policies),
	}))
}

func (h *PolicyHandler) GetStats(c fiber.Ctx) error {
	stats, err := h.policyService.Stats(c.Context())
	if err != nil {
		slog.Error("Failed to get ledger stats", "error", err)
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(stats))
}
