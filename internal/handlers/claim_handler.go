package handlers

import (
	"log/slog"
	"net/http"

	"agriguard/internal/models"
	"agriguard/internal/services"
	"agriguard/internal/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type ClaimHandler struct {
	claimService *services.ClaimService
	adminID      string
}

func NewClaimHandler(claimService *services.ClaimService, adminID string) *ClaimHandler {
	return &ClaimHandler{claimService: claimService, adminID: adminID}
}

func (h *ClaimHandler) Register(app *fiber.App) {
	group := app.Group("/api/v1/claims")

	group.Post("/", h.FileClaim)
	group.Get("/:id", h.GetClaim)
	group.Get("/by-policy/:policy_id", h.GetClaimsByPolicy)
	group.Get("/:id/payouts", h.GetPayouts)

	adminGroup := group.Group("/admin")
	adminGroup.Post("/trigger-payout", h.AdminTriggerPayout)
}

// FileClaim files a claim against the caller's active policy and runs
// automatic evaluation.
func (h *ClaimHandler) FileClaim(c fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(http.StatusUnauthorized).JSON(
			utils.CreateErrorResponse("UNAUTHORIZED", "User ID is required"))
	}

	var req models.FileClaimRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_BODY", "Failed to parse request body"))
	}

	claim, err := h.claimService.FileClaim(c.Context(), userID, &req)
	if err != nil {
		slog.Error("Failed to file claim", "user_id", userID, "policy_id", req.PolicyID, "error", err)
		return respondError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(claim))
}

func (h *ClaimHandler) GetClaim(c fiber.Ctx) error {
	claimID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_ID", "Invalid claim ID format"))
	}

	claim, err := h.claimService.GetClaim(c.Context(), claimID)
	if err != nil {
		return c.Status(http.StatusNotFound).JSON(
			utils.CreateErrorResponse("NOT_FOUND", "Claim not found"))
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(claim))
}

func (h *ClaimHandler) GetClaimsByPolicy(c fiber.Ctx) error {
	policyID, err := uuid.Parse(c.Params("policy_id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_ID", "Invalid policy ID format"))
	}

	claims, err := h.claimService.GetClaimsByPolicy(c.Context(), policyID)
	if err != nil {
		slog.Error("Failed to get claims", "policy_id", policyID, "error", err)
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]interface{}{
		"claims": claims,
		"count":  len(claims),
	}))
}

func (h *ClaimHandler) GetPayouts(c fiber.Ctx) error {
	claimID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_ID", "Invalid claim ID format"))
	}

	payouts, err := h.claimService.GetPayoutsByClaim(c.Context(), claimID)
	if err != nil {
		slog.Error("Failed to get payouts", "claim_id", claimID, "error", err)
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]interface{}{
		"payouts": payouts,
		"count":   len(payouts),
	}))
}

// AdminTriggerPayout re-issues a payout transfer for an approved claim.
// Manual remediation only.
func (h *ClaimHandler) AdminTriggerPayout(c fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID != h.adminID {
		slog.Error("Non-admin attempted payout trigger", "user_id", userID)
		return c.Status(http.StatusForbidden).JSON(
			utils.CreateErrorResponse("UNAUTHORIZED", "Admin access required"))
	}

	var req models.AdminTriggerPayoutRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_BODY", "Failed to parse request body"))
	}

	if err := h.claimService.AdminTriggerPayout(c.Context(), &req); err != nil {
		slog.Error("Failed to trigger payout", "claim_id", req.ClaimID, "error", err)
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]interface{}{
		"claim_id": req.ClaimID,
		"status":   "payout_initiated",
	}))
}
