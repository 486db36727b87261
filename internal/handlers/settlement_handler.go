package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"agriguard/internal/models"
	"agriguard/internal/services"
	"agriguard/internal/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
)

// SettlementHandler receives the token issuer's callbacks: inbound credit
// notifications for premium settlement, and completion notices for outbound
// payout transfers. Both are authenticated with the issuer's signed bearer
// token rather than X-User-ID headers, since they cross a trust boundary.
type SettlementHandler struct {
	settlementService *services.SettlementService
	claimService      *services.ClaimService
	callbackSecret    string
}

func NewSettlementHandler(settlementService *services.SettlementService, claimService *services.ClaimService, callbackSecret string) *SettlementHandler {
	return &SettlementHandler{
		settlementService: settlementService,
		claimService:      claimService,
		callbackSecret:    callbackSecret,
	}
}

func (h *SettlementHandler) Register(app *fiber.App) {
	group := app.Group("/api/v1/settlement")
	group.Post("/token-received", h.TokenReceived)
	group.Post("/transfer-status", h.TransferStatus)
}

// verifyCaller extracts and validates the issuer's bearer token, returning
// the subject claim as the caller identity.
func (h *SettlementHandler) verifyCaller(c fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || tokenString == "" {
		return "", fmt.Errorf("missing bearer token")
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(h.callbackSecret), nil
		},
	)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid token claims")
	}

	return claims.Subject, nil
}

// TokenReceived handles the issuer's credit notification. The response body
// tells the issuer how much of the transfer to credit back to the payer:
// zero means the premium settled, the full amount means the transfer was
// rejected entirely.
func (h *SettlementHandler) TokenReceived(c fiber.Ctx) error {
	caller, err := h.verifyCaller(c)
	if err != nil {
		slog.Error("Rejected settlement callback", "error", err)
		return c.Status(http.StatusUnauthorized).JSON(
			utils.CreateErrorResponse("UNAUTHORIZED", "Invalid issuer credentials"))
	}

	var req models.TokenReceivedRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_BODY", "Failed to parse request body"))
	}

	refund, err := h.settlementService.OnTokensReceived(c.Context(), caller, req.Payer, req.Amount, req.Message)
	if err != nil {
		slog.Error("Failed to settle transfer", "payer", req.Payer, "amount", req.Amount, "error", err)
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(models.TokenReceivedResponse{
		Refund: refund,
	}))
}

// TransferStatus handles the issuer's completion notice for an outbound
// payout transfer.
func (h *SettlementHandler) TransferStatus(c fiber.Ctx) error {
	if _, err := h.verifyCaller(c); err != nil {
		slog.Error("Rejected transfer status callback", "error", err)
		return c.Status(http.StatusUnauthorized).JSON(
			utils.CreateErrorResponse("UNAUTHORIZED", "Invalid issuer credentials"))
	}

	var req models.TransferStatusRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_BODY", "Failed to parse request body"))
	}

	if req.TransferID == "" {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_PARAMETERS", "transfer_id is required"))
	}

	if err := h.claimService.ConfirmPayout(c.Context(), req.TransferID, req.Succeeded); err != nil {
		slog.Error("Failed to confirm payout", "transfer_id", req.TransferID, "succeeded", req.Succeeded, "error", err)
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]interface{}{
		"transfer_id": req.TransferID,
		"processed":   true,
	}))
}
