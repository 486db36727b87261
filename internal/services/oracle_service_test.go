package services

import (
	"context"
	"testing"

	"agriguard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The admin gate runs before any storage access, so these exercise it with a
// service that has no repositories wired.

func TestAuthorize_NonAdminRejected(t *testing.T) {
	service := NewOracleService(nil, nil, "admin.agriguard", nil)

	err := service.Authorize(context.Background(), "mallory.field", "oracle-1")

	var authz *models.AuthorizationError
	require.ErrorAs(t, err, &authz)
	assert.Equal(t, "mallory.field", authz.Caller)
}

func TestRevoke_NonAdminRejected(t *testing.T) {
	service := NewOracleService(nil, nil, "admin.agriguard", nil)

	err := service.Revoke(context.Background(), "oracle-1", "oracle-1")

	var authz *models.AuthorizationError
	require.ErrorAs(t, err, &authz)
}

func TestOnTokensReceived_NegativeAmountRejected(t *testing.T) {
	service := NewSettlementService(nil, nil, "token.agriguard", nil)

	_, err := service.OnTokensReceived(context.Background(),
		"token.agriguard", "alice.field", models.NewTokenAmount(-1), "premium:whatever")

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestOnTokensReceived_UnrecognizedCallerRefundsAll(t *testing.T) {
	service := NewSettlementService(nil, nil, "token.agriguard", nil)
	amount := models.NewTokenAmount(5_000_000)

	refund, err := service.OnTokensReceived(context.Background(),
		"fake-issuer", "alice.field", amount, "premium:whatever")

	var authz *models.AuthorizationError
	require.ErrorAs(t, err, &authz)
	assert.Equal(t, 0, refund.Cmp(amount), "spoofed callbacks must never retain funds")
}
