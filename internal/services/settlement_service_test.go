package services

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"agriguard/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func createPendingPolicy(owner string, premium int64) *models.Policy {
	return &models.Policy{
		ID:             uuid.New(),
		OwnerID:        owner,
		CropType:       models.CropWheat,
		StationID:      "station-001",
		CoverageAmount: models.NewTokenAmount(100_000_000),
		PremiumAmount:  models.NewTokenAmount(premium),
		Status:         models.PolicyPending,
	}
}

// ============================================================================
// TRANSFER MESSAGE PARSING
// ============================================================================

func TestParseTransferMessage_Premium(t *testing.T) {
	policyID := uuid.New()

	msg, err := ParseTransferMessage("premium:" + policyID.String())

	require.NoError(t, err)
	assert.Equal(t, TransferMessagePremium, msg.Kind)
	assert.Equal(t, policyID, msg.PolicyID)
}

func TestParseTransferMessage_TrimsWhitespace(t *testing.T) {
	policyID := uuid.New()

	msg, err := ParseTransferMessage("  premium:" + policyID.String() + "\n")

	require.NoError(t, err)
	assert.Equal(t, policyID, msg.PolicyID)
}

func TestParseTransferMessage_Malformed(t *testing.T) {
	cases := []string{
		"",
		"premium",
		"premium:",
		"premium:not-a-uuid",
		"refund:" + uuid.New().String(),
		"PREMIUM:" + uuid.New().String(),
	}

	for _, raw := range cases {
		_, err := ParseTransferMessage(raw)
		assert.ErrorIs(t, err, ErrMalformedMessage, "message %q", raw)
	}
}

// ============================================================================
// SETTLEMENT DECISION
// ============================================================================

func TestDecideSettlement_ExactPremiumActivates(t *testing.T) {
	policy := createPendingPolicy("alice.field", 5_000_000)

	outcome := DecideSettlement(policy, "alice.field", models.NewTokenAmount(5_000_000))

	assert.True(t, outcome.Activate)
	assert.True(t, outcome.Refund.IsZero())
}

func TestDecideSettlement_OverpaymentRefundsExcess(t *testing.T) {
	policy := createPendingPolicy("alice.field", 5_000_000)

	outcome := DecideSettlement(policy, "alice.field", models.NewTokenAmount(7_500_000))

	assert.True(t, outcome.Activate)
	assert.Equal(t, "2500000", outcome.Refund.String())
}

func TestDecideSettlement_InsufficientRefundsAll(t *testing.T) {
	policy := createPendingPolicy("alice.field", 5_000_000)
	amount := models.NewTokenAmount(1_000_000)

	outcome := DecideSettlement(policy, "alice.field", amount)

	assert.False(t, outcome.Activate)
	assert.Equal(t, 0, outcome.Refund.Cmp(amount), "partial premium must never be retained")
}

func TestDecideSettlement_UnknownPolicyRefundsAll(t *testing.T) {
	amount := models.NewTokenAmount(5_000_000)

	outcome := DecideSettlement(nil, "alice.field", amount)

	assert.False(t, outcome.Activate)
	assert.Equal(t, 0, outcome.Refund.Cmp(amount))
}

func TestDecideSettlement_WrongPayerRefundsAll(t *testing.T) {
	policy := createPendingPolicy("alice.field", 5_000_000)
	amount := models.NewTokenAmount(5_000_000)

	outcome := DecideSettlement(policy, "mallory.field", amount)

	assert.False(t, outcome.Activate)
	assert.Equal(t, 0, outcome.Refund.Cmp(amount))
}

func TestDecideSettlement_ReplayAgainstActivePolicyRefundsAll(t *testing.T) {
	policy := createPendingPolicy("alice.field", 5_000_000)
	policy.Status = models.PolicyActive
	amount := models.NewTokenAmount(5_000_000)

	outcome := DecideSettlement(policy, "alice.field", amount)

	assert.False(t, outcome.Activate)
	assert.Equal(t, 0, outcome.Refund.Cmp(amount))
}

func TestIsMissingPolicy_DistinguishesAbsenceFromOutage(t *testing.T) {
	// The repository wraps sql.ErrNoRows, so the chain survives.
	notFound := fmt.Errorf("policy %s is not found: %w", uuid.New(), sql.ErrNoRows)
	assert.True(t, isMissingPolicy(notFound))

	// A storage outage must not be classified as an unknown policy: that
	// would refund a legitimate premium instead of letting the issuer
	// redeliver the callback.
	outage := fmt.Errorf("failed to get policy by id: %w", errors.New("connection refused"))
	assert.False(t, isMissingPolicy(outage))
}

func TestDecideSettlement_ConservationOfFunds(t *testing.T) {
	policy := createPendingPolicy("alice.field", 5_000_000)

	amounts := []int64{0, 1, 4_999_999, 5_000_000, 5_000_001, 100_000_000}
	for _, v := range amounts {
		amount := models.NewTokenAmount(v)
		outcome := DecideSettlement(policy, "alice.field", amount)

		retained := amount.Sub(outcome.Refund)
		if outcome.Activate {
			assert.Equal(t, 0, retained.Cmp(policy.PremiumAmount), "amount %d", v)
		} else {
			assert.True(t, retained.IsZero(), "amount %d", v)
		}
	}
}
