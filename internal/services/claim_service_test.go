package services

import (
	"testing"

	"agriguard/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func createActivePolicy(coverage int64) *models.Policy {
	return &models.Policy{
		ID:             uuid.New(),
		OwnerID:        "alice.field",
		CropType:       models.CropWheat,
		StationID:      "station-001",
		CoverageAmount: models.NewTokenAmount(coverage),
		MinTemperature: 5.0,
		MaxTemperature: 40.0,
		MinRainfall:    10.0,
		MaxRainfall:    200.0,
		Status:         models.PolicyActive,
	}
}

func createObservation(temperature, rainfall float64) *models.WeatherObservation {
	return &models.WeatherObservation{
		ID:          uuid.New(),
		StationID:   "station-001",
		Temperature: temperature,
		Rainfall:    rainfall,
	}
}

// ============================================================================
// THRESHOLD EVALUATION
// ============================================================================

func TestEvaluateThresholds_NoBreach(t *testing.T) {
	policy := createActivePolicy(100_000_000)
	obs := createObservation(25.0, 100.0)

	result := EvaluateThresholds(policy, obs)

	assert.False(t, result.Breached)
	assert.Equal(t, int64(0), result.PayoutPercent)
}

func TestEvaluateThresholds_TemperatureAbove(t *testing.T) {
	policy := createActivePolicy(100_000_000)
	obs := createObservation(45.0, 100.0)

	result := EvaluateThresholds(policy, obs)

	assert.True(t, result.Breached)
	assert.Equal(t, int64(TemperaturePayoutPercent), result.PayoutPercent)
	assert.Equal(t, models.TriggerTemperature, result.Reason)
}

func TestEvaluateThresholds_TemperatureBelow(t *testing.T) {
	policy := createActivePolicy(100_000_000)
	obs := createObservation(-2.0, 100.0)

	result := EvaluateThresholds(policy, obs)

	assert.True(t, result.Breached)
	assert.Equal(t, models.TriggerTemperature, result.Reason)
}

func TestEvaluateThresholds_RainfallBreach(t *testing.T) {
	policy := createActivePolicy(100_000_000)
	obs := createObservation(25.0, 250.0)

	result := EvaluateThresholds(policy, obs)

	assert.True(t, result.Breached)
	assert.Equal(t, int64(RainfallPayoutPercent), result.PayoutPercent)
	assert.Equal(t, models.TriggerRainfall, result.Reason)
}

func TestEvaluateThresholds_BothBreachedTakesMaximum(t *testing.T) {
	// Temperature 45 breaches at 50%, rainfall 250 breaches at 60%.
	// The percentages never stack: the claim pays the larger one.
	policy := createActivePolicy(100_000_000)
	obs := createObservation(45.0, 250.0)

	result := EvaluateThresholds(policy, obs)

	assert.True(t, result.Breached)
	assert.Equal(t, int64(60), result.PayoutPercent)
	assert.Equal(t, models.TriggerRainfall, result.Reason)
}

func TestEvaluateThresholds_BoundaryValuesDoNotBreach(t *testing.T) {
	policy := createActivePolicy(100_000_000)

	atMax := createObservation(40.0, 200.0)
	assert.False(t, EvaluateThresholds(policy, atMax).Breached)

	atMin := createObservation(5.0, 10.0)
	assert.False(t, EvaluateThresholds(policy, atMin).Breached)
}

// ============================================================================
// OBSERVATION BINDING
// ============================================================================

func TestValidateClaimObservation_MatchingStationInWindow(t *testing.T) {
	policy := createActivePolicy(100_000_000)
	policy.CoverageStart = 1_700_000_000
	policy.CoverageEnd = 1_710_000_000
	obs := createObservation(45.0, 100.0)
	obs.MeasuredAt = 1_705_000_000

	assert.NoError(t, ValidateClaimObservation(policy, obs))
}

func TestValidateClaimObservation_ForeignStationRejected(t *testing.T) {
	// A breaching reading from some other station must not pay out this
	// policy, no matter how extreme it is.
	policy := createActivePolicy(100_000_000)
	policy.CoverageStart = 1_700_000_000
	policy.CoverageEnd = 1_710_000_000
	obs := createObservation(45.0, 0.0)
	obs.StationID = "station-999"
	obs.MeasuredAt = 1_705_000_000

	var verr *models.ValidationError
	require.ErrorAs(t, ValidateClaimObservation(policy, obs), &verr)
	assert.Equal(t, "observation_id", verr.Field)
}

func TestValidateClaimObservation_OutsideWindowRejected(t *testing.T) {
	policy := createActivePolicy(100_000_000)
	policy.CoverageStart = 1_700_000_000
	policy.CoverageEnd = 1_710_000_000

	before := createObservation(45.0, 100.0)
	before.MeasuredAt = policy.CoverageStart - 1
	assert.Error(t, ValidateClaimObservation(policy, before))

	after := createObservation(45.0, 100.0)
	after.MeasuredAt = policy.CoverageEnd
	assert.Error(t, ValidateClaimObservation(policy, after))
}

// ============================================================================
// PAYOUT RETRY AND CONFIRMATION REPLAY
// ============================================================================

func TestProcessingPayout_FindsInFlightTransfer(t *testing.T) {
	payouts := []models.Payout{
		{ID: uuid.New(), Status: models.PayoutFailed},
		{ID: uuid.New(), Status: models.PayoutProcessing},
	}

	inFlight := processingPayout(payouts)

	require.NotNil(t, inFlight)
	assert.Equal(t, payouts[1].ID, inFlight.ID)
}

func TestProcessingPayout_AllSettled(t *testing.T) {
	payouts := []models.Payout{
		{ID: uuid.New(), Status: models.PayoutFailed},
		{ID: uuid.New(), Status: models.PayoutCompleted},
	}

	assert.Nil(t, processingPayout(payouts))
	assert.Nil(t, processingPayout(nil))
}

func TestAlreadySettled(t *testing.T) {
	assert.True(t, alreadySettled(models.PayoutCompleted, true))
	assert.True(t, alreadySettled(models.PayoutFailed, false))

	// Contradictory confirmations are conflicts, not replays.
	assert.False(t, alreadySettled(models.PayoutCompleted, false))
	assert.False(t, alreadySettled(models.PayoutFailed, true))
	assert.False(t, alreadySettled(models.PayoutProcessing, true))
	assert.False(t, alreadySettled(models.PayoutProcessing, false))
}

// ============================================================================
// PAYOUT COMPUTATION
// ============================================================================

func TestComputePayout_MaxBreachScenario(t *testing.T) {
	// 60% of 100,000,000 coverage.
	payout := ComputePayout(models.NewTokenAmount(100_000_000), 60)

	assert.Equal(t, "60000000", payout.String())
}

func TestComputePayout_FloorsFractionalUnits(t *testing.T) {
	payout := ComputePayout(models.NewTokenAmount(99), 50)

	assert.Equal(t, "49", payout.String())
}

func TestComputePayout_NeverExceedsCoverage(t *testing.T) {
	coverage := models.NewTokenAmount(100_000_000)

	for _, pct := range []int64{TemperaturePayoutPercent, RainfallPayoutPercent, 100} {
		payout := ComputePayout(coverage, pct)
		assert.LessOrEqual(t, payout.Cmp(coverage), 0, "percent %d", pct)
	}
}
