package services

import (
	"testing"
	"time"

	"agriguard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func validPolicyRequest(now time.Time) *models.CreatePolicyRequest {
	start := now.Add(24 * time.Hour).Unix()
	return &models.CreatePolicyRequest{
		CropType:       models.CropWheat,
		Location:       models.NewGeoJSONPoint(105.85, 21.03),
		StationID:      "station-001",
		CoverageAmount: models.NewTokenAmount(100_000_000),
		CoverageStart:  start,
		CoverageEnd:    start + 90*24*60*60,
		MinTemperature: 5.0,
		MaxTemperature: 40.0,
		MinRainfall:    10.0,
		MaxRainfall:    200.0,
	}
}

// ============================================================================
// POLICY CREATION VALIDATION
// ============================================================================

func TestValidateCreatePolicy_Valid(t *testing.T) {
	now := time.Now()

	err := ValidateCreatePolicy(validPolicyRequest(now), now)

	require.NoError(t, err)
}

func TestValidateCreatePolicy_UnknownCrop(t *testing.T) {
	now := time.Now()
	req := validPolicyRequest(now)
	req.CropType = models.CropType("banana")

	err := ValidateCreatePolicy(req, now)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "crop_type", verr.Field)
}

func TestValidateCreatePolicy_CoverageBounds(t *testing.T) {
	now := time.Now()

	tooSmall := validPolicyRequest(now)
	tooSmall.CoverageAmount = models.NewTokenAmount(MinCoverageUnits - 1)
	assert.Error(t, ValidateCreatePolicy(tooSmall, now))

	tooLarge := validPolicyRequest(now)
	tooLarge.CoverageAmount = models.NewTokenAmount(MaxCoverageUnits + 1)
	assert.Error(t, ValidateCreatePolicy(tooLarge, now))

	atMin := validPolicyRequest(now)
	atMin.CoverageAmount = models.NewTokenAmount(MinCoverageUnits)
	assert.NoError(t, ValidateCreatePolicy(atMin, now))

	atMax := validPolicyRequest(now)
	atMax.CoverageAmount = models.NewTokenAmount(MaxCoverageUnits)
	assert.NoError(t, ValidateCreatePolicy(atMax, now))
}

func TestValidateCreatePolicy_StartMustBeFuture(t *testing.T) {
	now := time.Now()
	req := validPolicyRequest(now)
	req.CoverageStart = now.Unix()
	req.CoverageEnd = req.CoverageStart + 90*24*60*60

	err := ValidateCreatePolicy(req, now)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "coverage_start", verr.Field)
}

func TestValidateCreatePolicy_WindowLength(t *testing.T) {
	now := time.Now()

	tooShort := validPolicyRequest(now)
	tooShort.CoverageEnd = tooShort.CoverageStart + int64((MinCoverageDuration - time.Second).Seconds())
	assert.Error(t, ValidateCreatePolicy(tooShort, now))

	tooLong := validPolicyRequest(now)
	tooLong.CoverageEnd = tooLong.CoverageStart + int64((MaxCoverageDuration + time.Second).Seconds())
	assert.Error(t, ValidateCreatePolicy(tooLong, now))

	exactMin := validPolicyRequest(now)
	exactMin.CoverageEnd = exactMin.CoverageStart + int64(MinCoverageDuration.Seconds())
	assert.NoError(t, ValidateCreatePolicy(exactMin, now))
}

func TestValidateCreatePolicy_InvertedThresholds(t *testing.T) {
	now := time.Now()

	badTemp := validPolicyRequest(now)
	badTemp.MinTemperature = 40.0
	badTemp.MaxTemperature = 5.0
	assert.Error(t, ValidateCreatePolicy(badTemp, now))

	badRain := validPolicyRequest(now)
	badRain.MinRainfall = 200.0
	badRain.MaxRainfall = 10.0
	assert.Error(t, ValidateCreatePolicy(badRain, now))
}

func TestValidateCreatePolicy_LocationOutOfRange(t *testing.T) {
	now := time.Now()
	req := validPolicyRequest(now)
	req.Location = models.NewGeoJSONPoint(200.0, 21.03)

	assert.Error(t, ValidateCreatePolicy(req, now))
}

func TestValidateCreatePolicy_MissingStation(t *testing.T) {
	now := time.Now()
	req := validPolicyRequest(now)
	req.StationID = ""

	var verr *models.ValidationError
	require.ErrorAs(t, ValidateCreatePolicy(req, now), &verr)
	assert.Equal(t, "station_id", verr.Field)
}

// ============================================================================
// COVERAGE WINDOW
// ============================================================================

func TestPolicyInWindow_HalfOpenInterval(t *testing.T) {
	policy := &models.Policy{CoverageStart: 1000, CoverageEnd: 2000}

	assert.False(t, policy.InWindow(999))
	assert.True(t, policy.InWindow(1000))
	assert.True(t, policy.InWindow(1999))
	assert.False(t, policy.InWindow(2000))
}
