package services

import (
	"testing"

	"agriguard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// PREMIUM PRICING
// ============================================================================

func TestComputePremium_WheatTemperate(t *testing.T) {
	// 5% base rate, wheat 1.0x, temperate band 1.0x.
	coverage := models.NewTokenAmount(100_000_000)

	premium, err := ComputePremium(coverage, models.CropWheat, 40.0)

	require.NoError(t, err)
	assert.Equal(t, "5000000", premium.String())
}

func TestComputePremium_Deterministic(t *testing.T) {
	coverage := models.NewTokenAmount(250_000_000)

	first, err := ComputePremium(coverage, models.CropRice, 10.0)
	require.NoError(t, err)
	second, err := ComputePremium(coverage, models.CropRice, 10.0)
	require.NoError(t, err)

	assert.Equal(t, 0, first.Cmp(second))
}

func TestComputePremium_CropLoading(t *testing.T) {
	coverage := models.NewTokenAmount(100_000_000)

	tests := []struct {
		crop     models.CropType
		expected string
	}{
		{models.CropRice, "6000000"},
		{models.CropWheat, "5000000"},
		{models.CropCorn, "5500000"},
		{models.CropCotton, "6500000"},
		{models.CropSoybean, "5250000"},
	}

	for _, tt := range tests {
		premium, err := ComputePremium(coverage, tt.crop, 40.0)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, premium.String(), "crop %s", tt.crop)
	}
}

func TestComputePremium_GeographicLoading(t *testing.T) {
	coverage := models.NewTokenAmount(100_000_000)

	tropical, err := ComputePremium(coverage, models.CropWheat, 10.0)
	require.NoError(t, err)
	assert.Equal(t, "6000000", tropical.String())

	// Southern hemisphere tropics price like northern ones.
	southern, err := ComputePremium(coverage, models.CropWheat, -10.0)
	require.NoError(t, err)
	assert.Equal(t, 0, tropical.Cmp(southern))

	highLatitude, err := ComputePremium(coverage, models.CropWheat, 60.0)
	require.NoError(t, err)
	assert.Equal(t, "5500000", highLatitude.String())
}

func TestComputePremium_BandBoundaries(t *testing.T) {
	coverage := models.NewTokenAmount(100_000_000)

	atTropicLine, err := ComputePremium(coverage, models.CropWheat, 23.5)
	require.NoError(t, err)
	assert.Equal(t, "6000000", atTropicLine.String())

	atTemperateLine, err := ComputePremium(coverage, models.CropWheat, 50.0)
	require.NoError(t, err)
	assert.Equal(t, "5000000", atTemperateLine.String())
}

func TestComputePremium_MinimumFloor(t *testing.T) {
	// 5% of 1,000,000 is 50,000, below the 100,000 floor.
	coverage := models.NewTokenAmount(1_000_000)

	premium, err := ComputePremium(coverage, models.CropWheat, 40.0)

	require.NoError(t, err)
	assert.Equal(t, "100000", premium.String())
}

func TestComputePremium_UnknownCrop(t *testing.T) {
	coverage := models.NewTokenAmount(100_000_000)

	_, err := ComputePremium(coverage, models.CropType("banana"), 40.0)

	require.Error(t, err)
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestComputePremium_FloorsOddAmounts(t *testing.T) {
	// 5% of 100,000,001 is 5,000,000.05; integer math floors it.
	coverage := models.NewTokenAmount(100_000_001)

	premium, err := ComputePremium(coverage, models.CropWheat, 40.0)

	require.NoError(t, err)
	assert.Equal(t, "5000000", premium.String())
}
