package services

import (
	"agriguard/internal/models"
)

// Premium pricing is pure and deterministic: the same coverage, crop and
// location always price identically. All math stays in integer token units.
const (
	// BaseRateBasisPoints is the flat premium rate before risk loading.
	BaseRateBasisPoints = 500

	// MinPremiumUnits is the floor below which a premium never drops,
	// regardless of coverage size.
	MinPremiumUnits = 100_000
)

type riskMultiplier struct {
	num int64
	den int64
}

// CropRiskMultiplier returns the risk loading for a crop. The switch is
// exhaustive over models.KnownCropTypes: an unknown crop is a validation
// failure, never a silent fallback to a default multiplier.
func CropRiskMultiplier(crop models.CropType) (riskMultiplier, error) {
	switch crop {
	case models.CropRice:
		return riskMultiplier{120, 100}, nil
	case models.CropWheat:
		return riskMultiplier{100, 100}, nil
	case models.CropCorn:
		return riskMultiplier{110, 100}, nil
	case models.CropCotton:
		return riskMultiplier{130, 100}, nil
	case models.CropSoybean:
		return riskMultiplier{105, 100}, nil
	default:
		return riskMultiplier{}, &models.ValidationError{Field: "crop_type", Reason: "unknown crop " + string(crop)}
	}
}

// GeoRiskMultiplier loads the premium by latitude band: tropical latitudes
// carry cyclone and monsoon exposure, high latitudes carry frost exposure.
func GeoRiskMultiplier(latitude float64) riskMultiplier {
	abs := latitude
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs <= 23.5:
		return riskMultiplier{120, 100}
	case abs <= 50:
		return riskMultiplier{100, 100}
	default:
		return riskMultiplier{110, 100}
	}
}

// ComputePremium prices a policy: base rate x crop risk x geographic risk,
// floored at the minimum premium.
func ComputePremium(coverage models.TokenAmount, crop models.CropType, latitude float64) (models.TokenAmount, error) {
	cropRisk, err := CropRiskMultiplier(crop)
	if err != nil {
		return models.TokenAmount{}, err
	}
	geoRisk := GeoRiskMultiplier(latitude)

	premium := coverage.MulDiv(BaseRateBasisPoints, 10_000)
	premium = premium.MulDiv(cropRisk.num, cropRisk.den)
	premium = premium.MulDiv(geoRisk.num, geoRisk.den)

	floor := models.NewTokenAmount(MinPremiumUnits)
	if premium.Cmp(floor) < 0 {
		return floor, nil
	}
	return premium, nil
}
