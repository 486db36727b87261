package models

type CropType string

const (
	CropRice    CropType = "rice"
	CropWheat   CropType = "wheat"
	CropCorn    CropType = "corn"
	CropCotton  CropType = "cotton"
	CropSoybean CropType = "soybean"
)

// KnownCropTypes lists every crop the premium engine can price. Adding a crop
// requires a matching case in services.CropRiskMultiplier, which fails on
// anything not listed here.
var KnownCropTypes = []CropType{CropRice, CropWheat, CropCorn, CropCotton, CropSoybean}

func (c CropType) Valid() bool {
	for _, known := range KnownCropTypes {
		if c == known {
			return true
		}
	}
	return false
}

type PolicyStatus string

const (
	PolicyPending PolicyStatus = "pending"
	PolicyActive  PolicyStatus = "active"
	PolicyExpired PolicyStatus = "expired"
	PolicyClaimed PolicyStatus = "claimed"
)

type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
	ClaimPaid     ClaimStatus = "paid"
)

type PayoutStatus string

const (
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

type TriggerReason string

const (
	TriggerTemperature TriggerReason = "temperature_breach"
	TriggerRainfall    TriggerReason = "rainfall_breach"
	TriggerManual      TriggerReason = "manual_filing"
)
