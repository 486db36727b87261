package models

import "github.com/google/uuid"

// ============================================================================
// POLICY REQUESTS
// ============================================================================

type CreatePolicyRequest struct {
	CropType       CropType     `json:"crop_type"`
	Location       GeoJSONPoint `json:"location"`
	StationID      string       `json:"station_id"`
	CoverageAmount TokenAmount  `json:"coverage_amount"`
	CoverageStart  int64        `json:"coverage_start"`
	CoverageEnd    int64        `json:"coverage_end"`
	MinTemperature float64      `json:"min_temperature"`
	MaxTemperature float64      `json:"max_temperature"`
	MinRainfall    float64      `json:"min_rainfall"`
	MaxRainfall    float64      `json:"max_rainfall"`
}

type CreatePolicyResponse struct {
	PolicyID      uuid.UUID   `json:"policy_id"`
	PremiumAmount TokenAmount `json:"premium_amount"`
	Status        PolicyStatus `json:"status"`
}

// ============================================================================
// CLAIM REQUESTS
// ============================================================================

type FileClaimRequest struct {
	PolicyID      uuid.UUID `json:"policy_id"`
	Reason        string    `json:"reason"`
	ObservationID uuid.UUID `json:"observation_id"`
}

type AdminTriggerPayoutRequest struct {
	ClaimID   uuid.UUID   `json:"claim_id"`
	Recipient string      `json:"recipient"`
	Amount    TokenAmount `json:"amount"`
}

// ============================================================================
// ORACLE / OBSERVATION REQUESTS
// ============================================================================

type SubmitObservationRequest struct {
	StationID    string  `json:"station_id"`
	MeasuredAt   int64   `json:"measured_at"`
	Temperature  float64 `json:"temperature"`
	Rainfall     float64 `json:"rainfall"`
	Humidity     float64 `json:"humidity"`
	WindSpeed    float64 `json:"wind_speed"`
	AnchorDigest string  `json:"anchor_digest"`
}

// ============================================================================
// SETTLEMENT CALLBACKS (token issuer boundary)
// ============================================================================

// TokenReceivedRequest is the issuer's credit notification after tokens land
// in the ledger custody account. The caller identity comes from the verified
// issuer token, never from this body.
type TokenReceivedRequest struct {
	Payer   string      `json:"payer"`
	Amount  TokenAmount `json:"amount"`
	Message string      `json:"message"`
}

// TokenReceivedResponse carries the amount the ledger refuses to keep. The
// issuer credits it back to the payer.
type TokenReceivedResponse struct {
	Refund TokenAmount `json:"refund"`
}

// TransferStatusRequest is the issuer's settlement confirmation for an
// outbound transfer previously initiated by the payout engine.
type TransferStatusRequest struct {
	TransferID string `json:"transfer_id"`
	Succeeded  bool   `json:"succeeded"`
	Detail     string `json:"detail,omitempty"`
}
