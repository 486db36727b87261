package models

import (
	"time"

	"github.com/google/uuid"
)

// Policy is a registered parametric insurance policy. Status only moves
// forward: pending -> active -> claimed, or active -> expired. Rows are never
// deleted, only terminally statused.
type Policy struct {
	ID              uuid.UUID    `json:"id" db:"id"`
	OwnerID         string       `json:"owner_id" db:"owner_id"`
	CropType        CropType     `json:"crop_type" db:"crop_type"`
	Location        GeoJSONPoint `json:"location" db:"location"`
	StationID       string       `json:"station_id" db:"station_id"`
	CoverageAmount  TokenAmount  `json:"coverage_amount" db:"coverage_amount"`
	PremiumAmount   TokenAmount  `json:"premium_amount" db:"premium_amount"`
	PremiumPaid     TokenAmount  `json:"premium_paid" db:"premium_paid"`
	CoverageStart   int64        `json:"coverage_start" db:"coverage_start"`
	CoverageEnd     int64        `json:"coverage_end" db:"coverage_end"`
	MinTemperature  float64      `json:"min_temperature" db:"min_temperature"`
	MaxTemperature  float64      `json:"max_temperature" db:"max_temperature"`
	MinRainfall     float64      `json:"min_rainfall" db:"min_rainfall"`
	MaxRainfall     float64      `json:"max_rainfall" db:"max_rainfall"`
	Status          PolicyStatus `json:"status" db:"status"`
	TotalClaimsPaid TokenAmount  `json:"total_claims_paid" db:"total_claims_paid"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// InWindow reports whether ts falls inside the coverage window [start, end).
func (p *Policy) InWindow(ts int64) bool {
	return ts >= p.CoverageStart && ts < p.CoverageEnd
}

// LedgerStats is the single aggregate row summarizing the ledger. It is only
// mutated inside the same transaction as the policy or claim mutation it
// summarizes, never as separately synchronized global state.
type LedgerStats struct {
	TotalPolicies          int64       `json:"total_policies" db:"total_policies"`
	ActivePolicies         int64       `json:"active_policies" db:"active_policies"`
	TotalPremiumsCollected TokenAmount `json:"total_premiums_collected" db:"total_premiums_collected"`
	TotalClaimsPaid        TokenAmount `json:"total_claims_paid" db:"total_claims_paid"`
	UpdatedAt              time.Time   `json:"updated_at" db:"updated_at"`
}
