package models

import (
	"time"

	"github.com/google/uuid"
)

// WeatherObservation is one reading recorded on the ledger. Observations are
// append-only: once written they are never mutated and are retained
// indefinitely for audit. (station_id, measured_at) is unique and serves as
// the automation loop's dedupe key.
type WeatherObservation struct {
	ID           uuid.UUID `json:"id" db:"id"`
	StationID    string    `json:"station_id" db:"station_id"`
	MeasuredAt   int64     `json:"measured_at" db:"measured_at"`
	Temperature  float64   `json:"temperature" db:"temperature"`
	Rainfall     float64   `json:"rainfall" db:"rainfall"`
	Humidity     float64   `json:"humidity" db:"humidity"`
	WindSpeed    float64   `json:"wind_speed" db:"wind_speed"`
	AnchorDigest string    `json:"anchor_digest" db:"anchor_digest"`
	SubmittedBy  string    `json:"submitted_by" db:"submitted_by"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Station is a weather station that policies bind to. The automation loop
// iterates enabled stations each cycle.
type Station struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	Enabled   bool      `json:"enabled" db:"enabled"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// OracleRegistryEntry maps an external account to its authorization to submit
// weather observations. Mutated only by the admin identity.
type OracleRegistryEntry struct {
	AccountID  string    `json:"account_id" db:"account_id"`
	Authorized bool      `json:"authorized" db:"authorized"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
