package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agriguard/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const observationColumns = `id, station_id, measured_at, temperature, rainfall,
	       humidity, wind_speed, anchor_digest, submitted_by, created_at`

type ObservationRepository struct {
	db *sqlx.DB
}

func NewObservationRepository(db *sqlx.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// Create appends an observation. (station_id, measured_at) is unique, so a
// re-submitted reading from a crashed cycle inserts nothing; the caller sees
// a StateConflictError and treats the observation as already recorded.
func (r *ObservationRepository) Create(ctx context.Context, obs *models.WeatherObservation) error {
	query := `
		INSERT INTO weather_observation (id, station_id, measured_at, temperature, rainfall,
		                                 humidity, wind_speed, anchor_digest, submitted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (station_id, measured_at) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		obs.ID, obs.StationID, obs.MeasuredAt, obs.Temperature, obs.Rainfall,
		obs.Humidity, obs.WindSpeed, obs.AnchorDigest, obs.SubmittedBy)
	if err != nil {
		return fmt.Errorf("failed to create observation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &models.StateConflictError{
			Entity:  "observation",
			ID:      fmt.Sprintf("%s@%d", obs.StationID, obs.MeasuredAt),
			Current: "recorded",
			Op:      "record again",
		}
	}

	return nil
}

func (r *ObservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WeatherObservation, error) {
	var obs models.WeatherObservation
	query := `SELECT ` + observationColumns + ` FROM weather_observation WHERE id = $1`

	err := r.db.GetContext(ctx, &obs, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("observation %s not found: %w", id, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get observation by id: %w", err)
	}

	return &obs, nil
}

// GetByStationAndTime resolves the dedupe key back to the stored row, which
// is how a re-run cycle recovers the observation it already submitted.
func (r *ObservationRepository) GetByStationAndTime(ctx context.Context, stationID string, measuredAt int64) (*models.WeatherObservation, error) {
	var obs models.WeatherObservation
	query := `SELECT ` + observationColumns + ` FROM weather_observation WHERE station_id = $1 AND measured_at = $2`

	err := r.db.GetContext(ctx, &obs, query, stationID, measuredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("observation %s@%d not found: %w", stationID, measuredAt, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get observation by station and time: %w", err)
	}

	return &obs, nil
}

func (r *ObservationRepository) GetByStation(ctx context.Context, stationID string, limit int) ([]models.WeatherObservation, error) {
	var observations []models.WeatherObservation
	query := `
		SELECT ` + observationColumns + `
		FROM weather_observation
		WHERE station_id = $1
		ORDER BY measured_at DESC
		LIMIT $2
	`

	err := r.db.SelectContext(ctx, &observations, query, stationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get observations by station: %w", err)
	}

	return observations, nil
}
