package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agriguard/internal/models"

	"github.com/jmoiron/sqlx"
)

type StationRepository struct {
	db *sqlx.DB
}

func NewStationRepository(db *sqlx.DB) *StationRepository {
	return &StationRepository{db: db}
}

func (r *StationRepository) GetByID(ctx context.Context, id string) (*models.Station, error) {
	var station models.Station
	query := `SELECT id, name, latitude, longitude, enabled, created_at FROM station WHERE id = $1`

	err := r.db.GetContext(ctx, &station, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("station %s not found: %w", id, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get station: %w", err)
	}

	return &station, nil
}

// GetEnabled lists the stations the automation loop covers each cycle.
func (r *StationRepository) GetEnabled(ctx context.Context) ([]models.Station, error) {
	var stations []models.Station
	query := `SELECT id, name, latitude, longitude, enabled, created_at FROM station WHERE enabled ORDER BY id`

	err := r.db.SelectContext(ctx, &stations, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled stations: %w", err)
	}

	return stations, nil
}

func (r *StationRepository) Upsert(ctx context.Context, station *models.Station) error {
	query := `
		INSERT INTO station (id, name, latitude, longitude, enabled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = $2, latitude = $3, longitude = $4, enabled = $5
	`

	_, err := r.db.ExecContext(ctx, query,
		station.ID, station.Name, station.Latitude, station.Longitude, station.Enabled)
	if err != nil {
		return fmt.Errorf("failed to upsert station: %w", err)
	}

	return nil
}
