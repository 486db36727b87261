package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agriguard/internal/models"

	"github.com/jmoiron/sqlx"
)

type OracleRepository struct {
	db *sqlx.DB
}

func NewOracleRepository(db *sqlx.DB) *OracleRepository {
	return &OracleRepository{db: db}
}

// SetAuthorization upserts the oracle's flag. Revoking keeps the row so the
// audit trail survives.
func (r *OracleRepository) SetAuthorization(ctx context.Context, accountID string, authorized bool) error {
	query := `
		INSERT INTO oracle_registry (account_id, authorized)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET authorized = $2, updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, accountID, authorized)
	if err != nil {
		return fmt.Errorf("failed to set oracle authorization: %w", err)
	}

	return nil
}

func (r *OracleRepository) IsAuthorized(ctx context.Context, accountID string) (bool, error) {
	var authorized bool
	query := `SELECT authorized FROM oracle_registry WHERE account_id = $1`

	err := r.db.GetContext(ctx, &authorized, query, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check oracle authorization: %w", err)
	}

	return authorized, nil
}

func (r *OracleRepository) Get(ctx context.Context, accountID string) (*models.OracleRegistryEntry, error) {
	var entry models.OracleRegistryEntry
	query := `SELECT account_id, authorized, created_at, updated_at FROM oracle_registry WHERE account_id = $1`

	err := r.db.GetContext(ctx, &entry, query, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("oracle %s not found: %w", accountID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get oracle entry: %w", err)
	}

	return &entry, nil
}
