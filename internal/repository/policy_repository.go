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

const policyColumns = `id, owner_id, crop_type, location, station_id, coverage_amount,
	       premium_amount, premium_paid, coverage_start, coverage_end,
	       min_temperature, max_temperature, min_rainfall, max_rainfall,
	       status, total_claims_paid, created_at, updated_at`

type PolicyRepository struct {
	db *sqlx.DB
}

func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

func (r *PolicyRepository) BeginTransaction() (*sqlx.Tx, error) {
	return r.db.Beginx()
}

// CreateTx inserts a new pending policy inside the caller's transaction so
// the ledger stats row can move in the same commit.
func (r *PolicyRepository) CreateTx(tx *sqlx.Tx, policy *models.Policy) error {
	query := `
		INSERT INTO policy (id, owner_id, crop_type, location, station_id, coverage_amount,
		                    premium_amount, premium_paid, coverage_start, coverage_end,
		                    min_temperature, max_temperature, min_rainfall, max_rainfall,
		                    status, total_claims_paid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := tx.Exec(query,
		policy.ID, policy.OwnerID, policy.CropType, policy.Location, policy.StationID,
		policy.CoverageAmount, policy.PremiumAmount, policy.PremiumPaid,
		policy.CoverageStart, policy.CoverageEnd,
		policy.MinTemperature, policy.MaxTemperature,
		policy.MinRainfall, policy.MaxRainfall,
		policy.Status, policy.TotalClaimsPaid)
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}

	return nil
}

func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	var policy models.Policy
	query := `SELECT ` + policyColumns + ` FROM policy WHERE id = $1`

	err := r.db.GetContext(ctx, &policy, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("policy %s not found: %w", id, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy by id: %w", err)
	}

	return &policy, nil
}

// List retrieves policies with optional station and status filters. Both
// columns are indexed so this never degenerates into a full-table scan.
func (r *PolicyRepository) List(ctx context.Context, filters map[string]interface{}) ([]models.Policy, error) {
	var policies []models.Policy
	query := `SELECT ` + policyColumns + ` FROM policy WHERE 1=1`

	args := []interface{}{}
	argCount := 1

	if stationID, ok := filters["station_id"].(string); ok {
		query += fmt.Sprintf(" AND station_id = $%d", argCount)
		args = append(args, stationID)
		argCount++
	}

	if status, ok := filters["status"].(models.PolicyStatus); ok {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, status)
		argCount++
	}

	if ownerID, ok := filters["owner_id"].(string); ok {
		query += fmt.Sprintf(" AND owner_id = $%d", argCount)
		args = append(args, ownerID)
		argCount++
	}

	query += " ORDER BY created_at DESC"

	err := r.db.SelectContext(ctx, &policies, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}

	return policies, nil
}

// GetActiveByStation is the automation loop's evaluation query.
func (r *PolicyRepository) GetActiveByStation(ctx context.Context, stationID string) ([]models.Policy, error) {
	return r.List(ctx, map[string]interface{}{
		"station_id": stationID,
		"status":     models.PolicyActive,
	})
}

// ActivateTx flips a pending policy to active and records the premium
// actually received. The status guard in the WHERE clause is what makes
// replayed settlement callbacks harmless: a second delivery matches zero rows.
func (r *PolicyRepository) ActivateTx(tx *sqlx.Tx, id uuid.UUID, premiumPaid models.TokenAmount) error {
	query := `
		UPDATE policy
		SET status = $1, premium_paid = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := tx.Exec(query, models.PolicyActive, premiumPaid, id, models.PolicyPending)
	if err != nil {
		return fmt.Errorf("failed to activate policy: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &models.StateConflictError{Entity: "policy", ID: id.String(), Current: "non-pending", Op: "activate"}
	}

	return nil
}

// MarkClaimedTx moves an active policy to claimed and accumulates the paid
// amount. Guarded the same way as ActivateTx.
func (r *PolicyRepository) MarkClaimedTx(tx *sqlx.Tx, id uuid.UUID, claimAmount models.TokenAmount) error {
	query := `
		UPDATE policy
		SET status = $1, total_claims_paid = total_claims_paid + $2::numeric, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := tx.Exec(query, models.PolicyClaimed, claimAmount, id, models.PolicyActive)
	if err != nil {
		return fmt.Errorf("failed to mark policy claimed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &models.StateConflictError{Entity: "policy", ID: id.String(), Current: "non-active", Op: "mark claimed"}
	}

	return nil
}

// ExpireElapsed terminates active policies whose coverage window has ended
// without a trigger. Returns how many were expired.
func (r *PolicyRepository) ExpireElapsed(ctx context.Context, now int64) (int64, error) {
	query := `
		UPDATE policy
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND coverage_end <= $3
	`

	result, err := r.db.ExecContext(ctx, query, models.PolicyExpired, models.PolicyActive, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire policies: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
