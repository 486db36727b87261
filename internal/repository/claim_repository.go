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

const claimColumns = `id, policy_id, claimant, claim_amount, trigger_reason,
	       observation_id, status, created_at, updated_at`

type ClaimRepository struct {
	db *sqlx.DB
}

func NewClaimRepository(db *sqlx.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

func (r *ClaimRepository) BeginTransaction() (*sqlx.Tx, error) {
	return r.db.Beginx()
}

func (r *ClaimRepository) Create(ctx context.Context, claim *models.Claim) error {
	query := `
		INSERT INTO claim (id, policy_id, claimant, claim_amount, trigger_reason,
		                   observation_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		claim.ID, claim.PolicyID, claim.Claimant, claim.ClaimAmount,
		claim.TriggerReason, claim.ObservationID, claim.Status)
	if err != nil {
		return fmt.Errorf("failed to create claim: %w", err)
	}

	return nil
}

func (r *ClaimRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	var claim models.Claim
	query := `SELECT ` + claimColumns + ` FROM claim WHERE id = $1`

	err := r.db.GetContext(ctx, &claim, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim %s not found: %w", id, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim by id: %w", err)
	}

	return &claim, nil
}

func (r *ClaimRepository) GetByPolicyID(ctx context.Context, policyID uuid.UUID) ([]models.Claim, error) {
	var claims []models.Claim
	query := `SELECT ` + claimColumns + ` FROM claim WHERE policy_id = $1 ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &claims, query, policyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get claims by policy id: %w", err)
	}

	return claims, nil
}

// ExistsForObservation reports whether the policy already has a claim
// referencing this observation. The automation loop's backstop against
// double-triggering the same breach after a crashed cycle.
func (r *ClaimRepository) ExistsForObservation(ctx context.Context, policyID, observationID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM claim WHERE policy_id = $1 AND observation_id = $2)`

	err := r.db.GetContext(ctx, &exists, query, policyID, observationID)
	if err != nil {
		return false, fmt.Errorf("failed to check claim existence: %w", err)
	}

	return exists, nil
}

// Approve fixes the claim amount and trigger reason. The amount is never
// recomputed after this point.
func (r *ClaimRepository) Approve(ctx context.Context, id uuid.UUID, amount models.TokenAmount, reason models.TriggerReason) error {
	query := `
		UPDATE claim
		SET status = $1, claim_amount = $2, trigger_reason = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query, models.ClaimApproved, amount, reason, id, models.ClaimPending)
	if err != nil {
		return fmt.Errorf("failed to approve claim: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &models.StateConflictError{Entity: "claim", ID: id.String(), Current: "non-pending", Op: "approve"}
	}

	return nil
}

// MarkPaidTx transitions an approved claim to paid. The status guard makes
// the paid transition happen at most once no matter how often the settlement
// confirmation is replayed.
func (r *ClaimRepository) MarkPaidTx(tx *sqlx.Tx, id uuid.UUID) error {
	query := `
		UPDATE claim
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := tx.Exec(query, models.ClaimPaid, id, models.ClaimApproved)
	if err != nil {
		return fmt.Errorf("failed to mark claim paid: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &models.StateConflictError{Entity: "claim", ID: id.String(), Current: "non-approved", Op: "mark paid"}
	}

	return nil
}
