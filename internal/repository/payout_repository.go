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

const payoutColumns = `id, claim_id, policy_id, recipient, amount, transfer_id,
	       status, initiated_at, completed_at`

type PayoutRepository struct {
	db *sqlx.DB
}

func NewPayoutRepository(db *sqlx.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) Create(ctx context.Context, payout *models.Payout) error {
	query := `
		INSERT INTO payout (id, claim_id, policy_id, recipient, amount, transfer_id, status, initiated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		payout.ID, payout.ClaimID, payout.PolicyID, payout.Recipient,
		payout.Amount, payout.TransferID, payout.Status, payout.InitiatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payout: %w", err)
	}

	return nil
}

func (r *PayoutRepository) GetByTransferID(ctx context.Context, transferID string) (*models.Payout, error) {
	var payout models.Payout
	query := `SELECT ` + payoutColumns + ` FROM payout WHERE transfer_id = $1`

	err := r.db.GetContext(ctx, &payout, query, transferID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payout for transfer %s not found: %w", transferID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payout by transfer id: %w", err)
	}

	return &payout, nil
}

func (r *PayoutRepository) GetByClaimID(ctx context.Context, claimID uuid.UUID) ([]models.Payout, error) {
	var payouts []models.Payout
	query := `SELECT ` + payoutColumns + ` FROM payout WHERE claim_id = $1 ORDER BY initiated_at DESC`

	err := r.db.SelectContext(ctx, &payouts, query, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payouts by claim id: %w", err)
	}

	return payouts, nil
}

func (r *PayoutRepository) markStatusTx(tx *sqlx.Tx, id uuid.UUID, status models.PayoutStatus) error {
	query := `
		UPDATE payout
		SET status = $1, completed_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := tx.Exec(query, status, id, models.PayoutProcessing)
	if err != nil {
		return fmt.Errorf("failed to update payout status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &models.StateConflictError{Entity: "payout", ID: id.String(), Current: "non-processing", Op: "settle"}
	}

	return nil
}

func (r *PayoutRepository) MarkCompletedTx(tx *sqlx.Tx, id uuid.UUID) error {
	return r.markStatusTx(tx, id, models.PayoutCompleted)
}

func (r *PayoutRepository) MarkFailedTx(tx *sqlx.Tx, id uuid.UUID) error {
	return r.markStatusTx(tx, id, models.PayoutFailed)
}
