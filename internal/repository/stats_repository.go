package repository

import (
	"context"
	"fmt"

	"agriguard/internal/models"

	"github.com/jmoiron/sqlx"
)

// StatsRepository maintains the single ledger_stats row. Every mutation runs
// inside the same transaction as the policy or claim change it summarizes, so
// the aggregates can never drift from the rows they count.
type StatsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) Get(ctx context.Context) (*models.LedgerStats, error) {
	var stats models.LedgerStats
	query := `
		SELECT total_policies, active_policies, total_premiums_collected,
		       total_claims_paid, updated_at
		FROM ledger_stats
		WHERE id = 1
	`

	err := r.db.GetContext(ctx, &stats, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger stats: %w", err)
	}

	return &stats, nil
}

func (r *StatsRepository) IncrementPoliciesTx(tx *sqlx.Tx) error {
	query := `UPDATE ledger_stats SET total_policies = total_policies + 1, updated_at = NOW() WHERE id = 1`
	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("failed to increment policy count: %w", err)
	}
	return nil
}

func (r *StatsRepository) RecordPremiumTx(tx *sqlx.Tx, premium models.TokenAmount) error {
	query := `
		UPDATE ledger_stats
		SET active_policies = active_policies + 1,
		    total_premiums_collected = total_premiums_collected + $1::numeric,
		    updated_at = NOW()
		WHERE id = 1
	`
	if _, err := tx.Exec(query, premium); err != nil {
		return fmt.Errorf("failed to record premium: %w", err)
	}
	return nil
}

func (r *StatsRepository) RecordClaimPaidTx(tx *sqlx.Tx, amount models.TokenAmount) error {
	query := `
		UPDATE ledger_stats
		SET active_policies = active_policies - 1,
		    total_claims_paid = total_claims_paid + $1::numeric,
		    updated_at = NOW()
		WHERE id = 1
	`
	if _, err := tx.Exec(query, amount); err != nil {
		return fmt.Errorf("failed to record claim payout: %w", err)
	}
	return nil
}
