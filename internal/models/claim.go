package models

import (
	"time"

	"github.com/google/uuid"
)

// Claim records one payout demand against a policy. ClaimAmount is fixed when
// the claim is approved and never recomputed afterwards; the paid transition
// happens at most once.
type Claim struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	PolicyID      uuid.UUID     `json:"policy_id" db:"policy_id"`
	Claimant      string        `json:"claimant" db:"claimant"`
	ClaimAmount   TokenAmount   `json:"claim_amount" db:"claim_amount"`
	TriggerReason TriggerReason `json:"trigger_reason" db:"trigger_reason"`
	ObservationID uuid.UUID     `json:"observation_id" db:"observation_id"`
	Status        ClaimStatus   `json:"status" db:"status"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// Payout tracks one token transfer issued for an approved claim. The claim
// only becomes paid when the token issuer confirms the transfer referenced by
// TransferID; a failed transfer leaves the claim approved for remediation.
type Payout struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	ClaimID     uuid.UUID    `json:"claim_id" db:"claim_id"`
	PolicyID    uuid.UUID    `json:"policy_id" db:"policy_id"`
	Recipient   string       `json:"recipient" db:"recipient"`
	Amount      TokenAmount  `json:"amount" db:"amount"`
	TransferID  string       `json:"transfer_id" db:"transfer_id"`
	Status      PayoutStatus `json:"status" db:"status"`
	InitiatedAt time.Time    `json:"initiated_at" db:"initiated_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
}
