package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"agriguard/internal/models"
	"agriguard/internal/repository"

	"github.com/google/uuid"
)

// Per-dimension payout percentages. A claim's percentage is the maximum, not
// the sum, across breached dimensions, so correlated triggers cannot stack
// into an over-payout.
const (
	TemperaturePayoutPercent = 50
	RainfallPayoutPercent    = 60
)

// TokenTransferor initiates an outbound token transfer via the issuer and
// returns the issuer-assigned transfer id. Implementations attach the
// anti-spoofing security deposit.
type TokenTransferor interface {
	Transfer(ctx context.Context, to string, amount models.TokenAmount, memo string) (string, error)
}

// BreachResult is the outcome of evaluating one observation against one
// policy's thresholds.
type BreachResult struct {
	Breached      bool
	PayoutPercent int64
	Reason        models.TriggerReason
}

// EvaluateThresholds compares an observation against the policy's trigger
// set. Pure and deterministic.
func EvaluateThresholds(policy *models.Policy, obs *models.WeatherObservation) BreachResult {
	var result BreachResult

	if obs.Temperature < policy.MinTemperature || obs.Temperature > policy.MaxTemperature {
		result = BreachResult{Breached: true, PayoutPercent: TemperaturePayoutPercent, Reason: models.TriggerTemperature}
	}
	if obs.Rainfall < policy.MinRainfall || obs.Rainfall > policy.MaxRainfall {
		if RainfallPayoutPercent > result.PayoutPercent {
			result = BreachResult{Breached: true, PayoutPercent: RainfallPayoutPercent, Reason: models.TriggerRainfall}
		}
	}

	return result
}

// ComputePayout returns floor(coverage x percent / 100).
func ComputePayout(coverage models.TokenAmount, percent int64) models.TokenAmount {
	return coverage.MulDiv(percent, 100)
}

type ClaimService struct {
	claimRepo   *repository.ClaimRepository
	policyRepo  *repository.PolicyRepository
	obsRepo     *repository.ObservationRepository
	payoutRepo  *repository.PayoutRepository
	statsRepo   *repository.StatsRepository
	token       TokenTransferor
	events      LedgerEventPublisher
	proxyOracle string
}

func NewClaimService(
	claimRepo *repository.ClaimRepository,
	policyRepo *repository.PolicyRepository,
	obsRepo *repository.ObservationRepository,
	payoutRepo *repository.PayoutRepository,
	statsRepo *repository.StatsRepository,
	token TokenTransferor,
	events LedgerEventPublisher,
	proxyOracle string,
) *ClaimService {
	return &ClaimService{
		claimRepo:   claimRepo,
		policyRepo:  policyRepo,
		obsRepo:     obsRepo,
		payoutRepo:  payoutRepo,
		statsRepo:   statsRepo,
		token:       token,
		events:      events,
		proxyOracle: proxyOracle,
	}
}

// ValidateClaimObservation checks that the cited observation can support a
// claim against the policy: it must come from the policy's own station and
// have been measured inside the coverage window. Without this a claimant
// could cite a breaching reading from anywhere on the ledger.
func ValidateClaimObservation(policy *models.Policy, obs *models.WeatherObservation) error {
	if obs.StationID != policy.StationID {
		return &models.ValidationError{Field: "observation_id", Reason: "observation is not from the policy's station"}
	}
	if !policy.InWindow(obs.MeasuredAt) {
		return &models.ValidationError{Field: "observation_id", Reason: "observation was measured outside the coverage window"}
	}
	return nil
}

// FileClaim creates a claim against an active policy and immediately runs
// automatic evaluation. The filer must be the policy owner, or the automation
// loop's proxy identity acting for the owner; the proxy authority is scoped
// to evaluation only, the payout recipient is always the owner.
func (s *ClaimService) FileClaim(ctx context.Context, filer string, req *models.FileClaimRequest) (*models.Claim, error) {
	policy, err := s.policyRepo.GetByID(ctx, req.PolicyID)
	if err != nil {
		return nil, fmt.Errorf("policy not found: %w", err)
	}

	if filer != policy.OwnerID && filer != s.proxyOracle {
		return nil, &models.AuthorizationError{Caller: filer, Action: "file claim on policy " + policy.ID.String()}
	}
	if policy.Status != models.PolicyActive {
		return nil, &models.StateConflictError{Entity: "policy", ID: policy.ID.String(), Current: string(policy.Status), Op: "file claim"}
	}

	obs, err := s.obsRepo.GetByID(ctx, req.ObservationID)
	if err != nil {
		return nil, fmt.Errorf("observation not found: %w", err)
	}
	if err := ValidateClaimObservation(policy, obs); err != nil {
		return nil, err
	}

	// One observation triggers at most one claim per policy, so a crashed
	// automation cycle can re-run its evaluation step safely.
	exists, err := s.claimRepo.ExistsForObservation(ctx, policy.ID, obs.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &models.StateConflictError{Entity: "claim", ID: obs.ID.String(), Current: "already filed", Op: "file again"}
	}

	claim := &models.Claim{
		ID:            uuid.New(),
		PolicyID:      policy.ID,
		Claimant:      policy.OwnerID,
		ClaimAmount:   models.NewTokenAmount(0),
		TriggerReason: models.TriggerManual,
		ObservationID: obs.ID,
		Status:        models.ClaimPending,
	}
	if err := s.claimRepo.Create(ctx, claim); err != nil {
		return nil, err
	}

	result := EvaluateThresholds(policy, obs)
	if !result.Breached {
		// No dimension violated: the claim stays pending, nothing pays out.
		slog.Info("claim filed without breach", "claim_id", claim.ID, "policy_id", policy.ID)
		return claim, nil
	}

	amount := ComputePayout(policy.CoverageAmount, result.PayoutPercent)
	if err := s.claimRepo.Approve(ctx, claim.ID, amount, result.Reason); err != nil {
		return nil, err
	}
	claim.Status = models.ClaimApproved
	claim.ClaimAmount = amount
	claim.TriggerReason = result.Reason

	slog.Info("claim approved",
		"claim_id", claim.ID,
		"policy_id", policy.ID,
		"payout_percent", result.PayoutPercent,
		"amount", amount.String())

	if s.events != nil {
		s.events.Publish(ctx, "claim.approved", claim)
	}

	if err := s.initiatePayout(ctx, claim, policy.OwnerID, amount); err != nil {
		// The claim stays approved; admin-trigger-payout retries the transfer.
		slog.Error("payout initiation failed, claim left approved for remediation",
			"claim_id", claim.ID, "error", err)
	}

	return claim, nil
}

// initiatePayout issues the token transfer and records the processing payout.
// The claim is only marked paid once the issuer confirms settlement via
// ConfirmPayout; marking it paid here would leave the ledger believing funds
// moved when the transfer may still fail.
func (s *ClaimService) initiatePayout(ctx context.Context, claim *models.Claim, recipient string, amount models.TokenAmount) error {
	memo := "payout:" + claim.ID.String()
	transferID, err := s.token.Transfer(ctx, recipient, amount, memo)
	if err != nil {
		return fmt.Errorf("failed to initiate payout transfer: %w", err)
	}

	payout := &models.Payout{
		ID:          uuid.New(),
		ClaimID:     claim.ID,
		PolicyID:    claim.PolicyID,
		Recipient:   recipient,
		Amount:      amount,
		TransferID:  transferID,
		Status:      models.PayoutProcessing,
		InitiatedAt: time.Now(),
	}
	if err := s.payoutRepo.Create(ctx, payout); err != nil {
		return err
	}

	slog.Info("payout initiated",
		"claim_id", claim.ID,
		"transfer_id", transferID,
		"amount", amount.String())
	return nil
}

// processingPayout returns the first payout still awaiting issuer
// confirmation, if any.
func processingPayout(payouts []models.Payout) *models.Payout {
	for i := range payouts {
		if payouts[i].Status == models.PayoutProcessing {
			return &payouts[i]
		}
	}
	return nil
}

// alreadySettled reports whether a payout's terminal status agrees with the
// confirmed outcome, i.e. the confirmation is a redelivery of one the ledger
// already applied.
func alreadySettled(status models.PayoutStatus, succeeded bool) bool {
	if succeeded {
		return status == models.PayoutCompleted
	}
	return status == models.PayoutFailed
}

// ConfirmPayout applies the issuer's settlement confirmation for an outbound
// transfer. Success commits payout-completed, claim-paid and policy-claimed
// in one transaction; failure marks the payout failed and leaves the claim
// approved. A redelivered confirmation succeeds without re-applying anything,
// so an issuer that retries until it sees 200 terminates; a confirmation that
// contradicts the recorded outcome is a conflict.
func (s *ClaimService) ConfirmPayout(ctx context.Context, transferID string, succeeded bool) error {
	payout, err := s.payoutRepo.GetByTransferID(ctx, transferID)
	if err != nil {
		return fmt.Errorf("payout not found: %w", err)
	}

	if payout.Status != models.PayoutProcessing {
		if alreadySettled(payout.Status, succeeded) {
			slog.Info("ignoring replayed payout confirmation",
				"transfer_id", transferID, "status", payout.Status)
			return nil
		}
		return &models.StateConflictError{Entity: "payout", ID: payout.ID.String(), Current: string(payout.Status), Op: "confirm with contradictory outcome"}
	}

	tx, err := s.claimRepo.BeginTransaction()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	if !succeeded {
		if err := s.payoutRepo.MarkFailedTx(tx, payout.ID); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("error committing transaction: %w", err)
		}
		slog.Error("payout transfer failed, claim remains approved",
			"claim_id", payout.ClaimID, "transfer_id", transferID)
		return nil
	}

	if err := s.payoutRepo.MarkCompletedTx(tx, payout.ID); err != nil {
		tx.Rollback()
		return err
	}
	if err := s.claimRepo.MarkPaidTx(tx, payout.ClaimID); err != nil {
		tx.Rollback()
		return err
	}
	if err := s.policyRepo.MarkClaimedTx(tx, payout.PolicyID, payout.Amount); err != nil {
		tx.Rollback()
		return err
	}
	if err := s.statsRepo.RecordClaimPaidTx(tx, payout.Amount); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	slog.Info("claim paid",
		"claim_id", payout.ClaimID,
		"policy_id", payout.PolicyID,
		"amount", payout.Amount.String())

	if s.events != nil {
		s.events.Publish(ctx, "claim.paid", map[string]any{
			"claim_id":    payout.ClaimID,
			"policy_id":   payout.PolicyID,
			"amount":      payout.Amount.String(),
			"transfer_id": transferID,
		})
	}

	return nil
}

// AdminTriggerPayout re-issues the transfer for a claim that is approved but
// unpaid, e.g. after a failed transfer. Exceptional remediation, not the
// normal flow; route permissions restrict it to the admin identity.
func (s *ClaimService) AdminTriggerPayout(ctx context.Context, req *models.AdminTriggerPayoutRequest) error {
	claim, err := s.claimRepo.GetByID(ctx, req.ClaimID)
	if err != nil {
		return fmt.Errorf("claim not found: %w", err)
	}

	if claim.Status != models.ClaimApproved {
		return &models.StateConflictError{Entity: "claim", ID: claim.ID.String(), Current: string(claim.Status), Op: "trigger payout"}
	}

	// A claim stays approved while its transfer awaits issuer confirmation.
	// Issuing another transfer in that window could move the funds twice.
	payouts, err := s.payoutRepo.GetByClaimID(ctx, claim.ID)
	if err != nil {
		return fmt.Errorf("failed to check existing payouts: %w", err)
	}
	if inFlight := processingPayout(payouts); inFlight != nil {
		return &models.StateConflictError{Entity: "payout", ID: inFlight.ID.String(), Current: string(inFlight.Status), Op: "trigger another payout"}
	}

	recipient := req.Recipient
	if recipient == "" {
		recipient = claim.Claimant
	}
	amount := req.Amount
	if amount.IsZero() {
		amount = claim.ClaimAmount
	}
	if amount.Cmp(claim.ClaimAmount) > 0 {
		return &models.ValidationError{Field: "amount", Reason: "exceeds approved claim amount"}
	}

	return s.initiatePayout(ctx, claim, recipient, amount)
}

func (s *ClaimService) GetClaim(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	claim, err := s.claimRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("claim not found: %w", err)
	}
	return claim, nil
}

func (s *ClaimService) GetClaimsByPolicy(ctx context.Context, policyID uuid.UUID) ([]models.Claim, error) {
	claims, err := s.claimRepo.GetByPolicyID(ctx, policyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get claims: %w", err)
	}
	return claims, nil
}

func (s *ClaimService) GetPayoutsByClaim(ctx context.Context, claimID uuid.UUID) ([]models.Payout, error) {
	payouts, err := s.payoutRepo.GetByClaimID(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payouts: %w", err)
	}
	return payouts, nil
}
