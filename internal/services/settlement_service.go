package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"agriguard/internal/models"
	"agriguard/internal/repository"

	"github.com/google/uuid"
)

// TransferMessageKind tags the parsed settlement message.
type TransferMessageKind string

const (
	// TransferMessagePremium targets a pending policy's premium.
	TransferMessagePremium TransferMessageKind = "premium"
)

// TransferMessage is the parsed form of the free-text message attached to an
// inbound token transfer.
type TransferMessage struct {
	Kind     TransferMessageKind
	PolicyID uuid.UUID
}

// ErrMalformedMessage reports a transfer message that names no valid target.
// Money attached to such a message is always refunded in full.
var ErrMalformedMessage = errors.New("malformed transfer message")

// ParseTransferMessage parses "premium:<policy-uuid>". The result is either a
// fully-typed message or ErrMalformedMessage; there is no partial parse, so
// the refund-on-failure branch in the callback is a single explicit check.
func ParseTransferMessage(message string) (TransferMessage, error) {
	kind, rest, found := strings.Cut(strings.TrimSpace(message), ":")
	if !found {
		return TransferMessage{}, fmt.Errorf("%w: missing kind separator in %q", ErrMalformedMessage, message)
	}

	switch TransferMessageKind(kind) {
	case TransferMessagePremium:
		policyID, err := uuid.Parse(rest)
		if err != nil {
			return TransferMessage{}, fmt.Errorf("%w: bad policy id %q", ErrMalformedMessage, rest)
		}
		return TransferMessage{Kind: TransferMessagePremium, PolicyID: policyID}, nil
	default:
		return TransferMessage{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedMessage, kind)
	}
}

// SettlementOutcome is the decision for one credit notification: how much to
// refund and whether the policy activates. Refund plus retained premium
// always equals the received amount, so no money is ever silently kept.
type SettlementOutcome struct {
	Refund   models.TokenAmount
	Activate bool
	Reason   string
}

// DecideSettlement applies the all-or-nothing premium rules to a credit
// against one policy. Pure: callers handle persistence.
//
// Replay safety falls out of the pending check: redelivering the same credit
// against an already-active policy refunds everything and mutates nothing.
func DecideSettlement(policy *models.Policy, payer string, amount models.TokenAmount) SettlementOutcome {
	if policy == nil {
		return SettlementOutcome{Refund: amount, Reason: "policy does not exist"}
	}
	if payer != policy.OwnerID {
		return SettlementOutcome{Refund: amount, Reason: "payer is not the policy owner"}
	}
	if policy.Status != models.PolicyPending {
		return SettlementOutcome{Refund: amount, Reason: "policy is not pending"}
	}
	if amount.Cmp(policy.PremiumAmount) < 0 {
		return SettlementOutcome{Refund: amount, Reason: "insufficient premium"}
	}

	return SettlementOutcome{
		Refund:   amount.Sub(policy.PremiumAmount),
		Activate: true,
		Reason:   "premium settled",
	}
}

// isMissingPolicy reports whether a policy lookup error means the policy does
// not exist, as opposed to a storage failure that should be retried.
func isMissingPolicy(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// SettlementService implements the inbound half of the premium settlement
// protocol: the token issuer's credit notification after tokens land in the
// ledger custody account.
type SettlementService struct {
	policyRepo *repository.PolicyRepository
	statsRepo  *repository.StatsRepository
	issuerID   string
	events     LedgerEventPublisher
}

func NewSettlementService(
	policyRepo *repository.PolicyRepository,
	statsRepo *repository.StatsRepository,
	issuerID string,
	events LedgerEventPublisher,
) *SettlementService {
	return &SettlementService{
		policyRepo: policyRepo,
		statsRepo:  statsRepo,
		issuerID:   issuerID,
		events:     events,
	}
}

// OnTokensReceived handles one credit notification and returns the amount to
// refund to the payer. Any ambiguity refunds the full amount: unverified
// caller, unparseable message, unknown policy, wrong payer, non-pending
// policy or insufficient premium. Only an exact-or-over payment against a
// pending policy by its owner activates it.
func (s *SettlementService) OnTokensReceived(ctx context.Context, caller, payer string, amount models.TokenAmount, message string) (models.TokenAmount, error) {
	if amount.IsNegative() {
		return models.NewTokenAmount(0), &models.ValidationError{Field: "amount", Reason: "must not be negative"}
	}

	// Spoofed credit notifications must not move policy state. The caller
	// identity comes from the verified transport, never the body.
	if caller != s.issuerID {
		slog.Error("settlement callback from unrecognized caller", "caller", caller, "payer", payer)
		return amount, &models.AuthorizationError{Caller: caller, Action: "deliver settlement callback"}
	}

	parsed, err := ParseTransferMessage(message)
	if err != nil {
		slog.Error("refunding transfer with unparseable message",
			"payer", payer, "amount", amount.String(), "error", err)
		return amount, nil
	}

	policy, err := s.policyRepo.GetByID(ctx, parsed.PolicyID)
	if err != nil {
		if !isMissingPolicy(err) {
			// Storage failure, not a judgement on the payment: surface the
			// error so the issuer redelivers instead of refunding a
			// legitimate premium.
			return models.NewTokenAmount(0), fmt.Errorf("failed to load policy for settlement: %w", err)
		}
		slog.Warn("refunding transfer for unknown policy",
			"policy_id", parsed.PolicyID, "payer", payer, "amount", amount.String())
		return amount, nil
	}

	outcome := DecideSettlement(policy, payer, amount)
	if !outcome.Activate {
		slog.Info("refunding settlement transfer",
			"policy_id", policy.ID, "payer", payer,
			"amount", amount.String(), "reason", outcome.Reason)
		return outcome.Refund, nil
	}

	if err := s.activate(ctx, policy, amount); err != nil {
		// Lost the race against a concurrent settlement of the same policy:
		// that delivery kept the premium, this one refunds in full.
		var conflict *models.StateConflictError
		if errors.As(err, &conflict) {
			slog.Info("refunding replayed settlement transfer", "policy_id", policy.ID, "payer", payer)
			return amount, nil
		}
		return models.NewTokenAmount(0), err
	}

	slog.Info("policy activated",
		"policy_id", policy.ID,
		"premium_paid", amount.String(),
		"refund", outcome.Refund.String())

	if s.events != nil {
		s.events.Publish(ctx, "policy.activated", map[string]any{
			"policy_id":    policy.ID,
			"premium_paid": amount.String(),
		})
	}

	return outcome.Refund, nil
}

// activate flips the policy and moves the premium statistics in one commit.
func (s *SettlementService) activate(ctx context.Context, policy *models.Policy, amountReceived models.TokenAmount) error {
	tx, err := s.policyRepo.BeginTransaction()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	if err := s.policyRepo.ActivateTx(tx, policy.ID, amountReceived); err != nil {
		tx.Rollback()
		return err
	}
	if err := s.statsRepo.RecordPremiumTx(tx, policy.PremiumAmount); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}
