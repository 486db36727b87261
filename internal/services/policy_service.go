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

// Coverage and window bounds enforced at policy creation.
const (
	MinCoverageUnits = 1_000_000
	MaxCoverageUnits = 10_000_000_000

	MinCoverageDuration = 30 * 24 * time.Hour
	MaxCoverageDuration = 365 * 24 * time.Hour
)

// LedgerEventPublisher pushes ledger events to the off-chain indexing queue.
// A nil publisher disables event emission without touching business logic.
type LedgerEventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

type PolicyService struct {
	policyRepo  *repository.PolicyRepository
	statsRepo   *repository.StatsRepository
	stationRepo *repository.StationRepository
	events      LedgerEventPublisher
}

func NewPolicyService(
	policyRepo *repository.PolicyRepository,
	statsRepo *repository.StatsRepository,
	stationRepo *repository.StationRepository,
	events LedgerEventPublisher,
) *PolicyService {
	return &PolicyService{
		policyRepo:  policyRepo,
		statsRepo:   statsRepo,
		stationRepo: stationRepo,
		events:      events,
	}
}

// ValidateCreatePolicy checks every creation constraint without touching
// storage. Exported so it can be exercised directly.
func ValidateCreatePolicy(req *models.CreatePolicyRequest, now time.Time) error {
	if !req.CropType.Valid() {
		return &models.ValidationError{Field: "crop_type", Reason: "unknown crop " + string(req.CropType)}
	}
	if err := req.Location.Validate(); err != nil {
		return err
	}
	if req.StationID == "" {
		return &models.ValidationError{Field: "station_id", Reason: "required"}
	}

	minCov := models.NewTokenAmount(MinCoverageUnits)
	maxCov := models.NewTokenAmount(MaxCoverageUnits)
	if req.CoverageAmount.Cmp(minCov) < 0 || req.CoverageAmount.Cmp(maxCov) > 0 {
		return &models.ValidationError{
			Field:  "coverage_amount",
			Reason: fmt.Sprintf("must be within [%s, %s]", minCov, maxCov),
		}
	}

	if req.CoverageStart <= now.Unix() {
		return &models.ValidationError{Field: "coverage_start", Reason: "must be strictly in the future"}
	}
	length := time.Duration(req.CoverageEnd-req.CoverageStart) * time.Second
	if length < MinCoverageDuration || length > MaxCoverageDuration {
		return &models.ValidationError{
			Field:  "coverage_end",
			Reason: fmt.Sprintf("window length must be within [%s, %s]", MinCoverageDuration, MaxCoverageDuration),
		}
	}

	if req.MinTemperature >= req.MaxTemperature {
		return &models.ValidationError{Field: "min_temperature", Reason: "must be below max_temperature"}
	}
	if req.MinRainfall >= req.MaxRainfall {
		return &models.ValidationError{Field: "min_rainfall", Reason: "must be below max_rainfall"}
	}

	return nil
}

// CreatePolicy validates the request, prices the premium and records the
// policy in pending status. The stats row moves in the same transaction.
func (s *PolicyService) CreatePolicy(ctx context.Context, ownerID string, req *models.CreatePolicyRequest) (*models.Policy, error) {
	if ownerID == "" {
		return nil, &models.AuthorizationError{Caller: "anonymous", Action: "create policy"}
	}
	if err := ValidateCreatePolicy(req, time.Now()); err != nil {
		return nil, err
	}

	if _, err := s.stationRepo.GetByID(ctx, req.StationID); err != nil {
		return nil, &models.ValidationError{Field: "station_id", Reason: "unknown station " + req.StationID}
	}

	premium, err := ComputePremium(req.CoverageAmount, req.CropType, req.Location.Latitude())
	if err != nil {
		return nil, err
	}

	policy := &models.Policy{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		CropType:        req.CropType,
		Location:        req.Location,
		StationID:       req.StationID,
		CoverageAmount:  req.CoverageAmount,
		PremiumAmount:   premium,
		PremiumPaid:     models.NewTokenAmount(0),
		CoverageStart:   req.CoverageStart,
		CoverageEnd:     req.CoverageEnd,
		MinTemperature:  req.MinTemperature,
		MaxTemperature:  req.MaxTemperature,
		MinRainfall:     req.MinRainfall,
		MaxRainfall:     req.MaxRainfall,
		Status:          models.PolicyPending,
		TotalClaimsPaid: models.NewTokenAmount(0),
	}

	tx, err := s.policyRepo.BeginTransaction()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	if err := s.policyRepo.CreateTx(tx, policy); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := s.statsRepo.IncrementPoliciesTx(tx); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing transaction: %w", err)
	}

	slog.Info("policy created",
		"policy_id", policy.ID,
		"owner_id", ownerID,
		"station_id", policy.StationID,
		"premium", premium.String())

	if s.events != nil {
		s.events.Publish(ctx, "policy.created", policy)
	}

	return policy, nil
}

func (s *PolicyService) GetPolicy(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	policy, err := s.policyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("policy not found: %w", err)
	}
	return policy, nil
}

func (s *PolicyService) ListPolicies(ctx context.Context, filters map[string]interface{}) ([]models.Policy, error) {
	policies, err := s.policyRepo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	return policies, nil
}

func (s *PolicyService) Stats(ctx context.Context) (*models.LedgerStats, error) {
	stats, err := s.statsRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger stats: %w", err)
	}
	return stats, nil
}

// ExpireElapsed terminates active policies whose coverage window ended
// without a trigger. Called by the automation loop every cycle.
func (s *PolicyService) ExpireElapsed(ctx context.Context, now time.Time) (int64, error) {
	expired, err := s.policyRepo.ExpireElapsed(ctx, now.Unix())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		slog.Info("expired elapsed policies", "count", expired)
		if s.events != nil {
			s.events.Publish(ctx, "policy.expired", map[string]any{"count": expired, "at": now.Unix()})
		}
	}
	return expired, nil
}
