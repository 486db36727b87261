package services

import (
	"context"
	"fmt"
	"log/slog"

	"agriguard/internal/models"
	"agriguard/internal/repository"

	"github.com/google/uuid"
)

// OracleService owns the oracle authorization registry and the observation
// submission path it guards.
type OracleService struct {
	oracleRepo *repository.OracleRepository
	obsRepo    *repository.ObservationRepository
	adminID    string
	events     LedgerEventPublisher
}

func NewOracleService(
	oracleRepo *repository.OracleRepository,
	obsRepo *repository.ObservationRepository,
	adminID string,
	events LedgerEventPublisher,
) *OracleService {
	return &OracleService{
		oracleRepo: oracleRepo,
		obsRepo:    obsRepo,
		adminID:    adminID,
		events:     events,
	}
}

// Authorize grants an account permission to submit observations. Admin only;
// a rejection is terminal, never retried.
func (s *OracleService) Authorize(ctx context.Context, caller, accountID string) error {
	if caller != s.adminID {
		slog.Error("unauthorized oracle registry mutation", "caller", caller, "target", accountID)
		return &models.AuthorizationError{Caller: caller, Action: "authorize oracle"}
	}
	if err := s.oracleRepo.SetAuthorization(ctx, accountID, true); err != nil {
		return err
	}
	slog.Info("oracle authorized", "account_id", accountID)
	return nil
}

// Revoke removes an account's submission permission. Admin only.
func (s *OracleService) Revoke(ctx context.Context, caller, accountID string) error {
	if caller != s.adminID {
		slog.Error("unauthorized oracle registry mutation", "caller", caller, "target", accountID)
		return &models.AuthorizationError{Caller: caller, Action: "revoke oracle"}
	}
	if err := s.oracleRepo.SetAuthorization(ctx, accountID, false); err != nil {
		return err
	}
	slog.Info("oracle revoked", "account_id", accountID)
	return nil
}

// IsAuthorized is a pure lookup with no side effects.
func (s *OracleService) IsAuthorized(ctx context.Context, accountID string) (bool, error) {
	return s.oracleRepo.IsAuthorized(ctx, accountID)
}

// SubmitObservation records a reading on the ledger. The submitter must be an
// authorized oracle and the reading must already carry its durable anchor
// digest; an unanchored observation is rejected outright.
func (s *OracleService) SubmitObservation(ctx context.Context, submitter string, req *models.SubmitObservationRequest) (*models.WeatherObservation, error) {
	authorized, err := s.oracleRepo.IsAuthorized(ctx, submitter)
	if err != nil {
		return nil, fmt.Errorf("failed to check oracle authorization: %w", err)
	}
	if !authorized {
		slog.Error("observation submission from unauthorized account", "account_id", submitter)
		return nil, &models.AuthorizationError{Caller: submitter, Action: "submit observation"}
	}

	if req.StationID == "" {
		return nil, &models.ValidationError{Field: "station_id", Reason: "required"}
	}
	if req.MeasuredAt <= 0 {
		return nil, &models.ValidationError{Field: "measured_at", Reason: "must be a positive unix timestamp"}
	}
	if req.AnchorDigest == "" {
		return nil, &models.ValidationError{Field: "anchor_digest", Reason: "observation must be anchored before submission"}
	}

	obs := &models.WeatherObservation{
		ID:           uuid.New(),
		StationID:    req.StationID,
		MeasuredAt:   req.MeasuredAt,
		Temperature:  req.Temperature,
		Rainfall:     req.Rainfall,
		Humidity:     req.Humidity,
		WindSpeed:    req.WindSpeed,
		AnchorDigest: req.AnchorDigest,
		SubmittedBy:  submitter,
	}

	if err := s.obsRepo.Create(ctx, obs); err != nil {
		return nil, err
	}

	slog.Info("observation recorded",
		"observation_id", obs.ID,
		"station_id", obs.StationID,
		"measured_at", obs.MeasuredAt,
		"digest", obs.AnchorDigest)

	if s.events != nil {
		s.events.Publish(ctx, "observation.recorded", obs)
	}

	return obs, nil
}

func (s *OracleService) GetObservation(ctx context.Context, id uuid.UUID) (*models.WeatherObservation, error) {
	obs, err := s.obsRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("observation not found: %w", err)
	}
	return obs, nil
}

func (s *OracleService) GetObservationsByStation(ctx context.Context, stationID string, limit int) ([]models.WeatherObservation, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	observations, err := s.obsRepo.GetByStation(ctx, stationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get observations: %w", err)
	}
	return observations, nil
}
