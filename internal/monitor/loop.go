package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"agriguard/internal/models"
	"agriguard/internal/services"
	"agriguard/internal/weather"

	"github.com/jonboulle/clockwork"
)

// StationSource lists the stations covered each cycle.
type StationSource interface {
	GetEnabled(ctx context.Context) ([]models.Station, error)
}

// PolicySource lists the active policies bound to a station.
type PolicySource interface {
	GetActiveByStation(ctx context.Context, stationID string) ([]models.Policy, error)
}

// Anchorer writes a raw reading to durable content-addressed storage.
type Anchorer interface {
	WriteAndAnchor(ctx context.Context, raw []byte) (string, error)
}

// ObservationSubmitter records an anchored reading on the ledger under the
// loop's oracle identity.
type ObservationSubmitter interface {
	SubmitObservation(ctx context.Context, submitter string, req *models.SubmitObservationRequest) (*models.WeatherObservation, error)
}

// ObservationFinder resolves a dedupe key to the already-recorded row after a
// crashed cycle re-runs.
type ObservationFinder interface {
	GetByStationAndTime(ctx context.Context, stationID string, measuredAt int64) (*models.WeatherObservation, error)
}

// ClaimFiler files a claim for a breached policy on the owner's behalf. The
// loop's authority stops there: it can trigger evaluation, never move funds.
type ClaimFiler interface {
	FileClaim(ctx context.Context, filer string, req *models.FileClaimRequest) (*models.Claim, error)
}

// PolicyExpirer terminates active policies whose window has elapsed.
type PolicyExpirer interface {
	ExpireElapsed(ctx context.Context, now time.Time) (int64, error)
}

// CycleLocker serializes cycles per station across monitor instances.
type CycleLocker interface {
	AcquireCycleLock(ctx context.Context, stationID string, ttl time.Duration) (bool, error)
	ReleaseCycleLock(ctx context.Context, stationID string) error
}

// Deps wires the loop's collaborators.
type Deps struct {
	Stations     StationSource
	Policies     PolicySource
	Observations ObservationFinder
	Fetcher      weather.Fetcher
	Anchors      Anchorer
	Submitter    ObservationSubmitter
	Claims       ClaimFiler
	Expirer      PolicyExpirer
	Locker       CycleLocker
	Clock        clockwork.Clock
	Metrics      *Metrics
}

const (
	maxFetchAttempts  = 3
	fetchRetryBackoff = 2 * time.Second
)

// Loop drives one fetch-anchor-submit-evaluate cycle per station on a fixed
// cadence. Stations run in parallel (they share no mutable state); cycles
// within a station are serialized, and a cycle that fails mid-way simply logs
// and waits for the next cadence tick.
type Loop struct {
	deps          Deps
	oracleID      string
	cadence       time.Duration
	anchorTimeout time.Duration

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewLoop(deps Deps, oracleID string, cadence, anchorTimeout time.Duration) *Loop {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Loop{
		deps:          deps,
		oracleID:      oracleID,
		cadence:       cadence,
		anchorTimeout: anchorTimeout,
		inFlight:      make(map[string]bool),
	}
}

// Run executes cycles until the context is cancelled. The first cycle starts
// immediately, then one per cadence tick.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("automation loop started", "cadence", l.cadence, "oracle_id", l.oracleID)
	if l.deps.Metrics != nil {
		l.deps.Metrics.LoopRunning.Set(1)
		defer l.deps.Metrics.LoopRunning.Set(0)
	}

	ticker := l.deps.Clock.NewTicker(l.cadence)
	defer ticker.Stop()

	l.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("automation loop stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			l.RunCycle(ctx)
		}
	}
}

// RunCycle covers every enabled station once, then expires elapsed policies.
func (l *Loop) RunCycle(ctx context.Context) {
	if l.deps.Metrics != nil {
		l.deps.Metrics.CyclesRun.Inc()
	}

	stations, err := l.deps.Stations.GetEnabled(ctx)
	if err != nil {
		slog.Error("failed to list stations, skipping cycle", "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, station := range stations {
		wg.Add(1)
		go func(station models.Station) {
			defer wg.Done()
			l.runStation(ctx, station)
		}(station)
	}
	wg.Wait()

	expired, err := l.deps.Expirer.ExpireElapsed(ctx, l.deps.Clock.Now())
	if err != nil {
		slog.Error("failed to expire elapsed policies", "error", err)
		return
	}
	if expired > 0 && l.deps.Metrics != nil {
		l.deps.Metrics.PoliciesExpired.Add(float64(expired))
	}
}

// runStation performs one cycle for one station. Steps, in order: fetch the
// reading, anchor it durably, submit it to the ledger, evaluate the station's
// active policies. A durable write without a ledger submission is recoverable
// on the next cycle; the reverse never happens.
func (l *Loop) runStation(ctx context.Context, station models.Station) {
	if !l.tryAcquire(ctx, station.ID) {
		slog.Warn("previous cycle still running for station, skipping", "station_id", station.ID)
		if l.deps.Metrics != nil {
			l.deps.Metrics.StationsSkipped.Inc()
		}
		return
	}
	defer l.release(ctx, station.ID)

	start := time.Now()
	defer func() {
		if l.deps.Metrics != nil {
			l.deps.Metrics.CycleDuration.Observe(time.Since(start).Seconds())
		}
	}()

	reading, raw, err := l.fetchWithRetry(ctx, station)
	if err != nil {
		slog.Error("weather fetch exhausted retries, skipping cycle",
			"station_id", station.ID, "error", err)
		if l.deps.Metrics != nil {
			l.deps.Metrics.FetchFailures.Inc()
		}
		return
	}

	anchorCtx, cancel := context.WithTimeout(ctx, l.anchorTimeout)
	digest, err := l.deps.Anchors.WriteAndAnchor(anchorCtx, raw)
	cancel()
	if err != nil {
		// No anchor means no tamper evidence: the reading must not reach
		// the ledger this cycle.
		slog.Error("anchor write failed, aborting cycle", "station_id", station.ID, "error", err)
		return
	}
	if l.deps.Metrics != nil {
		l.deps.Metrics.ObservationsAnchored.Inc()
	}

	obs, err := l.deps.Submitter.SubmitObservation(ctx, l.oracleID, &models.SubmitObservationRequest{
		StationID:    station.ID,
		MeasuredAt:   reading.Timestamp,
		Temperature:  reading.Temperature,
		Rainfall:     reading.Rainfall,
		Humidity:     reading.Humidity,
		WindSpeed:    reading.WindSpeed,
		AnchorDigest: digest,
	})
	if err != nil {
		var conflict *models.StateConflictError
		if errors.As(err, &conflict) {
			// Already recorded by a cycle that crashed before evaluating.
			// Recover the row and continue so its claims still get filed.
			obs, err = l.deps.Observations.GetByStationAndTime(ctx, station.ID, reading.Timestamp)
			if err != nil {
				slog.Error("failed to recover recorded observation", "station_id", station.ID, "error", err)
				return
			}
		} else {
			slog.Error("observation submission failed, ending cycle", "station_id", station.ID, "error", err)
			return
		}
	} else if l.deps.Metrics != nil {
		l.deps.Metrics.ObservationsSubmitted.Inc()
	}

	l.evaluateStation(ctx, station.ID, obs)
}

func (l *Loop) fetchWithRetry(ctx context.Context, station models.Station) (*weather.Reading, []byte, error) {
	backoff := fetchRetryBackoff
	var lastErr error

	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		reading, raw, err := l.deps.Fetcher.FetchLatest(ctx, station.Latitude, station.Longitude)
		if err == nil {
			return reading, raw, nil
		}
		lastErr = err

		var transient *models.TransientError
		if !errors.As(err, &transient) {
			return nil, nil, err
		}
		if attempt == maxFetchAttempts || ctx.Err() != nil {
			break
		}

		slog.Warn("weather fetch failed, retrying",
			"station_id", station.ID, "attempt", attempt, "backoff", backoff, "error", err)
		l.deps.Clock.Sleep(backoff)
		backoff *= 2
	}

	return nil, nil, lastErr
}

// evaluateStation files a claim for every active policy whose thresholds the
// observation breaches. Claim filing failures are isolated per policy.
func (l *Loop) evaluateStation(ctx context.Context, stationID string, obs *models.WeatherObservation) {
	policies, err := l.deps.Policies.GetActiveByStation(ctx, stationID)
	if err != nil {
		slog.Error("failed to list active policies", "station_id", stationID, "error", err)
		return
	}

	for _, policy := range policies {
		if !policy.InWindow(obs.MeasuredAt) {
			continue
		}
		result := services.EvaluateThresholds(&policy, obs)
		if !result.Breached {
			continue
		}

		claim, err := l.deps.Claims.FileClaim(ctx, l.oracleID, &models.FileClaimRequest{
			PolicyID:      policy.ID,
			Reason:        string(result.Reason),
			ObservationID: obs.ID,
		})
		if err != nil {
			var conflict *models.StateConflictError
			if errors.As(err, &conflict) {
				slog.Info("claim already filed for observation",
					"policy_id", policy.ID, "observation_id", obs.ID)
				continue
			}
			slog.Error("automatic claim filing failed",
				"policy_id", policy.ID, "observation_id", obs.ID, "error", err)
			continue
		}

		slog.Info("automatic claim triggered",
			"claim_id", claim.ID, "policy_id", policy.ID, "reason", result.Reason)
		if l.deps.Metrics != nil {
			l.deps.Metrics.ClaimsTriggered.Inc()
		}
	}
}

func (l *Loop) tryAcquire(ctx context.Context, stationID string) bool {
	l.mu.Lock()
	if l.inFlight[stationID] {
		l.mu.Unlock()
		return false
	}
	l.inFlight[stationID] = true
	l.mu.Unlock()

	if l.deps.Locker == nil {
		return true
	}

	ok, err := l.deps.Locker.AcquireCycleLock(ctx, stationID, l.cadence)
	if err != nil {
		slog.Error("cycle lock error", "station_id", stationID, "error", err)
	}
	if err != nil || !ok {
		l.mu.Lock()
		delete(l.inFlight, stationID)
		l.mu.Unlock()
		return false
	}
	return true
}

func (l *Loop) release(ctx context.Context, stationID string) {
	if l.deps.Locker != nil {
		if err := l.deps.Locker.ReleaseCycleLock(ctx, stationID); err != nil {
			slog.Error("failed to release cycle lock", "station_id", stationID, "error", err)
		}
	}

	l.mu.Lock()
	delete(l.inFlight, stationID)
	l.mu.Unlock()
}
