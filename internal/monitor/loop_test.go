package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agriguard/internal/models"
	"agriguard/internal/weather"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// FAKES
// ============================================================================

type fakeStations struct {
	stations []models.Station
}

func (f *fakeStations) GetEnabled(ctx context.Context) ([]models.Station, error) {
	return f.stations, nil
}

type fakePolicies struct {
	byStation map[string][]models.Policy
}

func (f *fakePolicies) GetActiveByStation(ctx context.Context, stationID string) ([]models.Policy, error) {
	return f.byStation[stationID], nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
}

type fetchResult struct {
	reading *weather.Reading
	raw     []byte
	err     error
}

func (f *fakeFetcher) FetchLatest(ctx context.Context, lat, lon float64) (*weather.Reading, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.results) {
		return nil, nil, errors.New("unexpected fetch call")
	}
	r := f.results[f.calls]
	f.calls++
	return r.reading, r.raw, r.err
}

type fakeAnchors struct {
	mu     sync.Mutex
	fail   bool
	writes int
}

func (f *fakeAnchors) WriteAndAnchor(ctx context.Context, raw []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", &models.IntegrityError{Op: "anchor write", Err: errors.New("storage down")}
	}
	f.writes++
	return "sha256:deadbeef", nil
}

type fakeSubmitter struct {
	mu          sync.Mutex
	conflict    bool
	submissions []*models.SubmitObservationRequest
}

func (f *fakeSubmitter) SubmitObservation(ctx context.Context, submitter string, req *models.SubmitObservationRequest) (*models.WeatherObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflict {
		return nil, &models.StateConflictError{Entity: "observation", Op: "submit"}
	}
	f.submissions = append(f.submissions, req)
	return &models.WeatherObservation{
		ID:          uuid.New(),
		StationID:   req.StationID,
		MeasuredAt:  req.MeasuredAt,
		Temperature: req.Temperature,
		Rainfall:    req.Rainfall,
		SubmittedBy: submitter,
	}, nil
}

type fakeObsFinder struct {
	obs *models.WeatherObservation
	err error
}

func (f *fakeObsFinder) GetByStationAndTime(ctx context.Context, stationID string, measuredAt int64) (*models.WeatherObservation, error) {
	return f.obs, f.err
}

type fakeClaims struct {
	mu       sync.Mutex
	conflict bool
	filed    []*models.FileClaimRequest
	filers   []string
}

func (f *fakeClaims) FileClaim(ctx context.Context, filer string, req *models.FileClaimRequest) (*models.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflict {
		return nil, &models.StateConflictError{Entity: "claim", Op: "file again"}
	}
	f.filed = append(f.filed, req)
	f.filers = append(f.filers, filer)
	return &models.Claim{ID: uuid.New(), PolicyID: req.PolicyID}, nil
}

type fakeExpirer struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeExpirer) ExpireElapsed(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 0, nil
}

// ============================================================================
// TEST HELPERS
// ============================================================================

func testStation() models.Station {
	return models.Station{ID: "station-001", Latitude: 21.03, Longitude: 105.85, Enabled: true}
}

func testReading(measuredAt int64, temp, rain float64) fetchResult {
	return fetchResult{
		reading: &weather.Reading{Timestamp: measuredAt, Temperature: temp, Rainfall: rain},
		raw:     []byte(`{"raw":"payload"}`),
	}
}

func breachablePolicy(stationID string, start, end int64) models.Policy {
	return models.Policy{
		ID:             uuid.New(),
		OwnerID:        "alice.field",
		StationID:      stationID,
		CoverageAmount: models.NewTokenAmount(100_000_000),
		CoverageStart:  start,
		CoverageEnd:    end,
		MinTemperature: 5.0,
		MaxTemperature: 40.0,
		MinRainfall:    10.0,
		MaxRainfall:    200.0,
		Status:         models.PolicyActive,
	}
}

type loopFixture struct {
	loop      *Loop
	fetcher   *fakeFetcher
	anchors   *fakeAnchors
	submitter *fakeSubmitter
	finder    *fakeObsFinder
	claims    *fakeClaims
	expirer   *fakeExpirer
	clock     *clockwork.FakeClock
}

func newLoopFixture(policies map[string][]models.Policy, results ...fetchResult) *loopFixture {
	f := &loopFixture{
		fetcher:   &fakeFetcher{results: results},
		anchors:   &fakeAnchors{},
		submitter: &fakeSubmitter{},
		finder:    &fakeObsFinder{},
		claims:    &fakeClaims{},
		expirer:   &fakeExpirer{},
		clock:     clockwork.NewFakeClock(),
	}
	f.loop = NewLoop(Deps{
		Stations:     &fakeStations{stations: []models.Station{testStation()}},
		Policies:     &fakePolicies{byStation: policies},
		Observations: f.finder,
		Fetcher:      f.fetcher,
		Anchors:      f.anchors,
		Submitter:    f.submitter,
		Claims:       f.claims,
		Expirer:      f.expirer,
		Clock:        f.clock,
	}, "oracle.test", time.Hour, 30*time.Second)
	return f
}

// ============================================================================
// CYCLE BEHAVIOR
// ============================================================================

func TestRunCycle_BreachFilesClaim(t *testing.T) {
	measuredAt := int64(1_700_000_000)
	policy := breachablePolicy("station-001", measuredAt-1000, measuredAt+1000)
	f := newLoopFixture(
		map[string][]models.Policy{"station-001": {policy}},
		testReading(measuredAt, 45.0, 100.0),
	)

	f.loop.RunCycle(context.Background())

	require.Len(t, f.submitter.submissions, 1)
	assert.Equal(t, "sha256:deadbeef", f.submitter.submissions[0].AnchorDigest)
	require.Len(t, f.claims.filed, 1)
	assert.Equal(t, policy.ID, f.claims.filed[0].PolicyID)
	assert.Equal(t, "oracle.test", f.claims.filers[0])
	assert.Equal(t, 1, f.expirer.calls)
}

func TestRunCycle_NoBreachFilesNothing(t *testing.T) {
	measuredAt := int64(1_700_000_000)
	policy := breachablePolicy("station-001", measuredAt-1000, measuredAt+1000)
	f := newLoopFixture(
		map[string][]models.Policy{"station-001": {policy}},
		testReading(measuredAt, 25.0, 100.0),
	)

	f.loop.RunCycle(context.Background())

	require.Len(t, f.submitter.submissions, 1)
	assert.Empty(t, f.claims.filed)
}

func TestRunCycle_OutOfWindowPolicySkipped(t *testing.T) {
	measuredAt := int64(1_700_000_000)
	// Coverage window ended before the reading was taken.
	policy := breachablePolicy("station-001", measuredAt-2000, measuredAt-1000)
	f := newLoopFixture(
		map[string][]models.Policy{"station-001": {policy}},
		testReading(measuredAt, 45.0, 100.0),
	)

	f.loop.RunCycle(context.Background())

	assert.Empty(t, f.claims.filed)
}

func TestRunCycle_TwoPoliciesOneBreach(t *testing.T) {
	measuredAt := int64(1_700_000_000)
	breached := breachablePolicy("station-001", measuredAt-1000, measuredAt+1000)
	tolerant := breachablePolicy("station-001", measuredAt-1000, measuredAt+1000)
	tolerant.MaxTemperature = 60.0

	f := newLoopFixture(
		map[string][]models.Policy{"station-001": {breached, tolerant}},
		testReading(measuredAt, 45.0, 100.0),
	)

	f.loop.RunCycle(context.Background())

	require.Len(t, f.claims.filed, 1)
	assert.Equal(t, breached.ID, f.claims.filed[0].PolicyID)
}

func TestRunCycle_AnchorFailureAbortsBeforeSubmission(t *testing.T) {
	measuredAt := int64(1_700_000_000)
	policy := breachablePolicy("station-001", measuredAt-1000, measuredAt+1000)
	f := newLoopFixture(
		map[string][]models.Policy{"station-001": {policy}},
		testReading(measuredAt, 45.0, 100.0),
	)
	f.anchors.fail = true

	f.loop.RunCycle(context.Background())

	assert.Empty(t, f.submitter.submissions, "unanchored readings must never reach the ledger")
	assert.Empty(t, f.claims.filed)
}

func TestRunCycle_DuplicateObservationRecoversAndEvaluates(t *testing.T) {
	// A previous cycle recorded the observation, then crashed before
	// evaluating. The re-run must pick up the stored row and still file.
	measuredAt := int64(1_700_000_000)
	policy := breachablePolicy("station-001", measuredAt-1000, measuredAt+1000)
	f := newLoopFixture(
		map[string][]models.Policy{"station-001": {policy}},
		testReading(measuredAt, 45.0, 100.0),
	)
	f.submitter.conflict = true
	f.finder.obs = &models.WeatherObservation{
		ID:          uuid.New(),
		StationID:   "station-001",
		MeasuredAt:  measuredAt,
		Temperature: 45.0,
		Rainfall:    100.0,
	}

	f.loop.RunCycle(context.Background())

	require.Len(t, f.claims.filed, 1)
	assert.Equal(t, f.finder.obs.ID, f.claims.filed[0].ObservationID)
}

func TestRunCycle_AlreadyFiledClaimIsIdempotent(t *testing.T) {
	measuredAt := int64(1_700_000_000)
	policy := breachablePolicy("station-001", measuredAt-1000, measuredAt+1000)
	f := newLoopFixture(
		map[string][]models.Policy{"station-001": {policy}},
		testReading(measuredAt, 45.0, 100.0),
	)
	f.claims.conflict = true

	// Must not panic or error the cycle; the conflict is an expected replay.
	f.loop.RunCycle(context.Background())

	assert.Len(t, f.submitter.submissions, 1)
}

// ============================================================================
// FETCH RETRY
// ============================================================================

func TestRunCycle_TransientFetchRetriesThenSucceeds(t *testing.T) {
	measuredAt := int64(1_700_000_000)
	policy := breachablePolicy("station-001", measuredAt-1000, measuredAt+1000)
	transient := fetchResult{err: &models.TransientError{Op: "weather fetch", Err: errors.New("503")}}
	f := newLoopFixture(
		map[string][]models.Policy{"station-001": {policy}},
		transient,
		transient,
		testReading(measuredAt, 45.0, 100.0),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.loop.RunCycle(context.Background())
	}()

	// First retry waits 2s, second 4s.
	f.clock.BlockUntil(1)
	f.clock.Advance(2 * time.Second)
	f.clock.BlockUntil(1)
	f.clock.Advance(4 * time.Second)
	<-done

	assert.Equal(t, 3, f.fetcher.calls)
	require.Len(t, f.claims.filed, 1)
}

func TestRunCycle_FetchExhaustionSkipsCycle(t *testing.T) {
	measuredAt := int64(1_700_000_000)
	policy := breachablePolicy("station-001", measuredAt-1000, measuredAt+1000)
	transient := fetchResult{err: &models.TransientError{Op: "weather fetch", Err: errors.New("503")}}
	f := newLoopFixture(
		map[string][]models.Policy{"station-001": {policy}},
		transient, transient, transient,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.loop.RunCycle(context.Background())
	}()

	f.clock.BlockUntil(1)
	f.clock.Advance(2 * time.Second)
	f.clock.BlockUntil(1)
	f.clock.Advance(4 * time.Second)
	<-done

	assert.Equal(t, 3, f.fetcher.calls)
	assert.Empty(t, f.anchors.writes)
	assert.Empty(t, f.submitter.submissions)
	// The cycle still runs expiry even when every station skips.
	assert.Equal(t, 1, f.expirer.calls)
}

func TestRunCycle_PermanentFetchErrorDoesNotRetry(t *testing.T) {
	measuredAt := int64(1_700_000_000)
	policy := breachablePolicy("station-001", measuredAt-1000, measuredAt+1000)
	f := newLoopFixture(
		map[string][]models.Policy{"station-001": {policy}},
		fetchResult{err: errors.New("api key rejected")},
	)

	f.loop.RunCycle(context.Background())

	assert.Equal(t, 1, f.fetcher.calls)
	assert.Empty(t, f.submitter.submissions)
}

// ============================================================================
// SERIALIZATION
// ============================================================================

func TestTryAcquire_SecondCycleForStationSkips(t *testing.T) {
	f := newLoopFixture(nil)
	ctx := context.Background()

	require.True(t, f.loop.tryAcquire(ctx, "station-001"))
	assert.False(t, f.loop.tryAcquire(ctx, "station-001"))

	f.loop.release(ctx, "station-001")
	assert.True(t, f.loop.tryAcquire(ctx, "station-001"))
}
