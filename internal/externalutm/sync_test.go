package externalutm

import (
	"context"
	"sync"
	"testing"
	"time"

	"utmcore/internal/config"
	"utmcore/internal/logging"
	"utmcore/internal/store"
	"utmcore/models"
)

// fakeClient is a hand-rolled Client double; no pack example ships a mocking
// library (gomock/testify/mock), so this follows the teacher's own test
// style of plain hand-written fakes.
type fakeClient struct {
	mu              sync.Mutex
	pushed          []RemoteIDReport
	pushErr         error
	geofences       []ExternalGeofence
	geofencesErr    error
	declarations    []ExternalFlightDeclaration
	declarationsErr error
}

func (f *fakeClient) PushTelemetry(ctx context.Context, reports []RemoteIDReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushed = append(f.pushed, reports...)
	return nil
}

func (f *fakeClient) PullGeofences(ctx context.Context) ([]ExternalGeofence, error) {
	if f.geofencesErr != nil {
		return nil, f.geofencesErr
	}
	return f.geofences, nil
}

func (f *fakeClient) PullFlightDeclarations(ctx context.Context) ([]ExternalFlightDeclaration, error) {
	if f.declarationsErr != nil {
		return nil, f.declarationsErr
	}
	return f.declarations, nil
}

// fakeMapper is an in-memory SyncMapper double keyed the same way the real
// persistence.ExternalSyncRepository is.
type fakeMapper struct {
	mu      sync.Mutex
	byExtID map[string]*models.ExternalSyncMapping
}

func newFakeMapper() *fakeMapper {
	return &fakeMapper{byExtID: make(map[string]*models.ExternalSyncMapping)}
}

func (m *fakeMapper) key(localKind, externalID string) string { return localKind + "/" + externalID }

func (m *fakeMapper) GetByExternalID(ctx context.Context, localKind, externalID string) (*models.ExternalSyncMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byExtID[m.key(localKind, externalID)], nil
}

func (m *fakeMapper) Upsert(ctx context.Context, mapping *models.ExternalSyncMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mapping
	m.byExtID[m.key(mapping.LocalKind, mapping.ExternalID)] = &cp
	return nil
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	limits := config.LimitsConfig{
		MinHorizontalSeparationM: 50,
		MinVerticalSeparationM:   15,
		Lookahead:                20 * time.Second,
		DroneTimeout:             10 * time.Second,
		MaxAltitudeM:             120,
		MaxSpeedMPS:              25,
		MaxTelemetryAge:          10 * time.Second,
		MaxTelemetryFuture:       2 * time.Second,
		CommandCooldown:          5 * time.Second,
		RegistrationRatePerMin:   1000,
	}
	return store.New(nil, logging.New(nil), limits, nil)
}

func testGeofence(extID string) ExternalGeofence {
	return ExternalGeofence{
		ExternalID: extID,
		Geofence: &models.Geofence{
			Name: "atc-zone-" + extID,
			Type: models.GeofenceNoFly,
			Vertices: []models.Waypoint{
				{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}, {Lat: 1, Lon: 0},
			},
			LowerAltitudeM: 0,
			UpperAltitudeM: 120,
			Active:         true,
		},
	}
}

func TestSyncerMirrorsNewGeofenceOnce(t *testing.T) {
	s := testStore(t)
	mapper := newFakeMapper()
	client := &fakeClient{geofences: []ExternalGeofence{testGeofence("ext-1")}}
	sy := NewSyncer(client, s, mapper, logging.New(nil))

	ctx := context.Background()
	sy.mirrorGeofences(ctx)
	if len(s.ActiveGeofences()) != 1 {
		t.Fatalf("expected 1 mirrored geofence, got %d", len(s.ActiveGeofences()))
	}

	// Second pass with the same external geofence must not create a
	// duplicate: the fingerprint matches the stored mapping.
	sy.mirrorGeofences(ctx)
	if len(s.ActiveGeofences()) != 1 {
		t.Fatalf("expected geofence mirror to be idempotent, got %d entries", len(s.ActiveGeofences()))
	}
}

func TestSyncerIngestsFlightDeclarationOnce(t *testing.T) {
	s := testStore(t)
	ctx0 := context.Background()
	droneID, _, err := s.Register(ctx0, "", "owner-1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	mapper := newFakeMapper()
	decl := ExternalFlightDeclaration{
		ExternalID: "ext-decl-1",
		FlightPlan: &models.FlightPlan{
			DroneID: droneID,
			OwnerID: "owner-1",
			Origin:  models.Waypoint{Lat: 0, Lon: 0, Alt: 50},
			Waypoints: []models.Waypoint{
				{Lat: 0, Lon: 0, Alt: 50},
				{Lat: 0.01, Lon: 0.01, Alt: 50},
			},
			Destination: models.Waypoint{Lat: 0.01, Lon: 0.01, Alt: 50},
			StartTime:   time.Now(),
			EndTime:     time.Now().Add(time.Hour),
		},
	}
	client := &fakeClient{declarations: []ExternalFlightDeclaration{decl}}
	sy := NewSyncer(client, s, mapper, logging.New(nil))

	ctx := context.Background()
	sy.ingestFlightDeclarations(ctx)
	plans := s.ListFlightPlans()
	if len(plans) != 1 {
		t.Fatalf("expected 1 ingested flight plan, got %d", len(plans))
	}

	sy.ingestFlightDeclarations(ctx)
	plans = s.ListFlightPlans()
	if len(plans) != 1 {
		t.Fatalf("expected ingestion to be idempotent, got %d plans", len(plans))
	}
}

func TestSyncerSetsDegradedOnPullFailure(t *testing.T) {
	s := testStore(t)
	client := &fakeClient{geofencesErr: context.DeadlineExceeded}
	sy := NewSyncer(client, s, nil, logging.New(nil))

	sy.mirrorGeofences(context.Background())
	if !sy.Degraded() {
		t.Fatalf("expected syncer to report degraded after pull failure")
	}
}

func TestSyncerDegradedIsScopedToSyncSubsystem(t *testing.T) {
	s := testStore(t)
	client := &fakeClient{geofencesErr: context.DeadlineExceeded}
	sy := NewSyncer(client, s, nil, logging.New(nil))

	sy.mirrorGeofences(context.Background())
	if sy.Degraded() == s.Degraded() && s.Degraded() {
		t.Fatalf("sync failure must not mark the main store degraded")
	}
	if s.Degraded() {
		t.Fatalf("main store degraded flag must be untouched by sync failures")
	}
}

func TestSyncerPushesTelemetryForRegisteredDrones(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	id, _, err := s.Register(ctx, "", "owner-1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	client := &fakeClient{}
	sy := NewSyncer(client, s, nil, logging.New(nil))
	sy.pushTelemetry(ctx)

	if len(client.pushed) != 1 || client.pushed[0].DroneID != id {
		t.Fatalf("expected telemetry pushed for drone %s, got %+v", id, client.pushed)
	}
}
