package resolution

import (
	"testing"
	"time"

	"utmcore/models"
)

func testLimits() Limits {
	return Limits{
		MinHorizontalSeparationM: 50,
		MinVerticalSeparationM:   15,
		MinAltitudeM:             0,
		MaxAltitudeM:             120,
		Lookahead:                20 * time.Second,
		Cooldown:                 5 * time.Second,
	}
}

func noActive(string, models.CommandKind) bool { return false }

func TestResolveVerticalWhenAltitudesAlreadyDiffer(t *testing.T) {
	now := time.Now()
	drones := map[string]*models.DroneState{
		"drone-a": {DroneID: "drone-a", Lat: 33.6846, Lon: -117.8265, Alt: 50, Priority: 2, Status: models.DroneStatusActive, LastUpdate: now},
		"drone-b": {DroneID: "drone-b", Lat: 33.6846, Lon: -117.8247, Alt: 58, Priority: 1, Status: models.DroneStatusActive, LastUpdate: now},
	}
	conflicts := []models.Conflict{{DroneA: "drone-a", DroneB: "drone-b"}}

	e := New(testLimits())
	decisions := e.Resolve(conflicts, drones, nil, noActive)
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %+v", decisions)
	}
	d := decisions[0]
	if d.DroneID != "drone-b" {
		t.Fatalf("expected lower-priority drone-b to yield, got %s", d.DroneID)
	}
	if d.Kind != models.CommandAltitudeChange {
		t.Fatalf("expected altitude_change strategy, got %s", d.Kind)
	}
}

func TestResolveLateralWhenAltitudesMatch(t *testing.T) {
	now := time.Now()
	drones := map[string]*models.DroneState{
		"drone-a": {DroneID: "drone-a", Lat: 33.6846, Lon: -117.8265, Alt: 50, VelE: 10, HeadingDeg: 90, Priority: 2, Status: models.DroneStatusActive, LastUpdate: now},
		"drone-b": {DroneID: "drone-b", Lat: 33.6846, Lon: -117.8247, Alt: 50, VelE: -10, HeadingDeg: 270, Priority: 1, Status: models.DroneStatusActive, LastUpdate: now},
	}
	conflicts := []models.Conflict{{DroneA: "drone-a", DroneB: "drone-b"}}

	e := New(testLimits())
	decisions := e.Resolve(conflicts, drones, nil, noActive)
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %+v", decisions)
	}
	d := decisions[0]
	if d.DroneID != "drone-b" {
		t.Fatalf("expected drone-b to yield, got %s", d.DroneID)
	}
	if d.Kind != models.CommandReroute {
		t.Fatalf("expected reroute strategy, got %s", d.Kind)
	}
	if len(d.Waypoints) != 3 {
		t.Fatalf("expected 3 synthesised waypoints, got %d", len(d.Waypoints))
	}
}

func TestResolveHoldWhenLateralBlockedByGeofence(t *testing.T) {
	now := time.Now()
	drones := map[string]*models.DroneState{
		"drone-a": {DroneID: "drone-a", Lat: 33.6846, Lon: -117.8265, Alt: 50, VelE: 10, HeadingDeg: 90, Priority: 2, Status: models.DroneStatusActive, LastUpdate: now},
		"drone-b": {DroneID: "drone-b", Lat: 33.6846, Lon: -117.8247, Alt: 50, VelE: -10, HeadingDeg: 270, Priority: 1, Status: models.DroneStatusActive, LastUpdate: now},
	}
	conflicts := []models.Conflict{{DroneA: "drone-a", DroneB: "drone-b"}}

	// A no-fly geofence blanketing the whole area and altitude band, so
	// both the vertical climb and the lateral offset are vetoed.
	fence := &models.Geofence{
		ID: "fence-1", Type: models.GeofenceNoFly, Active: true,
		LowerAltitudeM: 0, UpperAltitudeM: 200,
		Vertices: []models.Waypoint{
			{Lat: 33.68, Lon: -117.83}, {Lat: 33.68, Lon: -117.82},
			{Lat: 33.69, Lon: -117.82}, {Lat: 33.69, Lon: -117.83},
		},
	}

	e := New(testLimits())
	decisions := e.Resolve(conflicts, drones, []*models.Geofence{fence}, noActive)
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %+v", decisions)
	}
	if decisions[0].Kind != models.CommandHold {
		t.Fatalf("expected hold fail-safe, got %s", decisions[0].Kind)
	}
}

func TestResolveSuppressesDuplicateWithinCooldown(t *testing.T) {
	now := time.Now()
	drones := map[string]*models.DroneState{
		"drone-a": {DroneID: "drone-a", Lat: 33.6846, Lon: -117.8265, Alt: 50, VelE: 10, HeadingDeg: 90, Priority: 2, Status: models.DroneStatusActive, LastUpdate: now},
		"drone-b": {DroneID: "drone-b", Lat: 33.6846, Lon: -117.8247, Alt: 50, VelE: -10, HeadingDeg: 270, Priority: 1, Status: models.DroneStatusActive, LastUpdate: now},
	}
	conflicts := []models.Conflict{{DroneA: "drone-a", DroneB: "drone-b"}}

	alreadyActive := func(droneID string, kind models.CommandKind) bool {
		return droneID == "drone-b" && kind == models.CommandReroute
	}

	e := New(testLimits())
	decisions := e.Resolve(conflicts, drones, nil, alreadyActive)
	if len(decisions) != 0 {
		t.Fatalf("expected duplicate suppression, got %+v", decisions)
	}
}

func TestResolveSkipsWhenOtherAlreadyYielding(t *testing.T) {
	now := time.Now()
	drones := map[string]*models.DroneState{
		"drone-a": {DroneID: "drone-a", Lat: 33.6846, Lon: -117.8265, Alt: 50, Priority: 2, Status: models.DroneStatusHolding, LastUpdate: now},
		"drone-b": {DroneID: "drone-b", Lat: 33.6846, Lon: -117.8247, Alt: 58, Priority: 1, Status: models.DroneStatusActive, LastUpdate: now},
	}
	conflicts := []models.Conflict{{DroneA: "drone-a", DroneB: "drone-b"}}

	e := New(testLimits())
	decisions := e.Resolve(conflicts, drones, nil, noActive)
	if len(decisions) != 0 {
		t.Fatalf("expected no cascading reroute when other is already holding, got %+v", decisions)
	}
}
