package conflict

import (
	"testing"
	"time"

	"utmcore/models"
)

func testLimits() Limits {
	return Limits{
		MinHorizontalSeparationM: 50,
		MinVerticalSeparationM:   15,
		Lookahead:                20 * time.Second,
		SampleInterval:           1 * time.Second,
	}
}

func headOnDrones(now time.Time) []*models.DroneState {
	// A heading east at 10 m/s, B heading west at 10 m/s, converging.
	return []*models.DroneState{
		{
			DroneID: "drone-a", Lat: 33.6846, Lon: -117.8265, Alt: 50,
			VelE: 10, VelN: 0, SpeedMPS: 10, Status: models.DroneStatusActive,
			Priority: 2, LastUpdate: now,
		},
		{
			DroneID: "drone-b", Lat: 33.6846, Lon: -117.8247, Alt: 50,
			VelE: -10, VelN: 0, SpeedMPS: 10, Status: models.DroneStatusActive,
			Priority: 1, LastUpdate: now,
		},
	}
}

func TestDetectHeadOnConflict(t *testing.T) {
	now := time.Now()
	d := New(testLimits())
	conflicts := d.Detect(headOnDrones(now), now, 10*time.Second)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d: %+v", len(conflicts), conflicts)
	}
	c := conflicts[0]
	if c.DroneA != "drone-a" || c.DroneB != "drone-b" {
		t.Fatalf("unexpected pair ordering: %+v", c)
	}
	if c.Severity != models.SeverityWarning && c.Severity != models.SeverityCritical {
		t.Fatalf("expected warning or critical severity, got %s", c.Severity)
	}
}

func TestDetectSymmetricToInputOrder(t *testing.T) {
	now := time.Now()
	d := New(testLimits())
	forward := d.Detect(headOnDrones(now), now, 10*time.Second)
	drones := headOnDrones(now)
	drones[0], drones[1] = drones[1], drones[0]
	reversed := d.Detect(drones, now, 10*time.Second)
	if len(forward) != len(reversed) || len(forward) != 1 {
		t.Fatalf("expected same conflict set regardless of order: %+v vs %+v", forward, reversed)
	}
	if forward[0].DroneA != reversed[0].DroneA || forward[0].DroneB != reversed[0].DroneB {
		t.Fatalf("pair identity should not depend on input order")
	}
}

func TestDetectMonotoneInThresholds(t *testing.T) {
	now := time.Now()
	baseline := New(testLimits())
	base := baseline.Detect(headOnDrones(now), now, 10*time.Second)
	if len(base) == 0 {
		t.Fatalf("expected baseline conflict")
	}
	wider := testLimits()
	wider.MinHorizontalSeparationM *= 2
	wider.MinVerticalSeparationM *= 2
	det2 := New(wider)
	widened := det2.Detect(headOnDrones(now), now, 10*time.Second)
	if len(widened) < len(base) {
		t.Fatalf("raising thresholds should never remove a previously detected conflict")
	}
}

func TestDetectIgnoresDivergingDrones(t *testing.T) {
	now := time.Now()
	drones := []*models.DroneState{
		{DroneID: "a", Lat: 33.6846, Lon: -117.8265, Alt: 50, VelE: -10, Status: models.DroneStatusActive, LastUpdate: now},
		{DroneID: "b", Lat: 33.6846, Lon: -117.8247, Alt: 50, VelE: 10, Status: models.DroneStatusActive, LastUpdate: now},
	}
	d := New(testLimits())
	conflicts := d.Detect(drones, now, 10*time.Second)
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflict for diverging drones, got %+v", conflicts)
	}
}

func TestDetectIgnoresStaleDrones(t *testing.T) {
	now := time.Now()
	drones := headOnDrones(now)
	drones[1].LastUpdate = now.Add(-1 * time.Hour)
	d := New(testLimits())
	conflicts := d.Detect(drones, now, 10*time.Second)
	if len(conflicts) != 0 {
		t.Fatalf("expected stale drone to be excluded, got %+v", conflicts)
	}
}
