package geofence

import (
	"testing"
	"time"

	"utmcore/models"
)

func boxFence(id string, typ models.GeofenceType) *models.Geofence {
	return &models.Geofence{
		ID: id, Name: id, Type: typ, Active: true,
		LowerAltitudeM: 0, UpperAltitudeM: 100,
		Vertices: []models.Waypoint{
			{Lat: 33.68, Lon: -117.83}, {Lat: 33.68, Lon: -117.82},
			{Lat: 33.69, Lon: -117.82}, {Lat: 33.69, Lon: -117.83},
		},
	}
}

func TestCheckRouteDetectsCrossing(t *testing.T) {
	now := time.Now()
	route := []models.Waypoint{
		{Lat: 33.675, Lon: -117.825, Alt: 50},
		{Lat: 33.695, Lon: -117.825, Alt: 50},
	}
	fences := []*models.Geofence{boxFence("fence-1", models.GeofenceNoFly)}
	violations := CheckRoute(route, fences, now)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %+v", violations)
	}
	if !IsFatal(violations[0]) {
		t.Fatalf("expected no_fly violation to be fatal")
	}
}

func TestCheckRouteIgnoresFenceOutsideAltitudeBand(t *testing.T) {
	now := time.Now()
	route := []models.Waypoint{
		{Lat: 33.675, Lon: -117.825, Alt: 150},
		{Lat: 33.695, Lon: -117.825, Alt: 150},
	}
	fences := []*models.Geofence{boxFence("fence-1", models.GeofenceNoFly)}
	violations := CheckRoute(route, fences, now)
	if len(violations) != 0 {
		t.Fatalf("expected no violations above the fence's altitude band, got %+v", violations)
	}
}

func TestCheckRouteAdvisoryNotFatal(t *testing.T) {
	now := time.Now()
	route := []models.Waypoint{
		{Lat: 33.675, Lon: -117.825, Alt: 50},
		{Lat: 33.695, Lon: -117.825, Alt: 50},
	}
	fences := []*models.Geofence{boxFence("fence-1", models.GeofenceAdvisory)}
	violations := CheckRoute(route, fences, now)
	if len(violations) != 1 {
		t.Fatalf("expected 1 advisory violation, got %+v", violations)
	}
	if IsFatal(violations[0]) || HasFatal(violations) {
		t.Fatalf("advisory violations must never be fatal")
	}
}

func TestCheckRouteIgnoresInactiveFence(t *testing.T) {
	now := time.Now()
	route := []models.Waypoint{
		{Lat: 33.675, Lon: -117.825, Alt: 50},
		{Lat: 33.695, Lon: -117.825, Alt: 50},
	}
	fence := boxFence("fence-1", models.GeofenceNoFly)
	fence.Active = false
	violations := CheckRoute(route, []*models.Geofence{fence}, now)
	if len(violations) != 0 {
		t.Fatalf("expected inactive fence to be ignored, got %+v", violations)
	}
}

func TestCheckRouteRespectsEffectiveWindow(t *testing.T) {
	now := time.Now()
	future := now.Add(1 * time.Hour)
	fence := boxFence("fence-1", models.GeofenceNoFly)
	fence.EffectiveFrom = &future
	route := []models.Waypoint{
		{Lat: 33.675, Lon: -117.825, Alt: 50},
		{Lat: 33.695, Lon: -117.825, Alt: 50},
	}
	violations := CheckRoute(route, []*models.Geofence{fence}, now)
	if len(violations) != 0 {
		t.Fatalf("expected fence not yet effective to be ignored, got %+v", violations)
	}
}
