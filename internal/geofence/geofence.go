// Package geofence evaluates a drone's planned route against the set of
// currently active geofences, producing advisory or fatal violations.
package geofence

import (
	"time"

	"utmcore/internal/geo"
	"utmcore/models"
)

// CheckRoute evaluates the polyline waypoints (already including the
// drone's current position as the first point) against fences, at instant
// now. Only fences whose effective window covers now are considered.
// Advisory geofences never block a route — they only produce a Violation
// for logging/telemetry; NoFly and Restricted are fatal (the caller should
// reject the route, or in the resolution engine's case, veto the
// candidate waypoint set).
func CheckRoute(waypoints []models.Waypoint, fences []*models.Geofence, now time.Time) []models.Violation {
	if len(waypoints) < 2 {
		return nil
	}
	origin := geo.Origin{Lat: waypoints[0].Lat, Lon: waypoints[0].Lon}

	path := make([]geo.ENU, len(waypoints))
	for i, w := range waypoints {
		path[i] = origin.ToENU(geo.Point{Lat: w.Lat, Lon: w.Lon, Alt: w.Alt})
	}

	var out []models.Violation
	for _, f := range fences {
		if !f.IsEffectiveAt(now) {
			continue
		}
		if !routeOverlapsAltitude(waypoints, f) {
			continue
		}
		vertices := make([]geo.ENU, len(f.Vertices))
		for i, v := range f.Vertices {
			vertices[i] = origin.ToENU(geo.Point{Lat: v.Lat, Lon: v.Lon})
		}

		var first, last *models.Waypoint
		for i := 0; i < len(path)-1; i++ {
			if geo.SegmentIntersectsPolygon(path[i], path[i+1], vertices) {
				if first == nil {
					first = &waypoints[i]
				}
				last = &waypoints[i+1]
			}
		}
		if first == nil {
			continue
		}
		out = append(out, models.Violation{
			GeofenceID:   f.ID,
			GeofenceName: f.Name,
			Type:         f.Type,
			FirstBreach:  *first,
			LastBreach:   *last,
		})
	}
	return out
}

// IsFatal reports whether a violation type must block the route rather
// than merely be logged.
func IsFatal(v models.Violation) bool {
	return v.Type == models.GeofenceNoFly || v.Type == models.GeofenceRestricted
}

// HasFatal reports whether any violation in the set is fatal.
func HasFatal(violations []models.Violation) bool {
	for _, v := range violations {
		if IsFatal(v) {
			return true
		}
	}
	return false
}

func routeOverlapsAltitude(waypoints []models.Waypoint, f *models.Geofence) bool {
	lo, hi := waypoints[0].Alt, waypoints[0].Alt
	for _, w := range waypoints[1:] {
		if w.Alt < lo {
			lo = w.Alt
		}
		if w.Alt > hi {
			hi = w.Alt
		}
	}
	return f.OverlapsAltitude(lo, hi)
}
