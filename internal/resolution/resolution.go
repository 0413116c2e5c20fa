// Package resolution implements the priority arbitration and strategy
// selection that turns a detected conflict into (at most) one command for
// the yielding drone.
package resolution

import (
	"math"
	"time"

	"utmcore/internal/geo"
	"utmcore/models"
)

// Limits bundles the thresholds the engine needs: separation minima
// (shared with the conflict detector), altitude bounds, and the cooldown
// window for duplicate suppression.
type Limits struct {
	MinHorizontalSeparationM float64
	MinVerticalSeparationM   float64
	MinAltitudeM             float64
	MaxAltitudeM             float64
	Lookahead                time.Duration
	Cooldown                 time.Duration
}

// DuplicateChecker reports whether droneID already has an active (or
// recently acked, within cooldown) command of kind — used to suppress
// redundant issuance. Bound by the caller to the world store so this
// package stays decoupled from store's concrete type.
type DuplicateChecker func(droneID string, kind models.CommandKind) bool

// Decision is a command the engine wants issued; the caller (the conflict
// loop) turns it into a models.Command with store-assigned IDs/timestamps.
type Decision struct {
	DroneID      string
	Kind         models.CommandKind
	Waypoints    []models.Waypoint
	HoldDuration time.Duration
	TargetAltM   float64
}

// Engine selects and synthesises resolution commands.
type Engine struct {
	limits Limits
}

// New builds an Engine for the given limits.
func New(limits Limits) *Engine {
	return &Engine{limits: limits}
}

// Resolve turns each conflict into at most one Decision. drones must map
// drone_id to its current state; fences are the currently active
// geofences.
func (e *Engine) Resolve(conflicts []models.Conflict, drones map[string]*models.DroneState, fences []*models.Geofence, hasActive DuplicateChecker) []Decision {
	var out []Decision
	for _, c := range conflicts {
		a, okA := drones[c.DroneA]
		b, okB := drones[c.DroneB]
		if !okA || !okB {
			continue
		}
		yielder, other := e.pickYielder(a, b)
		if other.Status == models.DroneStatusHolding || other.Status == models.DroneStatusRerouting {
			continue // no cascading reroutes
		}

		kind, decision, ok := e.selectStrategy(yielder, other, fences)
		if !ok {
			continue
		}
		if hasActive != nil && hasActive(yielder.DroneID, kind) {
			continue
		}
		out = append(out, decision)
	}
	return out
}

// pickYielder returns (yielder, other): the drone with lower Priority
// yields; ties are broken by larger drone_id lexicographically yielding.
func (e *Engine) pickYielder(a, b *models.DroneState) (yielder, other *models.DroneState) {
	if a.Priority != b.Priority {
		if a.Priority < b.Priority {
			return a, b
		}
		return b, a
	}
	if a.DroneID > b.DroneID {
		return a, b
	}
	return b, a
}

func (e *Engine) selectStrategy(yielder, other *models.DroneState, fences []*models.Geofence) (models.CommandKind, Decision, bool) {
	if math.Abs(yielder.Alt-other.Alt) >= e.limits.MinVerticalSeparationM/2 {
		target := yielder.Alt + 30
		if target <= e.limits.MaxAltitudeM && !altitudeRouteBlocked(yielder, target, fences) {
			return models.CommandAltitudeChange, Decision{
				DroneID: yielder.DroneID, Kind: models.CommandAltitudeChange, TargetAltM: target,
			}, true
		}
	}

	if wps, ok := e.synthesizeLateralWaypoints(yielder, other, fences); ok {
		return models.CommandReroute, Decision{
			DroneID: yielder.DroneID, Kind: models.CommandReroute, Waypoints: wps,
		}, true
	}

	return models.CommandHold, Decision{
		DroneID: yielder.DroneID, Kind: models.CommandHold, HoldDuration: 2 * e.limits.Lookahead,
	}, true
}

// synthesizeLateralWaypoints is a pure function of (yielder, other,
// geofences): current position, an offset waypoint 100m perpendicular to
// the yielder's heading away from the other drone's predicted path, and
// the yielder's next original waypoint (here: its current heading
// extended, since the yielder's remaining route is not modeled by this
// package). Swapping this for an obstacle-aware planner requires no
// changes outside this function.
func (e *Engine) synthesizeLateralWaypoints(yielder, other *models.DroneState, fences []*models.Geofence) ([]models.Waypoint, bool) {
	origin := geo.Origin{Lat: yielder.Lat, Lon: yielder.Lon}
	yPos := origin.ToENU(geo.Point{Lat: yielder.Lat, Lon: yielder.Lon, Alt: yielder.Alt})
	oPos := origin.ToENU(geo.Point{Lat: other.Lat, Lon: other.Lon, Alt: other.Alt})

	headingRad := yielder.HeadingDeg * math.Pi / 180
	hdE, hdN := math.Sin(headingRad), math.Cos(headingRad)
	// Two perpendicular candidates; pick the one pointing away from other.
	leftE, leftN := -hdN, hdE
	rightE, rightN := hdN, -hdE
	toOtherE, toOtherN := oPos.E-yPos.E, oPos.N-yPos.N

	offE, offN := leftE, leftN
	if leftE*toOtherE+leftN*toOtherN > rightE*toOtherE+rightN*toOtherN {
		offE, offN = rightE, rightN
	}

	const offsetM = 100.0
	mid := geo.ENU{E: yPos.E + offE*offsetM, N: yPos.N + offN*offsetM, U: yPos.U}
	next := geo.ENU{E: yPos.E + hdE*offsetM*2, N: yPos.N + hdN*offsetM*2, U: yPos.U}

	for _, f := range fences {
		if f.Type != models.GeofenceNoFly {
			continue
		}
		if !f.OverlapsAltitude(yielder.Alt, yielder.Alt) {
			continue
		}
		vertices := make([]geo.ENU, len(f.Vertices))
		for i, v := range f.Vertices {
			vertices[i] = origin.ToENU(geo.Point{Lat: v.Lat, Lon: v.Lon})
		}
		if geo.SegmentIntersectsPolygon(yPos, mid, vertices) || geo.SegmentIntersectsPolygon(mid, next, vertices) {
			return nil, false
		}
	}

	// Reject if the offset route remains too close to the other drone's
	// predicted straight-line path over the lookahead window.
	otherFuture := oPos.Add(geo.ENU{E: other.VelE, N: other.VelN, U: other.VelU}.Scale(e.limits.Lookahead.Seconds()))
	if geo.SegmentDistance3(yPos, mid, oPos, otherFuture) < e.limits.MinHorizontalSeparationM {
		return nil, false
	}

	midPt := origin.FromENU(mid)
	nextPt := origin.FromENU(next)
	return []models.Waypoint{
		{Lat: yielder.Lat, Lon: yielder.Lon, Alt: yielder.Alt},
		{Lat: midPt.Lat, Lon: midPt.Lon, Alt: midPt.Alt},
		{Lat: nextPt.Lat, Lon: nextPt.Lon, Alt: nextPt.Alt},
	}, true
}

func altitudeRouteBlocked(d *models.DroneState, targetAlt float64, fences []*models.Geofence) bool {
	lower, upper := math.Min(d.Alt, targetAlt), math.Max(d.Alt, targetAlt)
	for _, f := range fences {
		if f.Type == models.GeofenceNoFly && f.OverlapsAltitude(lower, upper) {
			origin := geo.Origin{Lat: d.Lat, Lon: d.Lon}
			pos := origin.ToENU(geo.Point{Lat: d.Lat, Lon: d.Lon})
			vertices := make([]geo.ENU, len(f.Vertices))
			for i, v := range f.Vertices {
				vertices[i] = origin.ToENU(geo.Point{Lat: v.Lat, Lon: v.Lon})
			}
			if geo.PointInPolygon(pos, vertices) {
				return true
			}
		}
	}
	return false
}
