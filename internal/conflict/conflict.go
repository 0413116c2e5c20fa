// Package conflict implements the pairwise closest-point-of-approach
// predictor: given a snapshot of active drones, it returns every pair whose
// predicted trajectories breach the configured separation minima within the
// lookahead window.
package conflict

import (
	"math"
	"sort"
	"time"

	"utmcore/internal/geo"
	"utmcore/models"
)

// Limits bundles the thresholds the detector is evaluated against.
type Limits struct {
	MinHorizontalSeparationM float64
	MinVerticalSeparationM   float64
	Lookahead                time.Duration
	SampleInterval           time.Duration
}

// Detector runs the CPA prediction over a drone snapshot.
type Detector struct {
	limits Limits
}

// New builds a Detector for the given limits.
func New(limits Limits) *Detector {
	return &Detector{limits: limits}
}

// Detect returns every conflicting pair among drones considered active
// (status Active, Holding, or Rerouting) whose last_update is within
// droneTimeout of now. The anchor point for the ENU projection is the mean
// position of the fleet, so separation math stays well-conditioned
// regardless of which pair is evaluated.
func (d *Detector) Detect(drones []*models.DroneState, now time.Time, droneTimeout time.Duration) []models.Conflict {
	active := make([]*models.DroneState, 0, len(drones))
	for _, dr := range drones {
		if !isActive(dr.Status) {
			continue
		}
		if now.Sub(dr.LastUpdate) > droneTimeout {
			continue
		}
		active = append(active, dr)
	}
	if len(active) < 2 {
		return nil
	}

	origin := meanOrigin(active)

	var out []models.Conflict
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			a, b := active[i], active[j]
			lo, hi := a.DroneID, b.DroneID
			if hi < lo {
				lo, hi = hi, lo
			}
			c, ok := d.evaluatePair(origin, a, b, lo, hi)
			if ok {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DroneA != out[j].DroneA {
			return out[i].DroneA < out[j].DroneA
		}
		return out[i].DroneB < out[j].DroneB
	})
	return out
}

func isActive(s models.DroneStatus) bool {
	return s == models.DroneStatusActive || s == models.DroneStatusHolding || s == models.DroneStatusRerouting
}

func meanOrigin(drones []*models.DroneState) geo.Origin {
	var lat, lon float64
	for _, d := range drones {
		lat += d.Lat
		lon += d.Lon
	}
	n := float64(len(drones))
	return geo.Origin{Lat: lat / n, Lon: lon / n}
}

func (d *Detector) evaluatePair(origin geo.Origin, a, b *models.DroneState, lo, hi string) (models.Conflict, bool) {
	pa := origin.ToENU(geo.Point{Lat: a.Lat, Lon: a.Lon, Alt: a.Alt})
	pb := origin.ToENU(geo.Point{Lat: b.Lat, Lon: b.Lon, Alt: b.Alt})
	va := geo.ENU{E: a.VelE, N: a.VelN, U: a.VelU}
	vb := geo.ENU{E: b.VelE, N: b.VelN, U: b.VelU}

	dp := pa.Sub(pb)
	dv := va.Sub(vb)

	lookaheadS := d.limits.Lookahead.Seconds()
	var tCPA float64
	denom := dv.Dot(dv)
	if denom < 1e-9 {
		tCPA = 0
	} else {
		tCPA = -dp.Dot(dv) / denom
		if tCPA < 0 {
			tCPA = 0
		}
		if tCPA > lookaheadS {
			tCPA = lookaheadS
		}
	}

	minSep := math.Inf(1)
	breach := false
	sampleEval := func(t float64) {
		posA := pa.Add(va.Scale(t))
		posB := pb.Add(vb.Scale(t))
		dh := geo.DistanceHorizontal(posA, posB)
		dvert := math.Abs((posA.U) - (posB.U))
		sep := geo.Distance3(posA, posB)
		if sep < minSep {
			minSep = sep
		}
		if dh < d.limits.MinHorizontalSeparationM && dvert < d.limits.MinVerticalSeparationM {
			breach = true
		}
	}

	sampleEval(tCPA)
	interval := d.limits.SampleInterval.Seconds()
	if interval <= 0 {
		interval = 1
	}
	for t := 0.0; t < tCPA; t += interval {
		sampleEval(t)
	}

	if !breach {
		return models.Conflict{}, false
	}

	currentSep := geo.Distance3(pa, pb)
	var severity models.Severity
	switch {
	case currentSep < d.limits.MinHorizontalSeparationM:
		severity = models.SeverityCritical
	case tCPA <= lookaheadS/2:
		severity = models.SeverityWarning
	default:
		severity = models.SeverityInfo
	}

	midENU := pa.Add(va.Scale(tCPA)).Add(pb.Add(vb.Scale(tCPA))).Scale(0.5)
	loc := origin.FromENU(midENU)

	return models.Conflict{
		DroneA:         lo,
		DroneB:         hi,
		TCPASeconds:    tCPA,
		MinSeparationM: minSep,
		Severity:       severity,
		LocationLat:    loc.Lat,
		LocationLon:    loc.Lon,
		LocationAlt:    loc.Alt,
	}, true
}
