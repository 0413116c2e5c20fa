package store

import (
	"context"
	"math"

	"github.com/google/uuid"

	"utmcore/internal/apierr"
	"utmcore/internal/geo"
	"utmcore/models"
)

// Register creates a new drone (minting an opaque id if droneID is empty)
// or re-registers an existing one, rotating its session token. The
// registration-rate token bucket is keyed by ownerID (falling back to the
// droneID if ownerID is empty) to bound registration churn from a single
// source.
func (s *Store) Register(ctx context.Context, droneID, ownerID string) (id string, token string, err error) {
	rateKey := ownerID
	if rateKey == "" {
		rateKey = droneID
	}
	if rateKey != "" && !s.allowRegistration(rateKey) {
		return "", "", apierr.New(apierr.RateLimited, "registration rate limit exceeded")
	}
	if droneID == "" {
		droneID = uuid.NewString()
	}

	lock := s.droneLock(droneID)
	lock.Lock()
	defer lock.Unlock()

	s.dronesMu.Lock()
	d, exists := s.drones[droneID]
	if !exists {
		d = &models.DroneState{
			DroneID: droneID,
			OwnerID: ownerID,
			Status:  models.DroneStatusInactive,
		}
		s.drones[droneID] = d
	} else {
		if ownerID != "" {
			d.OwnerID = ownerID
		}
	}
	snapshot := d.Clone()
	s.dronesMu.Unlock()

	tok, err := s.mintToken(ctx, droneID)
	if err != nil {
		if !exists {
			s.dronesMu.Lock()
			delete(s.drones, droneID)
			s.dronesMu.Unlock()
		}
		return "", "", err
	}

	if err := s.retryWrite(ctx, func(ctx context.Context) error {
		if s.persist == nil {
			return nil
		}
		return s.persist.UpsertDrone(ctx, snapshot)
	}); err != nil {
		if !exists {
			s.dronesMu.Lock()
			delete(s.drones, droneID)
			s.dronesMu.Unlock()
		}
		return "", "", err
	}

	return droneID, tok, nil
}

// IngestTelemetry validates and applies a telemetry sample for the drone
// identified by token. Ordering and validity are enforced per-drone under
// droneLock so concurrent sessions for the same drone never race.
func (s *Store) IngestTelemetry(ctx context.Context, token string, t models.Telemetry) error {
	droneID, err := s.droneIDForToken(token)
	if err != nil {
		return err
	}

	lock := s.droneLock(droneID)
	lock.Lock()
	defer lock.Unlock()

	now := s.clock.Now()

	s.dronesMu.RLock()
	d, ok := s.drones[droneID]
	s.dronesMu.RUnlock()
	if !ok {
		return apierr.New(apierr.NotFound, string(models.RejectUnknownDrone))
	}

	if t.Alt < s.limits.MinAltitudeM || t.Alt > s.limits.MaxAltitudeM {
		return apierr.New(apierr.InvalidInput, string(models.RejectAltitudeOutOfRange))
	}
	age := now.Sub(t.Timestamp)
	if age > s.limits.MaxTelemetryAge {
		return apierr.New(apierr.InvalidInput, string(models.RejectTimestampStale))
	}
	if age < -s.limits.MaxTelemetryFuture {
		return apierr.New(apierr.InvalidInput, string(models.RejectTimestampFuture))
	}
	if !d.LastUpdate.IsZero() && t.Timestamp.Before(d.LastUpdate) {
		return apierr.New(apierr.InvalidInput, string(models.RejectTimestampStale))
	}

	velE, velN, velU := t.VelE, t.VelN, t.VelU
	if !t.HasVel && !d.LastUpdate.IsZero() {
		dt := t.Timestamp.Sub(d.LastUpdate).Seconds()
		if dt > 0 {
			o := geo.Origin{Lat: t.Lat, Lon: t.Lon}
			prevENU := o.ToENU(geo.Point{Lat: d.Lat, Lon: d.Lon, Alt: d.Alt})
			currENU := o.ToENU(geo.Point{Lat: t.Lat, Lon: t.Lon, Alt: t.Alt})
			velE = (currENU.E - prevENU.E) / dt
			velN = (currENU.N - prevENU.N) / dt
			velU = (currENU.U - prevENU.U) / dt
		}
	}
	speed := math.Sqrt(velE*velE + velN*velN + velU*velU)
	if speed > s.limits.MaxSpeedMPS {
		return apierr.New(apierr.InvalidInput, string(models.RejectSpeedOutOfRange))
	}

	s.dronesMu.Lock()
	prev := d
	updated := d.Clone()
	updated.Lat, updated.Lon, updated.Alt = t.Lat, t.Lon, t.Alt
	updated.VelE, updated.VelN, updated.VelU = velE, velN, velU
	updated.SpeedMPS = speed
	if speed > 0.01 {
		heading := math.Atan2(velE, velN) * 180 / math.Pi
		if heading < 0 {
			heading += 360
		}
		updated.HeadingDeg = heading
	}
	if updated.Status == models.DroneStatusInactive || updated.Status == models.DroneStatusLost {
		updated.Status = models.DroneStatusActive
	}
	updated.LastUpdate = t.Timestamp
	s.drones[droneID] = updated
	snapshot := updated.Clone()
	s.dronesMu.Unlock()

	if err := s.retryWrite(ctx, func(ctx context.Context) error {
		if s.persist == nil {
			return nil
		}
		return s.persist.UpsertDrone(ctx, snapshot)
	}); err != nil {
		s.dronesMu.Lock()
		s.drones[droneID] = prev
		s.dronesMu.Unlock()
		return err
	}
	return nil
}

// GetDrone returns a cloned snapshot of the drone, or nil if unknown.
func (s *Store) GetDrone(droneID string) *models.DroneState {
	s.dronesMu.RLock()
	defer s.dronesMu.RUnlock()
	d, ok := s.drones[droneID]
	if !ok {
		return nil
	}
	return d.Clone()
}

// ListDrones returns cloned snapshots of every known drone.
func (s *Store) ListDrones() []*models.DroneState {
	s.dronesMu.RLock()
	defer s.dronesMu.RUnlock()
	out := make([]*models.DroneState, 0, len(s.drones))
	for _, d := range s.drones {
		out = append(out, d.Clone())
	}
	return out
}

// SetDroneStatus transitions a drone's status directly; used by the
// resolution engine's ack handling and the timeout/expiry sweepers rather
// than by external callers.
func (s *Store) SetDroneStatus(ctx context.Context, droneID string, status models.DroneStatus, waypoints []models.Waypoint) error {
	s.dronesMu.Lock()
	prev, ok := s.drones[droneID]
	if !ok {
		s.dronesMu.Unlock()
		return apierr.New(apierr.NotFound, "unknown drone")
	}
	updated := prev.Clone()
	updated.Status = status
	if waypoints != nil {
		updated.AssignedWaypoints = waypoints
	}
	s.drones[droneID] = updated
	snapshot := updated.Clone()
	s.dronesMu.Unlock()

	if err := s.retryWrite(ctx, func(ctx context.Context) error {
		if s.persist == nil {
			return nil
		}
		return s.persist.UpsertDrone(ctx, snapshot)
	}); err != nil {
		s.dronesMu.Lock()
		s.drones[droneID] = prev
		s.dronesMu.Unlock()
		return err
	}
	return nil
}

// SetPriority updates a drone's arbitration priority (higher = preferred
// when the resolution engine picks a yielder). An administrative operation;
// it does not go through the per-drone telemetry lock since it races only
// with reads, not with ordering-sensitive writes.
func (s *Store) SetPriority(ctx context.Context, droneID string, priority int) error {
	s.dronesMu.Lock()
	prev, ok := s.drones[droneID]
	if !ok {
		s.dronesMu.Unlock()
		return apierr.New(apierr.NotFound, "unknown drone")
	}
	updated := prev.Clone()
	updated.Priority = priority
	s.drones[droneID] = updated
	snapshot := updated.Clone()
	s.dronesMu.Unlock()

	if err := s.retryWrite(ctx, func(ctx context.Context) error {
		if s.persist == nil {
			return nil
		}
		return s.persist.UpsertDrone(ctx, snapshot)
	}); err != nil {
		s.dronesMu.Lock()
		s.drones[droneID] = prev
		s.dronesMu.Unlock()
		return err
	}
	return nil
}

// AdminReset clears every entity, in-memory and persisted.
func (s *Store) AdminReset(ctx context.Context) error {
	s.dronesMu.Lock()
	s.drones = make(map[string]*models.DroneState)
	s.dronesMu.Unlock()

	s.geofencesMu.Lock()
	s.geofences = make(map[string]*models.Geofence)
	s.geofencesMu.Unlock()

	s.plansMu.Lock()
	s.plans = make(map[string]*models.FlightPlan)
	s.plansMu.Unlock()

	s.commandsMu.Lock()
	s.commands = make(map[string]*models.Command)
	s.commandsMu.Unlock()

	s.tokensMu.Lock()
	s.tokensByID = make(map[string]*models.SessionToken)
	s.tokenByDrone = make(map[string]string)
	s.tokensMu.Unlock()

	if s.persist == nil {
		return nil
	}
	return s.retryWrite(ctx, s.persist.ResetAll)
}
