package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"

	"utmcore/internal/apierr"
	"utmcore/models"
)

// UpsertGeofence creates or replaces a geofence. An identical payload
// (same fingerprint) for an existing id is a no-op that leaves UpdatedAt
// untouched, per the idempotence property in §8.
func (s *Store) UpsertGeofence(ctx context.Context, g *models.Geofence) (*models.Geofence, error) {
	if g == nil {
		return nil, apierr.New(apierr.InvalidInput, "geofence is nil")
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.LowerAltitudeM >= g.UpperAltitudeM {
		return nil, apierr.New(apierr.InvalidInput, "lower_altitude_m must be < upper_altitude_m")
	}
	if len(g.Vertices) > 0 && (g.Vertices[0] != g.Vertices[len(g.Vertices)-1]) {
		g.Vertices = append(g.Vertices, g.Vertices[0])
	}
	fp := fingerprintGeofence(g)

	s.geofencesMu.Lock()
	existing, ok := s.geofences[g.ID]
	if ok && existing.Fingerprint == fp {
		snapshot := existing.Clone()
		s.geofencesMu.Unlock()
		return snapshot, nil
	}
	g.Fingerprint = fp
	g.UpdatedAt = s.clock.Now()
	cp := g.Clone()
	s.geofences[g.ID] = cp
	snapshot := cp.Clone()
	s.geofencesMu.Unlock()

	if err := s.retryWrite(ctx, func(ctx context.Context) error {
		if s.persist == nil {
			return nil
		}
		return s.persist.UpsertGeofence(ctx, snapshot)
	}); err != nil {
		s.geofencesMu.Lock()
		if ok {
			s.geofences[g.ID] = existing
		} else {
			delete(s.geofences, g.ID)
		}
		s.geofencesMu.Unlock()
		return nil, err
	}
	return snapshot, nil
}

// DeleteGeofence removes a geofence by id.
func (s *Store) DeleteGeofence(ctx context.Context, id string) error {
	s.geofencesMu.Lock()
	existing, ok := s.geofences[id]
	delete(s.geofences, id)
	s.geofencesMu.Unlock()
	if !ok {
		return apierr.New(apierr.NotFound, "unknown geofence")
	}

	if err := s.retryWrite(ctx, func(ctx context.Context) error {
		if s.persist == nil {
			return nil
		}
		return s.persist.DeleteGeofence(ctx, id)
	}); err != nil {
		s.geofencesMu.Lock()
		s.geofences[id] = existing
		s.geofencesMu.Unlock()
		return err
	}
	return nil
}

// ListGeofences returns cloned snapshots of every known geofence.
func (s *Store) ListGeofences() []*models.Geofence {
	s.geofencesMu.RLock()
	defer s.geofencesMu.RUnlock()
	out := make([]*models.Geofence, 0, len(s.geofences))
	for _, g := range s.geofences {
		out = append(out, g.Clone())
	}
	return out
}

// ActiveGeofences returns cloned snapshots of geofences currently in
// effect.
func (s *Store) ActiveGeofences() []*models.Geofence {
	now := s.clock.Now()
	all := s.ListGeofences()
	out := make([]*models.Geofence, 0, len(all))
	for _, g := range all {
		if g.IsEffectiveAt(now) {
			out = append(out, g)
		}
	}
	return out
}

func fingerprintGeofence(g *models.Geofence) string {
	type payload struct {
		Name     string
		Type     models.GeofenceType
		Vertices []models.Waypoint
		Lower    float64
		Upper    float64
		Active   bool
	}
	b, _ := json.Marshal(payload{g.Name, g.Type, g.Vertices, g.LowerAltitudeM, g.UpperAltitudeM, g.Active})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
