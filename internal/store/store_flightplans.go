package store

import (
	"context"

	"github.com/google/uuid"

	"utmcore/internal/apierr"
	"utmcore/models"
)

// SubmitFlightPlan validates and stores a new flight plan in Pending
// status. Callers run the geofence evaluator before calling this (or after,
// inspecting the returned plan's id) — the store itself does not veto on
// geofence violations, it only enforces the data-model invariants.
func (s *Store) SubmitFlightPlan(ctx context.Context, p *models.FlightPlan) (*models.FlightPlan, error) {
	if p == nil {
		return nil, apierr.New(apierr.InvalidInput, "flight plan is nil")
	}
	if len(p.Waypoints) < 2 {
		return nil, apierr.New(apierr.InvalidInput, "flight plan requires at least 2 waypoints")
	}
	s.dronesMu.RLock()
	_, droneKnown := s.drones[p.DroneID]
	s.dronesMu.RUnlock()
	if !droneKnown {
		return nil, apierr.New(apierr.NotFound, string(models.RejectUnknownDrone))
	}
	if p.FlightID == "" {
		p.FlightID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.PlanStatusPending
	}

	cp := p.Clone()
	s.plansMu.Lock()
	s.plans[p.FlightID] = cp
	s.plansMu.Unlock()

	snapshot := cp.Clone()
	if err := s.retryWrite(ctx, func(ctx context.Context) error {
		if s.persist == nil {
			return nil
		}
		return s.persist.UpsertFlightPlan(ctx, snapshot)
	}); err != nil {
		s.plansMu.Lock()
		delete(s.plans, p.FlightID)
		s.plansMu.Unlock()
		return nil, err
	}
	return snapshot, nil
}

// SetPlanStatus transitions a flight plan's status.
func (s *Store) SetPlanStatus(ctx context.Context, flightID string, status models.FlightPlanStatus) error {
	s.plansMu.Lock()
	p, ok := s.plans[flightID]
	if !ok {
		s.plansMu.Unlock()
		return apierr.New(apierr.NotFound, "unknown flight plan")
	}
	prev := p.Status
	p.Status = status
	snapshot := p.Clone()
	s.plansMu.Unlock()

	if err := s.retryWrite(ctx, func(ctx context.Context) error {
		if s.persist == nil {
			return nil
		}
		return s.persist.UpsertFlightPlan(ctx, snapshot)
	}); err != nil {
		s.plansMu.Lock()
		if p2, ok := s.plans[flightID]; ok {
			p2.Status = prev
		}
		s.plansMu.Unlock()
		return err
	}
	return nil
}

// GetFlightPlan returns a cloned snapshot, or nil if unknown.
func (s *Store) GetFlightPlan(flightID string) *models.FlightPlan {
	s.plansMu.RLock()
	defer s.plansMu.RUnlock()
	p, ok := s.plans[flightID]
	if !ok {
		return nil
	}
	return p.Clone()
}

// ListFlightPlans returns cloned snapshots of every known flight plan.
func (s *Store) ListFlightPlans() []*models.FlightPlan {
	s.plansMu.RLock()
	defer s.plansMu.RUnlock()
	out := make([]*models.FlightPlan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p.Clone())
	}
	return out
}

// ListFlightPlansForDrone returns cloned snapshots of plans for a single
// drone.
func (s *Store) ListFlightPlansForDrone(droneID string) []*models.FlightPlan {
	s.plansMu.RLock()
	defer s.plansMu.RUnlock()
	var out []*models.FlightPlan
	for _, p := range s.plans {
		if p.DroneID == droneID {
			out = append(out, p.Clone())
		}
	}
	return out
}
