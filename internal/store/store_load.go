package store

import "context"

// LoadFromPersistence warms the in-memory store from durable storage at
// startup. It is a one-shot bulk load and bypasses the normal mutation path
// (no write-through, since the data is already durable).
func (s *Store) LoadFromPersistence(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}

	drones, err := s.persist.LoadDrones(ctx)
	if err != nil {
		return err
	}
	s.dronesMu.Lock()
	for _, d := range drones {
		s.drones[d.DroneID] = d
	}
	s.dronesMu.Unlock()

	geofences, err := s.persist.LoadGeofences(ctx)
	if err != nil {
		return err
	}
	s.geofencesMu.Lock()
	for _, g := range geofences {
		s.geofences[g.ID] = g
	}
	s.geofencesMu.Unlock()

	plans, err := s.persist.LoadFlightPlans(ctx)
	if err != nil {
		return err
	}
	s.plansMu.Lock()
	for _, p := range plans {
		s.plans[p.FlightID] = p
	}
	s.plansMu.Unlock()

	commands, err := s.persist.LoadCommands(ctx)
	if err != nil {
		return err
	}
	s.commandsMu.Lock()
	for _, c := range commands {
		s.commands[c.CommandID] = c
	}
	s.commandsMu.Unlock()

	tokens, err := s.persist.LoadTokens(ctx)
	if err != nil {
		return err
	}
	s.LoadTokens(tokens)

	return nil
}
