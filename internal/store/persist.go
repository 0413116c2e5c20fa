package store

import (
	"context"
	"time"

	"utmcore/internal/apierr"
	"utmcore/models"
)

// Persister is the write-through boundary between the in-memory world store
// and durable storage. A nil Persister makes the store purely in-memory
// (useful for tests); cmd/utmcore wires a *persistence.Bundle-backed
// implementation in production.
type Persister interface {
	UpsertDrone(ctx context.Context, d *models.DroneState) error
	DeleteDrone(ctx context.Context, droneID string) error
	UpsertGeofence(ctx context.Context, g *models.Geofence) error
	DeleteGeofence(ctx context.Context, id string) error
	UpsertFlightPlan(ctx context.Context, p *models.FlightPlan) error
	UpsertCommand(ctx context.Context, c *models.Command) error
	PutToken(ctx context.Context, t *models.SessionToken) error
	ResetAll(ctx context.Context) error

	LoadDrones(ctx context.Context) ([]*models.DroneState, error)
	LoadGeofences(ctx context.Context) ([]*models.Geofence, error)
	LoadFlightPlans(ctx context.Context) ([]*models.FlightPlan, error)
	LoadCommands(ctx context.Context) ([]*models.Command, error)
	LoadTokens(ctx context.Context) ([]*models.SessionToken, error)
}

// retryWrite attempts fn with exponential backoff (base 100ms, factor 2,
// capped at 5s per attempt, bounded to a configurable total window), per the
// persistence-failure policy: a sustained failure marks the store degraded
// and the caller rolls back the in-memory mutation it was about to commit.
func (s *Store) retryWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	maxWindow := s.limits.PersistenceRetryWindow
	if maxWindow <= 0 {
		maxWindow = 2 * time.Second
	}
	backoff := 100 * time.Millisecond
	deadline := s.clock.Now().Add(maxWindow)
	var lastErr error
	for {
		err := fn(ctx)
		if err == nil {
			s.setDegraded(false)
			return nil
		}
		lastErr = err
		if s.clock.Now().After(deadline) {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			lastErr = ctx.Err()
			s.setDegraded(true)
			s.logger.Error(ctx, "persistence write failed after retries", "error", lastErr)
			return apierr.Wrap(apierr.PersistenceFailure, "persistence write failed", lastErr)
		case <-timer.C:
		}
		backoff *= 2
		if backoff > 5*time.Second {
			backoff = 5 * time.Second
		}
	}
	s.setDegraded(true)
	s.logger.Error(ctx, "persistence write failed after retries", "error", lastErr)
	return apierr.Wrap(apierr.PersistenceFailure, "persistence write failed", lastErr)
}

func (s *Store) setDegraded(v bool) {
	s.degraded.Store(v)
}

// Degraded reports whether the store's persistence layer has a sustained
// failure. The HTTP health endpoint surfaces this.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}
