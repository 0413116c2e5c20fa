package persistence

import (
	"context"
	"database/sql"

	"utmcore/models"
)

// Bundle wires the five entity repositories behind the store.Persister
// interface, so the world store's write-through calls land on real SQLite
// rows without the store needing to know about *sql.DB at all.
type Bundle struct {
	Drones    *DroneRepository
	Geofences *GeofenceRepository
	Plans     *FlightPlanRepository
	Commands  *CommandRepository
	Tokens    *TokenRepository
	Sync      *ExternalSyncRepository
}

// NewBundle builds a Bundle over an already-opened, migrated *sql.DB.
func NewBundle(db *sql.DB) *Bundle {
	return &Bundle{
		Drones:    NewDroneRepository(db),
		Geofences: NewGeofenceRepository(db),
		Plans:     NewFlightPlanRepository(db),
		Commands:  NewCommandRepository(db),
		Tokens:    NewTokenRepository(db),
		Sync:      NewExternalSyncRepository(db),
	}
}

func (b *Bundle) UpsertDrone(ctx context.Context, d *models.DroneState) error { return b.Drones.Upsert(ctx, d) }
func (b *Bundle) DeleteDrone(ctx context.Context, droneID string) error      { return b.Drones.Delete(ctx, droneID) }

func (b *Bundle) UpsertGeofence(ctx context.Context, g *models.Geofence) error { return b.Geofences.Upsert(ctx, g) }
func (b *Bundle) DeleteGeofence(ctx context.Context, id string) error          { return b.Geofences.Delete(ctx, id) }

func (b *Bundle) UpsertFlightPlan(ctx context.Context, p *models.FlightPlan) error {
	return b.Plans.Upsert(ctx, p)
}

func (b *Bundle) UpsertCommand(ctx context.Context, c *models.Command) error {
	return b.Commands.Upsert(ctx, c)
}

func (b *Bundle) PutToken(ctx context.Context, t *models.SessionToken) error {
	return b.Tokens.Put(ctx, t)
}

// ResetAll clears every table, used only by AdminReset.
func (b *Bundle) ResetAll(ctx context.Context) error {
	if err := b.Drones.DeleteAll(ctx); err != nil {
		return err
	}
	if err := b.Geofences.DeleteAll(ctx); err != nil {
		return err
	}
	if err := b.Plans.DeleteAll(ctx); err != nil {
		return err
	}
	if err := b.Commands.DeleteAll(ctx); err != nil {
		return err
	}
	return b.Tokens.DeleteAll(ctx)
}

func (b *Bundle) LoadDrones(ctx context.Context) ([]*models.DroneState, error)      { return b.Drones.LoadAll(ctx) }
func (b *Bundle) LoadGeofences(ctx context.Context) ([]*models.Geofence, error)     { return b.Geofences.LoadAll(ctx) }
func (b *Bundle) LoadFlightPlans(ctx context.Context) ([]*models.FlightPlan, error) { return b.Plans.LoadAll(ctx) }
func (b *Bundle) LoadCommands(ctx context.Context) ([]*models.Command, error)       { return b.Commands.LoadAll(ctx) }
func (b *Bundle) LoadTokens(ctx context.Context) ([]*models.SessionToken, error)    { return b.Tokens.LoadAll(ctx) }
