// Package persistence is the SQLite-backed write-through layer behind the
// world store: one repository struct per entity, context-timeout-guarded
// CRUD, grounded directly on the teacher's repository package (same shape,
// new entities).
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"utmcore/models"
)

const defaultTimeout = 3 * time.Second

// DroneRepository persists DroneState rows.
type DroneRepository struct {
	db *sql.DB
}

// NewDroneRepository builds a DroneRepository over an opened *sql.DB.
func NewDroneRepository(db *sql.DB) *DroneRepository {
	return &DroneRepository{db: db}
}

// Upsert inserts or replaces the row for d.DroneID.
func (r *DroneRepository) Upsert(ctx context.Context, d *models.DroneState) error {
	if d == nil {
		return errors.New("drone is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	wps, err := json.Marshal(d.AssignedWaypoints)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO drones (drone_id, owner_id, lat, lon, alt, vel_e, vel_n, vel_u, speed_mps, heading_deg, status, priority, last_update, assigned_waypoints)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(drone_id) DO UPDATE SET
			owner_id=excluded.owner_id, lat=excluded.lat, lon=excluded.lon, alt=excluded.alt,
			vel_e=excluded.vel_e, vel_n=excluded.vel_n, vel_u=excluded.vel_u,
			speed_mps=excluded.speed_mps, heading_deg=excluded.heading_deg,
			status=excluded.status, priority=excluded.priority, last_update=excluded.last_update,
			assigned_waypoints=excluded.assigned_waypoints`,
		d.DroneID, d.OwnerID, d.Lat, d.Lon, d.Alt, d.VelE, d.VelN, d.VelU,
		d.SpeedMPS, d.HeadingDeg, string(d.Status), d.Priority, d.LastUpdate.Format(time.RFC3339Nano), string(wps))
	return err
}

// Delete removes a single drone row. AdminReset does not use it; it clears
// all rows through the bundle's ResetAll.
func (r *DroneRepository) Delete(ctx context.Context, droneID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM drones WHERE drone_id = ?`, droneID)
	return err
}

// DeleteAll clears the table; used only by AdminReset.
func (r *DroneRepository) DeleteAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM drones`)
	return err
}

// LoadAll reads every drone row, used to warm the store at startup.
func (r *DroneRepository) LoadAll(ctx context.Context) ([]*models.DroneState, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT drone_id, owner_id, lat, lon, alt, vel_e, vel_n, vel_u, speed_mps, heading_deg, status, priority, last_update, assigned_waypoints
		FROM drones`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.DroneState
	for rows.Next() {
		var d models.DroneState
		var status, lastUpdate, wps string
		if err := rows.Scan(&d.DroneID, &d.OwnerID, &d.Lat, &d.Lon, &d.Alt, &d.VelE, &d.VelN, &d.VelU,
			&d.SpeedMPS, &d.HeadingDeg, &status, &d.Priority, &lastUpdate, &wps); err != nil {
			return nil, err
		}
		d.Status = models.DroneStatus(status)
		if t, err := time.Parse(time.RFC3339Nano, lastUpdate); err == nil {
			d.LastUpdate = t
		}
		_ = json.Unmarshal([]byte(wps), &d.AssignedWaypoints)
		out = append(out, &d)
	}
	return out, rows.Err()
}
