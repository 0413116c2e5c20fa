package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"utmcore/models"
)

// FlightPlanRepository persists FlightPlan rows.
type FlightPlanRepository struct {
	db *sql.DB
}

// NewFlightPlanRepository builds a FlightPlanRepository over an opened *sql.DB.
func NewFlightPlanRepository(db *sql.DB) *FlightPlanRepository {
	return &FlightPlanRepository{db: db}
}

// Upsert inserts or replaces the row for p.FlightID.
func (r *FlightPlanRepository) Upsert(ctx context.Context, p *models.FlightPlan) error {
	if p == nil {
		return errors.New("flight plan is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	origin, err := json.Marshal(p.Origin)
	if err != nil {
		return err
	}
	dest, err := json.Marshal(p.Destination)
	if err != nil {
		return err
	}
	waypoints, err := json.Marshal(p.Waypoints)
	if err != nil {
		return err
	}
	trajectory, err := json.Marshal(p.TrajectoryLog)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	var endTime sql.NullString
	if !p.EndTime.IsZero() {
		endTime = sql.NullString{String: p.EndTime.Format(time.RFC3339Nano), Valid: true}
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO flight_plans (flight_id, drone_id, owner_id, origin, destination, waypoints, trajectory_log, metadata, status, start_time, end_time)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(flight_id) DO UPDATE SET
			drone_id=excluded.drone_id, owner_id=excluded.owner_id, origin=excluded.origin,
			destination=excluded.destination, waypoints=excluded.waypoints, trajectory_log=excluded.trajectory_log,
			metadata=excluded.metadata, status=excluded.status, start_time=excluded.start_time, end_time=excluded.end_time`,
		p.FlightID, p.DroneID, p.OwnerID, string(origin), string(dest), string(waypoints),
		string(trajectory), string(metadata), string(p.Status), p.StartTime.Format(time.RFC3339Nano), endTime)
	return err
}

// DeleteAll clears the table; used only by AdminReset.
func (r *FlightPlanRepository) DeleteAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM flight_plans`)
	return err
}

// LoadAll reads every flight plan row, used to warm the store at startup.
func (r *FlightPlanRepository) LoadAll(ctx context.Context) ([]*models.FlightPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT flight_id, drone_id, owner_id, origin, destination, waypoints, trajectory_log, metadata, status, start_time, end_time
		FROM flight_plans`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.FlightPlan
	for rows.Next() {
		var p models.FlightPlan
		var origin, dest, waypoints, trajectory, metadata, status, startTime string
		var endTime sql.NullString
		if err := rows.Scan(&p.FlightID, &p.DroneID, &p.OwnerID, &origin, &dest, &waypoints,
			&trajectory, &metadata, &status, &startTime, &endTime); err != nil {
			return nil, err
		}
		p.Status = models.FlightPlanStatus(status)
		_ = json.Unmarshal([]byte(origin), &p.Origin)
		_ = json.Unmarshal([]byte(dest), &p.Destination)
		_ = json.Unmarshal([]byte(waypoints), &p.Waypoints)
		_ = json.Unmarshal([]byte(trajectory), &p.TrajectoryLog)
		_ = json.Unmarshal([]byte(metadata), &p.Metadata)
		if t, err := time.Parse(time.RFC3339Nano, startTime); err == nil {
			p.StartTime = t
		}
		if endTime.Valid {
			if t, err := time.Parse(time.RFC3339Nano, endTime.String); err == nil {
				p.EndTime = t
			}
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
