package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"utmcore/models"
)

// GeofenceRepository persists Geofence rows.
type GeofenceRepository struct {
	db *sql.DB
}

// NewGeofenceRepository builds a GeofenceRepository over an opened *sql.DB.
func NewGeofenceRepository(db *sql.DB) *GeofenceRepository {
	return &GeofenceRepository{db: db}
}

// Upsert inserts or replaces the row for g.ID.
func (r *GeofenceRepository) Upsert(ctx context.Context, g *models.Geofence) error {
	if g == nil {
		return errors.New("geofence is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	vertices, err := json.Marshal(g.Vertices)
	if err != nil {
		return err
	}
	var from, to sql.NullString
	if g.EffectiveFrom != nil {
		from = sql.NullString{String: g.EffectiveFrom.Format(time.RFC3339Nano), Valid: true}
	}
	if g.EffectiveTo != nil {
		to = sql.NullString{String: g.EffectiveTo.Format(time.RFC3339Nano), Valid: true}
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO geofences (id, name, type, vertices, lower_altitude_m, upper_altitude_m, active, effective_from, effective_to, updated_at, fingerprint)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, type=excluded.type, vertices=excluded.vertices,
			lower_altitude_m=excluded.lower_altitude_m, upper_altitude_m=excluded.upper_altitude_m,
			active=excluded.active, effective_from=excluded.effective_from, effective_to=excluded.effective_to,
			updated_at=excluded.updated_at, fingerprint=excluded.fingerprint`,
		g.ID, g.Name, string(g.Type), string(vertices), g.LowerAltitudeM, g.UpperAltitudeM,
		boolToInt(g.Active), from, to, g.UpdatedAt.Format(time.RFC3339Nano), g.Fingerprint)
	return err
}

// Delete removes the geofence row.
func (r *GeofenceRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM geofences WHERE id = ?`, id)
	return err
}

// DeleteAll clears the table; used only by AdminReset.
func (r *GeofenceRepository) DeleteAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM geofences`)
	return err
}

// LoadAll reads every geofence row, used to warm the store at startup.
func (r *GeofenceRepository) LoadAll(ctx context.Context) ([]*models.Geofence, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, vertices, lower_altitude_m, upper_altitude_m, active, effective_from, effective_to, updated_at, fingerprint
		FROM geofences`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Geofence
	for rows.Next() {
		var g models.Geofence
		var gtype, vertices, updatedAt string
		var active int
		var from, to sql.NullString
		if err := rows.Scan(&g.ID, &g.Name, &gtype, &vertices, &g.LowerAltitudeM, &g.UpperAltitudeM,
			&active, &from, &to, &updatedAt, &g.Fingerprint); err != nil {
			return nil, err
		}
		g.Type = models.GeofenceType(gtype)
		g.Active = active != 0
		_ = json.Unmarshal([]byte(vertices), &g.Vertices)
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			g.UpdatedAt = t
		}
		if from.Valid {
			if t, err := time.Parse(time.RFC3339Nano, from.String); err == nil {
				g.EffectiveFrom = &t
			}
		}
		if to.Valid {
			if t, err := time.Parse(time.RFC3339Nano, to.String); err == nil {
				g.EffectiveTo = &t
			}
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
