package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"utmcore/models"
)

// CommandRepository persists Command rows. The kind-specific fields are
// folded into a single JSON "payload" column with a required "type"
// discriminator, per the design note on duck-typed command payloads: this
// keeps the schema stable as new command kinds are added.
type CommandRepository struct {
	db *sql.DB
}

// NewCommandRepository builds a CommandRepository over an opened *sql.DB.
func NewCommandRepository(db *sql.DB) *CommandRepository {
	return &CommandRepository{db: db}
}

type commandPayload struct {
	Type         string           `json:"type"`
	Waypoints    []models.Waypoint `json:"waypoints,omitempty"`
	HoldDuration time.Duration    `json:"hold_duration_ns,omitempty"`
	TargetAltM   float64          `json:"target_alt_m,omitempty"`
}

// Upsert inserts or replaces the row for c.CommandID.
func (r *CommandRepository) Upsert(ctx context.Context, c *models.Command) error {
	if c == nil {
		return errors.New("command is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	payload, err := json.Marshal(commandPayload{
		Type:         string(c.Kind),
		Waypoints:    c.Waypoints,
		HoldDuration: c.HoldDuration,
		TargetAltM:   c.TargetAltM,
	})
	if err != nil {
		return err
	}
	var delivered, acked sql.NullString
	if c.DeliveredAt != nil {
		delivered = sql.NullString{String: c.DeliveredAt.Format(time.RFC3339Nano), Valid: true}
	}
	if c.AckedAt != nil {
		acked = sql.NullString{String: c.AckedAt.Format(time.RFC3339Nano), Valid: true}
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO commands (command_id, drone_id, payload, state, issued_at, expires_at, delivered_at, acked_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(command_id) DO UPDATE SET
			drone_id=excluded.drone_id, payload=excluded.payload, state=excluded.state,
			issued_at=excluded.issued_at, expires_at=excluded.expires_at,
			delivered_at=excluded.delivered_at, acked_at=excluded.acked_at`,
		c.CommandID, c.DroneID, string(payload), string(c.State),
		c.IssuedAt.Format(time.RFC3339Nano), c.ExpiresAt.Format(time.RFC3339Nano), delivered, acked)
	return err
}

// DeleteAll clears the table; used only by AdminReset.
func (r *CommandRepository) DeleteAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM commands`)
	return err
}

// LoadAll reads every command row, used to warm the store at startup.
// Unknown Kind discriminators are mapped to an Expired command immediately,
// per the design note on forward-compatible persistence, rather than
// aborting startup.
func (r *CommandRepository) LoadAll(ctx context.Context) ([]*models.Command, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT command_id, drone_id, payload, state, issued_at, expires_at, delivered_at, acked_at
		FROM commands`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Command
	for rows.Next() {
		var c models.Command
		var payloadRaw, state, issuedAt, expiresAt string
		var delivered, acked sql.NullString
		if err := rows.Scan(&c.CommandID, &c.DroneID, &payloadRaw, &state, &issuedAt, &expiresAt, &delivered, &acked); err != nil {
			return nil, err
		}
		c.State = models.CommandState(state)
		if t, err := time.Parse(time.RFC3339Nano, issuedAt); err == nil {
			c.IssuedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, expiresAt); err == nil {
			c.ExpiresAt = t
		}
		if delivered.Valid {
			if t, err := time.Parse(time.RFC3339Nano, delivered.String); err == nil {
				c.DeliveredAt = &t
			}
		}
		if acked.Valid {
			if t, err := time.Parse(time.RFC3339Nano, acked.String); err == nil {
				c.AckedAt = &t
			}
		}

		var payload commandPayload
		if err := json.Unmarshal([]byte(payloadRaw), &payload); err != nil {
			c.State = models.CommandExpired
			out = append(out, &c)
			continue
		}
		switch models.CommandKind(payload.Type) {
		case models.CommandReroute, models.CommandHold, models.CommandResume, models.CommandAltitudeChange, models.CommandLand:
			c.Kind = models.CommandKind(payload.Type)
		default:
			c.Kind = models.CommandKind(payload.Type)
			c.State = models.CommandExpired
		}
		c.Waypoints = payload.Waypoints
		c.HoldDuration = payload.HoldDuration
		c.TargetAltM = payload.TargetAltM
		out = append(out, &c)
	}
	return out, rows.Err()
}
