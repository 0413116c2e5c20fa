package persistence

import (
	"context"
	"database/sql"
	"time"

	"utmcore/models"
)

// TokenRepository persists SessionToken rows so drone sessions survive a
// restart.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository builds a TokenRepository over an opened *sql.DB.
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Put persists a token binding, replacing any prior token for the same
// drone (registration rotates the token).
func (r *TokenRepository) Put(ctx context.Context, t *models.SessionToken) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM drone_session_tokens WHERE drone_id = ?`, t.DroneID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO drone_session_tokens (token, drone_id, issued_at) VALUES (?,?,?)`,
		t.Token, t.DroneID, t.IssuedAt.Format(time.RFC3339Nano)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// DeleteAll clears the table; used only by AdminReset.
func (r *TokenRepository) DeleteAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM drone_session_tokens`)
	return err
}

// LoadAll reads every token row, used to warm the store at startup.
func (r *TokenRepository) LoadAll(ctx context.Context) ([]*models.SessionToken, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT token, drone_id, issued_at FROM drone_session_tokens`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SessionToken
	for rows.Next() {
		var t models.SessionToken
		var issuedAt string
		if err := rows.Scan(&t.Token, &t.DroneID, &issuedAt); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, issuedAt); err == nil {
			t.IssuedAt = ts
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
