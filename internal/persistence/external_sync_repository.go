package persistence

import (
	"context"
	"database/sql"
	"time"

	"utmcore/models"
)

// ExternalSyncRepository persists the idempotency mapping used by the
// optional external UTM sync loops.
type ExternalSyncRepository struct {
	db *sql.DB
}

// NewExternalSyncRepository builds an ExternalSyncRepository over an opened
// *sql.DB.
func NewExternalSyncRepository(db *sql.DB) *ExternalSyncRepository {
	return &ExternalSyncRepository{db: db}
}

// Upsert records or refreshes a sync mapping.
func (r *ExternalSyncRepository) Upsert(ctx context.Context, m *models.ExternalSyncMapping) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO external_sync_map (local_id, local_kind, external_id, fingerprint, expires_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT(local_id, local_kind) DO UPDATE SET
			external_id=excluded.external_id, fingerprint=excluded.fingerprint, expires_at=excluded.expires_at`,
		m.LocalID, m.LocalKind, m.ExternalID, m.Fingerprint, m.ExpiresAt.Format(time.RFC3339Nano))
	return err
}

// Get looks up a mapping by local id and kind; returns nil, nil if absent.
func (r *ExternalSyncRepository) Get(ctx context.Context, localID, localKind string) (*models.ExternalSyncMapping, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	var m models.ExternalSyncMapping
	var expiresAt string
	err := r.db.QueryRowContext(ctx, `SELECT local_id, local_kind, external_id, fingerprint, expires_at FROM external_sync_map WHERE local_id = ? AND local_kind = ?`,
		localID, localKind).Scan(&m.LocalID, &m.LocalKind, &m.ExternalID, &m.Fingerprint, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339Nano, expiresAt); err == nil {
		m.ExpiresAt = t
	}
	return &m, nil
}

// GetByExternalID looks up a mapping by the upstream's external id and
// kind, used by the sync loops to decide whether an ATC-owned entity has
// already been mirrored locally.
func (r *ExternalSyncRepository) GetByExternalID(ctx context.Context, localKind, externalID string) (*models.ExternalSyncMapping, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	var m models.ExternalSyncMapping
	var expiresAt string
	err := r.db.QueryRowContext(ctx, `SELECT local_id, local_kind, external_id, fingerprint, expires_at FROM external_sync_map WHERE local_kind = ? AND external_id = ?`,
		localKind, externalID).Scan(&m.LocalID, &m.LocalKind, &m.ExternalID, &m.Fingerprint, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339Nano, expiresAt); err == nil {
		m.ExpiresAt = t
	}
	return &m, nil
}
