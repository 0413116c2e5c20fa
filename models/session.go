package models

import "time"

// SessionToken is the opaque credential a drone presents on every
// drone-facing request after registration. It is never a JWT — it carries no
// claims, only an identity binding, and is looked up by exact match.
type SessionToken struct {
	Token     string    `json:"-" db:"token"`
	DroneID   string    `json:"drone_id" db:"drone_id"`
	IssuedAt  time.Time `json:"issued_at" db:"issued_at"`
}

// ExternalSyncMapping makes re-ingestion from an external UTM idempotent:
// the sync loops look up by (local_kind, external_id), and the geofence mirror
// also compares the stored fingerprint, before creating a duplicate local
// entity.
type ExternalSyncMapping struct {
	LocalID     string    `json:"local_id" db:"local_id"`
	LocalKind   string    `json:"local_kind" db:"local_kind"`
	ExternalID  string    `json:"external_id" db:"external_id"`
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
}
