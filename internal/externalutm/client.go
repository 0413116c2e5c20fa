// Package externalutm implements the optional sync against an upstream,
// ATC-owned UTM service: pushing local telemetry as Remote-ID, mirroring
// ATC-owned geofences, and ingesting external flight declarations. The
// client is a small interface so a future SDK-backed implementation can
// replace the hand-rolled HTTP JSON client without touching the sync
// loops.
package externalutm

import (
	"context"

	"utmcore/models"
)

// RemoteIDReport is the telemetry payload pushed upstream for a single
// drone, matching the Remote-ID broadcast shape (position + velocity +
// operator identity) rather than the full internal DroneState.
type RemoteIDReport struct {
	DroneID    string  `json:"drone_id"`
	OwnerID    string  `json:"owner_id"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Alt        float64 `json:"alt"`
	SpeedMPS   float64 `json:"speed_mps"`
	HeadingDeg float64 `json:"heading_deg"`
}

// ExternalGeofence is an ATC-owned geofence as returned by the upstream
// mirror endpoint.
type ExternalGeofence struct {
	ExternalID string            `json:"external_id"`
	Geofence   *models.Geofence  `json:"geofence"`
}

// ExternalFlightDeclaration is an upstream-submitted flight intent to be
// ingested locally as a Pending flight plan.
type ExternalFlightDeclaration struct {
	ExternalID  string             `json:"external_id"`
	FlightPlan  *models.FlightPlan `json:"flight_plan"`
}

// Client is the pluggable surface the sync loops depend on.
type Client interface {
	PushTelemetry(ctx context.Context, reports []RemoteIDReport) error
	PullGeofences(ctx context.Context) ([]ExternalGeofence, error)
	PullFlightDeclarations(ctx context.Context) ([]ExternalFlightDeclaration, error)
}
