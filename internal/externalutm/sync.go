package externalutm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"
	"time"

	"utmcore/internal/logging"
	"utmcore/internal/store"
	"utmcore/models"
)

// SyncMapper is the subset of persistence.ExternalSyncRepository the sync
// loops need to make re-ingestion idempotent: looking up and recording the
// (local_id,local_kind) <-> external_id mapping.
type SyncMapper interface {
	GetByExternalID(ctx context.Context, localKind, externalID string) (*models.ExternalSyncMapping, error)
	Upsert(ctx context.Context, m *models.ExternalSyncMapping) error
}

// Syncer runs the three external UTM sync passes: telemetry push, geofence
// mirror, flight-declaration ingest. They run one after another from a single
// loop, so cancelling the context given to Run stops all three together. A
// failure in one pass only sets Degraded for the sync subsystem —
// it never touches the main store's degraded flag, so a flaky upstream
// cannot make the core refuse local writes.
type Syncer struct {
	client Client
	store  *store.Store
	mapper SyncMapper
	logger logging.Logger

	degraded atomic.Bool
}

// NewSyncer builds a Syncer. mapper may be nil; the passes then keep no record
// of what they already mirrored, so every pass stores each pulled geofence
// again under a fresh local id and submits each pulled flight declaration
// again.
func NewSyncer(client Client, s *store.Store, mapper SyncMapper, logger logging.Logger) *Syncer {
	return &Syncer{client: client, store: s, mapper: mapper, logger: logger}
}

// Degraded reports whether the most recent sync attempt of any kind
// failed.
func (sy *Syncer) Degraded() bool { return sy.degraded.Load() }

// Run performs the three passes in order (telemetry push, geofence mirror,
// flight-declaration ingest) on every tick of one ticker at the given
// interval, and blocks until ctx is cancelled.
func (sy *Syncer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sy.pushTelemetry(ctx)
			sy.mirrorGeofences(ctx)
			sy.ingestFlightDeclarations(ctx)
		}
	}
}

func (sy *Syncer) pushTelemetry(ctx context.Context) {
	drones := sy.store.ListDrones()
	reports := make([]RemoteIDReport, 0, len(drones))
	for _, d := range drones {
		reports = append(reports, RemoteIDReport{
			DroneID: d.DroneID, OwnerID: d.OwnerID,
			Lat: d.Lat, Lon: d.Lon, Alt: d.Alt,
			SpeedMPS: d.SpeedMPS, HeadingDeg: d.HeadingDeg,
		})
	}
	if len(reports) == 0 {
		return
	}
	if err := sy.client.PushTelemetry(ctx, reports); err != nil {
		sy.degraded.Store(true)
		sy.logger.Warn(ctx, "external utm telemetry push failed", "error", err)
		return
	}
	sy.degraded.Store(false)
}

func (sy *Syncer) mirrorGeofences(ctx context.Context) {
	fences, err := sy.client.PullGeofences(ctx)
	if err != nil {
		sy.degraded.Store(true)
		sy.logger.Warn(ctx, "external utm geofence pull failed", "error", err)
		return
	}
	for _, ext := range fences {
		if ext.Geofence == nil {
			continue
		}
		fp := fingerprint(ext.Geofence)
		if sy.mapper != nil {
			existing, err := sy.mapper.GetByExternalID(ctx, "geofence", ext.ExternalID)
			if err == nil && existing != nil && existing.Fingerprint == fp {
				continue // already mirrored, unchanged
			}
		}
		g := ext.Geofence.Clone()
		g.ID = "" // let the store mint a fresh local id; identity lives in the mapping
		out, err := sy.store.UpsertGeofence(ctx, g)
		if err != nil {
			sy.logger.Warn(ctx, "failed to mirror external geofence", "external_id", ext.ExternalID, "error", err)
			continue
		}
		if sy.mapper != nil {
			_ = sy.mapper.Upsert(ctx, &models.ExternalSyncMapping{
				LocalID: out.ID, LocalKind: "geofence", ExternalID: ext.ExternalID,
				Fingerprint: fp, ExpiresAt: time.Now().Add(24 * time.Hour),
			})
		}
	}
	sy.degraded.Store(false)
}

func (sy *Syncer) ingestFlightDeclarations(ctx context.Context) {
	declarations, err := sy.client.PullFlightDeclarations(ctx)
	if err != nil {
		sy.degraded.Store(true)
		sy.logger.Warn(ctx, "external utm flight declaration pull failed", "error", err)
		return
	}
	for _, decl := range declarations {
		if decl.FlightPlan == nil {
			continue
		}
		if sy.mapper != nil {
			existing, err := sy.mapper.GetByExternalID(ctx, "flight_plan", decl.ExternalID)
			if err == nil && existing != nil {
				continue // already ingested
			}
		}
		p := decl.FlightPlan
		p.FlightID = ""
		p.Status = models.PlanStatusPending
		out, err := sy.store.SubmitFlightPlan(ctx, p)
		if err != nil {
			sy.logger.Warn(ctx, "failed to ingest external flight declaration", "external_id", decl.ExternalID, "error", err)
			continue
		}
		if sy.mapper != nil {
			_ = sy.mapper.Upsert(ctx, &models.ExternalSyncMapping{
				LocalID: out.FlightID, LocalKind: "flight_plan", ExternalID: decl.ExternalID,
				Fingerprint: fingerprint(p), ExpiresAt: time.Now().Add(24 * time.Hour),
			})
		}
	}
	sy.degraded.Store(false)
}

func fingerprint(v interface{}) string {
	b, _ := json.Marshal(v)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
