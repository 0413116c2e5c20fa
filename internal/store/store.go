// Package store implements the process-wide world model: the authoritative,
// concurrency-safe container for drones, geofences, flight plans, commands,
// and session tokens. It is sharded by entity kind (one guarded map per
// kind, grounded on the pack's statestore.StateStore shape) with an
// additional per-drone lock so unrelated drones never contend on
// registration or telemetry ingestion — the same fine-grained-locking shape the
// teacher's repository-per-entity split gives at the SQL layer, carried up
// into memory.
package store

import (
	"sync"
	"sync/atomic"

	"utmcore/internal/clock"
	"utmcore/internal/config"
	"utmcore/internal/logging"
	"utmcore/models"
)

// Store is the single process-wide world model. Every exported method takes
// only the locks it needs, copies what the caller requires, and releases
// before returning. The entity-map locks are never held across an I/O call
// or channel operation; Register and IngestTelemetry do hold the per-drone
// lock (droneLock) across that drone's persistence write.
type Store struct {
	clock   clock.Clock
	logger  logging.Logger
	limits  config.LimitsConfig
	persist Persister

	degraded atomic.Bool

	dronesMu sync.RWMutex
	drones   map[string]*models.DroneState

	droneLocksMu sync.Mutex
	droneLocks   map[string]*sync.Mutex

	geofencesMu sync.RWMutex
	geofences   map[string]*models.Geofence

	plansMu sync.RWMutex
	plans   map[string]*models.FlightPlan

	commandsMu sync.RWMutex
	commands   map[string]*models.Command

	subsMu sync.Mutex
	subs   map[string]chan *models.Command // drone_id -> bounded push channel, capacity 64

	tokensMu     sync.RWMutex
	tokensByID   map[string]*models.SessionToken // token -> binding
	tokenByDrone map[string]string               // drone_id -> current token

	rateMu  sync.Mutex
	buckets map[string]*tokenBucket
}

// New builds an empty Store. Pass a nil Persister for a purely in-memory
// store (tests); cmd/utmcore wires a real one and calls LoadFromPersistence
// afterward to warm it from disk.
func New(c clock.Clock, logger logging.Logger, limits config.LimitsConfig, persist Persister) *Store {
	if c == nil {
		c = clock.Real{}
	}
	return &Store{
		clock:        c,
		logger:       logger,
		limits:       limits,
		persist:      persist,
		drones:       make(map[string]*models.DroneState),
		droneLocks:   make(map[string]*sync.Mutex),
		geofences:    make(map[string]*models.Geofence),
		plans:        make(map[string]*models.FlightPlan),
		commands:     make(map[string]*models.Command),
		subs:         make(map[string]chan *models.Command),
		tokensByID:   make(map[string]*models.SessionToken),
		tokenByDrone: make(map[string]string),
		buckets:      make(map[string]*tokenBucket),
	}
}

// droneLock returns the per-drone mutex, creating it on first use. Holding
// this serializes registration and telemetry ingestion for a single drone
// without blocking any other drone.
func (s *Store) droneLock(droneID string) *sync.Mutex {
	s.droneLocksMu.Lock()
	defer s.droneLocksMu.Unlock()
	m, ok := s.droneLocks[droneID]
	if !ok {
		m = &sync.Mutex{}
		s.droneLocks[droneID] = m
	}
	return m
}
