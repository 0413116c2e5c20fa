// Package loops runs the periodic background work that keeps the world
// model converging: conflict detection and resolution, the drone-timeout
// sweeper, and the command-expiry sweeper. Each loop is a ticker-driven
// goroutine stopped cooperatively via context cancellation, the same shape
// as the teacher pack's checkpoint loop.
package loops

import (
	"context"
	"sync"
	"time"

	"utmcore/internal/clock"
	"utmcore/internal/conflict"
	"utmcore/internal/logging"
	"utmcore/internal/resolution"
	"utmcore/internal/store"
	"utmcore/models"
)

// Runner owns the set of periodic loops and their lifetime.
type Runner struct {
	store    *store.Store
	detector *conflict.Detector
	resolver *resolution.Engine
	logger   logging.Logger
	clock    clock.Clock

	droneTimeout    time.Duration
	conflictTick    time.Duration
	sweepTick       time.Duration
	commandLifetime time.Duration
	cooldown        time.Duration

	wg sync.WaitGroup
}

// Config bundles the tick intervals a Runner needs.
type Config struct {
	ConflictTick    time.Duration
	SweepTick       time.Duration
	DroneTimeout    time.Duration
	CommandLifetime time.Duration
	Cooldown        time.Duration
}

// New builds a Runner over an already-populated store. c may be nil, in
// which case clock.Real is used.
func New(s *store.Store, detector *conflict.Detector, resolver *resolution.Engine, logger logging.Logger, c clock.Clock, cfg Config) *Runner {
	sweepTick := cfg.SweepTick
	if sweepTick <= 0 {
		sweepTick = time.Second
	}
	if c == nil {
		c = clock.Real{}
	}
	return &Runner{
		store:           s,
		detector:        detector,
		resolver:        resolver,
		logger:          logger,
		clock:           c,
		droneTimeout:    cfg.DroneTimeout,
		conflictTick:    cfg.ConflictTick,
		sweepTick:       sweepTick,
		commandLifetime: cfg.CommandLifetime,
		cooldown:        cfg.Cooldown,
	}
}

// Start launches every loop in its own goroutine. Cancel ctx to end them,
// then call Stop to wait for them to exit; Start returns immediately.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(3)
	go r.conflictLoop(ctx)
	go r.timeoutSweepLoop(ctx)
	go r.commandExpiryLoop(ctx)
}

// Stop blocks until every loop has observed cancellation and exited.
func (r *Runner) Stop() {
	r.wg.Wait()
}

// conflictLoop runs the CPA detector and resolution engine every
// ConflictTick, issuing at most one command per conflicting pair per tick.
func (r *Runner) conflictLoop(ctx context.Context) {
	defer r.wg.Done()
	interval := r.conflictTick
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runConflictTick(ctx)
		}
	}
}

func (r *Runner) runConflictTick(ctx context.Context) {
	now := r.clock.Now()
	drones := r.store.ListDrones()
	conflicts := r.detector.Detect(drones, now, r.droneTimeout)
	if len(conflicts) == 0 {
		return
	}

	byID := make(map[string]*models.DroneState, len(drones))
	for _, d := range drones {
		byID[d.DroneID] = d
	}
	fences := r.store.ActiveGeofences()

	hasActive := func(droneID string, kind models.CommandKind) bool {
		return r.store.HasActiveCommandOfKind(droneID, kind, now, r.cooldown)
	}

	for _, decision := range r.resolver.Resolve(conflicts, byID, fences, hasActive) {
		cmd := &models.Command{
			DroneID:      decision.DroneID,
			Kind:         decision.Kind,
			Waypoints:    decision.Waypoints,
			HoldDuration: decision.HoldDuration,
			TargetAltM:   decision.TargetAltM,
			IssuedAt:     now,
			ExpiresAt:    now.Add(r.commandLifetime),
		}
		if _, err := r.store.EnqueueCommand(ctx, cmd); err != nil {
			r.logger.Error(ctx, "failed to enqueue resolution command",
				"drone_id", decision.DroneID, "kind", decision.Kind, "error", err)
		} else {
			r.logger.Info(ctx, "issued resolution command",
				"drone_id", decision.DroneID, "kind", decision.Kind)
		}
	}
}

// timeoutSweepLoop escalates drones whose last telemetry predates
// DroneTimeout: Active/Holding/Rerouting become Lost and are issued a
// fail-safe Hold command, and a Lost drone whose last telemetry is older than
// twice the timeout is issued a fail-safe Land command.
func (r *Runner) timeoutSweepLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.sweepTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runTimeoutSweep(ctx)
		}
	}
}

func (r *Runner) runTimeoutSweep(ctx context.Context) {
	now := r.clock.Now()
	for _, d := range r.store.ListDrones() {
		age := now.Sub(d.LastUpdate)
		switch {
		case d.Status == models.DroneStatusLost && age > 2*r.droneTimeout:
			if r.store.HasActiveCommandOfKind(d.DroneID, models.CommandLand, now, r.cooldown) {
				continue
			}
			_, err := r.store.EnqueueCommand(ctx, &models.Command{
				DroneID: d.DroneID, Kind: models.CommandLand,
				IssuedAt: now, ExpiresAt: now.Add(r.commandLifetime),
			})
			if err != nil {
				r.logger.Error(ctx, "failed to issue fail-safe land command", "drone_id", d.DroneID, "error", err)
			}
		case age > r.droneTimeout && isLive(d.Status):
			if err := r.store.SetDroneStatus(ctx, d.DroneID, models.DroneStatusLost, nil); err != nil {
				r.logger.Error(ctx, "failed to mark drone lost", "drone_id", d.DroneID, "error", err)
				continue
			}
			r.logger.Warn(ctx, "drone timed out", "drone_id", d.DroneID, "age", age)
			if r.store.HasActiveCommandOfKind(d.DroneID, models.CommandHold, now, r.cooldown) {
				continue
			}
			if _, err := r.store.EnqueueCommand(ctx, &models.Command{
				DroneID: d.DroneID, Kind: models.CommandHold,
				HoldDuration: 2 * r.droneTimeout,
				IssuedAt:     now, ExpiresAt: now.Add(r.commandLifetime),
			}); err != nil {
				r.logger.Error(ctx, "failed to issue fail-safe hold command", "drone_id", d.DroneID, "error", err)
			}
		}
	}
}

func isLive(s models.DroneStatus) bool {
	return s == models.DroneStatusActive || s == models.DroneStatusHolding || s == models.DroneStatusRerouting
}

// commandExpiryLoop wraps store.ExpireOverdueCommands on the same cadence
// as the timeout sweeper.
func (r *Runner) commandExpiryLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.sweepTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.store.ExpireOverdueCommands(ctx)
			if err != nil {
				r.logger.Error(ctx, "command expiry sweep failed", "error", err)
			} else if n > 0 {
				r.logger.Info(ctx, "expired overdue commands", "count", n)
			}
		}
	}
}
