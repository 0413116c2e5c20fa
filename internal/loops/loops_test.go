package loops

import (
	"context"
	"testing"
	"time"

	"utmcore/internal/clock"
	"utmcore/internal/conflict"
	"utmcore/internal/config"
	"utmcore/internal/logging"
	"utmcore/internal/resolution"
	"utmcore/internal/store"
	"utmcore/models"
)

func testRunner(t *testing.T) (*Runner, *store.Store, *clock.Fixed) {
	t.Helper()
	c := clock.NewFixed(time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC))
	limits := config.LimitsConfig{
		MinHorizontalSeparationM: 50,
		MinVerticalSeparationM:   15,
		Lookahead:                20 * time.Second,
		SampleInterval:           1 * time.Second,
		DroneTimeout:             10 * time.Second,
		MinAltitudeM:             0,
		MaxAltitudeM:             120,
		MaxSpeedMPS:              25,
		MaxTelemetryAge:          10 * time.Second,
		MaxTelemetryFuture:       2 * time.Second,
		CommandCooldown:          5 * time.Second,
		RegistrationRatePerMin:   1000,
	}
	s := store.New(c, logging.New(nil), limits, nil)
	detector := conflict.New(conflict.Limits{
		MinHorizontalSeparationM: limits.MinHorizontalSeparationM,
		MinVerticalSeparationM:   limits.MinVerticalSeparationM,
		Lookahead:                limits.Lookahead,
		SampleInterval:           limits.SampleInterval,
	})
	resolver := resolution.New(resolution.Limits{
		MinHorizontalSeparationM: limits.MinHorizontalSeparationM,
		MinVerticalSeparationM:   limits.MinVerticalSeparationM,
		MinAltitudeM:             limits.MinAltitudeM,
		MaxAltitudeM:             limits.MaxAltitudeM,
		Lookahead:                limits.Lookahead,
		Cooldown:                 limits.CommandCooldown,
	})
	r := New(s, detector, resolver, logging.New(nil), c, Config{
		ConflictTick:    250 * time.Millisecond,
		SweepTick:       time.Second,
		DroneTimeout:    limits.DroneTimeout,
		CommandLifetime: 10 * time.Second,
		Cooldown:        limits.CommandCooldown,
	})
	return r, s, c
}

func registerAt(t *testing.T, s *store.Store, c *clock.Fixed, id string, lat, lon, alt, velE, velN float64, priority int) {
	t.Helper()
	ctx := context.Background()
	_, tok, err := s.Register(ctx, id, "owner")
	if err != nil {
		t.Fatalf("Register(%s): %v", id, err)
	}
	if err := s.IngestTelemetry(ctx, tok, models.Telemetry{
		DroneID: id, Lat: lat, Lon: lon, Alt: alt,
		HasVel: true, VelE: velE, VelN: velN,
		Timestamp: c.Now(),
	}); err != nil {
		t.Fatalf("IngestTelemetry(%s): %v", id, err)
	}
	if err := s.SetPriority(ctx, id, priority); err != nil {
		t.Fatalf("SetPriority(%s): %v", id, err)
	}
}

func TestRunConflictTickIssuesCommandForConvergingDrones(t *testing.T) {
	r, s, c := testRunner(t)
	ctx := context.Background()

	registerAt(t, s, c, "drone-a", 33.6846, -117.8265, 50, 10, 0, 2)
	registerAt(t, s, c, "drone-b", 33.6846, -117.8247, 50, -10, 0, 1)

	r.runConflictTick(ctx)

	cmds := s.ListCommandsForDrone("drone-b")
	if len(cmds) == 0 {
		t.Fatalf("expected the lower-priority drone to receive a resolution command")
	}
}

func TestRunTimeoutSweepMarksStaleDroneLost(t *testing.T) {
	r, s, c := testRunner(t)
	ctx := context.Background()
	registerAt(t, s, c, "drone-a", 33.68, -117.82, 50, 0, 0, 1)

	c.Advance(11 * time.Second)
	r.runTimeoutSweep(ctx)

	d := s.GetDrone("drone-a")
	if d.Status != models.DroneStatusLost {
		t.Fatalf("expected drone to be marked Lost after timeout, got %s", d.Status)
	}

	cmds := s.ListCommandsForDrone("drone-a")
	found := false
	for _, cmd := range cmds {
		if cmd.Kind == models.CommandHold {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected fail-safe hold command on the Lost transition, got %+v", cmds)
	}
}

func TestRunTimeoutSweepEscalatesLostDroneToLand(t *testing.T) {
	r, s, c := testRunner(t)
	ctx := context.Background()
	registerAt(t, s, c, "drone-a", 33.68, -117.82, 50, 0, 0, 1)

	c.Advance(11 * time.Second)
	r.runTimeoutSweep(ctx)
	c.Advance(15 * time.Second)
	r.runTimeoutSweep(ctx)

	cmds := s.ListCommandsForDrone("drone-a")
	found := false
	for _, cmd := range cmds {
		if cmd.Kind == models.CommandLand {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected fail-safe land command after prolonged loss, got %+v", cmds)
	}
}
