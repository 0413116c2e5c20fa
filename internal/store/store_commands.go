package store

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"utmcore/internal/apierr"
	"utmcore/models"
)

const subscriberBufferSize = 64

// EnqueueCommand issues a new command for a drone, persists it, and
// delivers it to any active push subscriber (dropping the oldest
// delivered-but-unacked entry on overflow, per the backpressure policy).
func (s *Store) EnqueueCommand(ctx context.Context, c *models.Command) (*models.Command, error) {
	if c == nil {
		return nil, apierr.New(apierr.InvalidInput, "command is nil")
	}
	s.dronesMu.RLock()
	_, droneKnown := s.drones[c.DroneID]
	s.dronesMu.RUnlock()
	if !droneKnown {
		return nil, apierr.New(apierr.NotFound, string(models.RejectUnknownDrone))
	}
	if c.CommandID == "" {
		c.CommandID = uuid.NewString()
	}
	if c.IssuedAt.IsZero() {
		c.IssuedAt = s.clock.Now()
	}
	if !c.ExpiresAt.After(c.IssuedAt) {
		return nil, apierr.New(apierr.InvalidInput, "expires_at must be after issued_at")
	}
	c.State = models.CommandIssued

	cp := c.Clone()
	s.commandsMu.Lock()
	s.commands[c.CommandID] = cp
	s.commandsMu.Unlock()

	snapshot := cp.Clone()
	if err := s.retryWrite(ctx, func(ctx context.Context) error {
		if s.persist == nil {
			return nil
		}
		return s.persist.UpsertCommand(ctx, snapshot)
	}); err != nil {
		s.commandsMu.Lock()
		delete(s.commands, c.CommandID)
		s.commandsMu.Unlock()
		return nil, err
	}

	s.publish(snapshot)
	return snapshot, nil
}

// publish delivers a command to the drone's push subscriber channel, if
// one is registered, dropping the oldest delivered-but-unacked entry on
// overflow.
func (s *Store) publish(c *models.Command) {
	s.subsMu.Lock()
	ch, ok := s.subs[c.DroneID]
	s.subsMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- c:
	default:
		select {
		case dropped := <-ch:
			s.logger.Warn(context.Background(), "dropping oldest queued command on overflow",
				"drone_id", c.DroneID, "dropped_command_id", dropped.CommandID)
		default:
		}
		select {
		case ch <- c:
		default:
		}
	}
}

// Subscribe registers a push-delivery channel for a drone's commands,
// replaying any still-unexpired Delivered commands for reconnect. The
// returned unsubscribe func must be called when the caller's stream ends.
func (s *Store) Subscribe(droneID string) (<-chan *models.Command, func()) {
	ch := make(chan *models.Command, subscriberBufferSize)
	s.subsMu.Lock()
	s.subs[droneID] = ch
	s.subsMu.Unlock()

	for _, c := range s.commandsForDrone(droneID) {
		if c.State == models.CommandDelivered && s.clock.Now().Before(c.ExpiresAt) {
			select {
			case ch <- c:
			default:
			}
		}
	}

	return ch, func() {
		s.subsMu.Lock()
		if cur, ok := s.subs[droneID]; ok && cur == ch {
			delete(s.subs, droneID)
			close(ch)
		}
		s.subsMu.Unlock()
	}
}

// PopNextCommand returns the oldest non-expired, non-acked command for a
// drone and marks it Delivered. It is idempotent for repeated calls before
// the command is acked: once Delivered, the same command is returned again
// until acked or expired.
func (s *Store) PopNextCommand(ctx context.Context, droneID string) (*models.Command, error) {
	now := s.clock.Now()

	s.commandsMu.Lock()
	var candidate *models.Command
	for _, c := range s.commands {
		if c.DroneID != droneID {
			continue
		}
		if c.State != models.CommandIssued && c.State != models.CommandDelivered {
			continue
		}
		if !now.Before(c.ExpiresAt) {
			continue
		}
		if candidate == nil || c.IssuedAt.Before(candidate.IssuedAt) {
			candidate = c
		}
	}
	if candidate == nil {
		s.commandsMu.Unlock()
		return nil, nil
	}
	prev := candidate
	snapshot := candidate.Clone()
	if candidate.State == models.CommandIssued {
		updated := candidate.Clone()
		updated.State = models.CommandDelivered
		t := now
		updated.DeliveredAt = &t
		s.commands[updated.CommandID] = updated
		snapshot = updated.Clone()
	}
	s.commandsMu.Unlock()

	if err := s.retryWrite(ctx, func(ctx context.Context) error {
		if s.persist == nil {
			return nil
		}
		return s.persist.UpsertCommand(ctx, snapshot)
	}); err != nil {
		if prev.State == models.CommandIssued {
			s.commandsMu.Lock()
			s.commands[prev.CommandID] = prev
			s.commandsMu.Unlock()
		}
		return nil, err
	}
	return snapshot, nil
}

// AckCommand marks a command acknowledged and applies the drone's resulting
// status transition.
func (s *Store) AckCommand(ctx context.Context, commandID string) error {
	s.commandsMu.Lock()
	prev, ok := s.commands[commandID]
	if !ok {
		s.commandsMu.Unlock()
		return apierr.New(apierr.NotFound, "unknown command")
	}
	if prev.IsTerminal() {
		s.commandsMu.Unlock()
		return apierr.New(apierr.Conflict, "command already terminal")
	}
	now := s.clock.Now()
	updated := prev.Clone()
	updated.State = models.CommandAcked
	updated.AckedAt = &now
	s.commands[commandID] = updated
	snapshot := updated.Clone()
	droneID := updated.DroneID
	kind := updated.Kind
	waypoints := updated.Waypoints
	targetAlt := updated.TargetAltM
	s.commandsMu.Unlock()

	if err := s.retryWrite(ctx, func(ctx context.Context) error {
		if s.persist == nil {
			return nil
		}
		return s.persist.UpsertCommand(ctx, snapshot)
	}); err != nil {
		s.commandsMu.Lock()
		s.commands[commandID] = prev
		s.commandsMu.Unlock()
		return err
	}

	var newStatus models.DroneStatus
	var newWaypoints []models.Waypoint
	switch kind {
	case models.CommandReroute:
		newStatus = models.DroneStatusRerouting
		newWaypoints = waypoints
	case models.CommandHold:
		newStatus = models.DroneStatusHolding
	case models.CommandResume:
		newStatus = models.DroneStatusActive
	case models.CommandAltitudeChange:
		newStatus = models.DroneStatusRerouting
		newWaypoints = []models.Waypoint{{Alt: targetAlt}}
	case models.CommandLand:
		newStatus = models.DroneStatusLanded
	default:
		return nil
	}
	return s.SetDroneStatus(ctx, droneID, newStatus, newWaypoints)
}

// commandsForDrone returns cloned, time-ordered commands for a single
// drone.
func (s *Store) commandsForDrone(droneID string) []*models.Command {
	s.commandsMu.RLock()
	defer s.commandsMu.RUnlock()
	var out []*models.Command
	for _, c := range s.commands {
		if c.DroneID == droneID {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out
}

// ListCommandsForDrone is the exported, read-only variant of
// commandsForDrone used by handlers.
func (s *Store) ListCommandsForDrone(droneID string) []*models.Command {
	return s.commandsForDrone(droneID)
}

// HasActiveCommandOfKind reports whether droneID has a non-terminal command
// of the given kind, or one acked within the cooldown window ending at now.
// Used by the resolution engine's duplicate/cooldown suppression.
func (s *Store) HasActiveCommandOfKind(droneID string, kind models.CommandKind, now time.Time, cooldown time.Duration) bool {
	for _, c := range s.commandsForDrone(droneID) {
		if c.Kind != kind {
			continue
		}
		if c.State == models.CommandIssued || c.State == models.CommandDelivered {
			return true
		}
		if c.State == models.CommandAcked && c.AckedAt != nil && now.Sub(*c.AckedAt) < cooldown {
			return true
		}
	}
	return false
}

// ExpireOverdueCommands marks every Issued/Delivered command whose
// ExpiresAt has passed as Expired, reverting the drone's status when its
// most recent directive lapsed unacknowledged. Called by the command-expiry
// sweeper once per second.
func (s *Store) ExpireOverdueCommands(ctx context.Context) (int, error) {
	now := s.clock.Now()

	s.commandsMu.Lock()
	var expired []*models.Command
	for _, c := range s.commands {
		if (c.State == models.CommandIssued || c.State == models.CommandDelivered) && !now.Before(c.ExpiresAt) {
			c.State = models.CommandExpired
			expired = append(expired, c.Clone())
		}
	}
	s.commandsMu.Unlock()

	for _, c := range expired {
		if err := s.retryWrite(ctx, func(ctx context.Context) error {
			if s.persist == nil {
				return nil
			}
			return s.persist.UpsertCommand(ctx, c)
		}); err != nil {
			s.logger.Error(ctx, "failed to persist expired command", "command_id", c.CommandID, "error", err)
			continue
		}
		if c.Kind != models.CommandLand {
			cmds := s.commandsForDrone(c.DroneID)
			if len(cmds) > 0 && cmds[len(cmds)-1].CommandID != c.CommandID {
				continue // a newer directive supersedes this one
			}
			d := s.GetDrone(c.DroneID)
			if d != nil && d.Status == models.DroneStatusRerouting {
				_ = s.SetDroneStatus(ctx, c.DroneID, models.DroneStatusActive, nil)
			}
		}
	}
	return len(expired), nil
}
