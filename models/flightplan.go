package models

import "time"

// FlightPlanStatus is the lifecycle state of a submitted flight plan.
type FlightPlanStatus string

const (
	PlanStatusPending   FlightPlanStatus = "pending"
	PlanStatusApproved  FlightPlanStatus = "approved"
	PlanStatusRejected  FlightPlanStatus = "rejected"
	PlanStatusActive    FlightPlanStatus = "active"
	PlanStatusCompleted FlightPlanStatus = "completed"
	PlanStatusCancelled FlightPlanStatus = "cancelled"
)

// TrajectorySample is a single time-stamped 4D point in a flight plan's
// logged trajectory.
type TrajectorySample struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Alt       float64   `json:"alt"`
	Timestamp time.Time `json:"timestamp"`
}

// FlightPlan is a submitted route for a single drone.
type FlightPlan struct {
	FlightID      string            `json:"flight_id" db:"flight_id"`
	DroneID       string            `json:"drone_id" db:"drone_id"`
	OwnerID       string            `json:"owner_id" db:"owner_id"`
	Origin        Waypoint          `json:"origin" db:"-"`
	Destination   Waypoint          `json:"destination" db:"-"`
	Waypoints     []Waypoint        `json:"waypoints" db:"-"`
	TrajectoryLog []TrajectorySample `json:"trajectory_log,omitempty" db:"-"`
	Metadata      map[string]string `json:"metadata,omitempty" db:"-"`
	Status        FlightPlanStatus  `json:"status" db:"status"`
	StartTime     time.Time         `json:"start_time" db:"start_time"`
	EndTime       time.Time         `json:"end_time" db:"end_time"`
}

// Clone returns a deep copy safe to hand outside the store's lock.
func (p *FlightPlan) Clone() *FlightPlan {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Waypoints = append([]Waypoint(nil), p.Waypoints...)
	if len(p.TrajectoryLog) > 0 {
		cp.TrajectoryLog = append([]TrajectorySample(nil), p.TrajectoryLog...)
	}
	if p.Metadata != nil {
		cp.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
