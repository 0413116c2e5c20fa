package models

// Severity classifies how urgent a predicted conflict is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Conflict is a derived prediction, never persisted: a pair of drones whose
// predicted closest point of approach breaches the configured separation
// minima. DroneA is always lexicographically less than DroneB.
type Conflict struct {
	DroneA          string   `json:"drone_a"`
	DroneB          string   `json:"drone_b"`
	TCPASeconds     float64  `json:"t_cpa_s"`
	MinSeparationM  float64  `json:"min_separation_m"`
	Severity        Severity `json:"severity"`
	LocationLat     float64  `json:"location_lat"`
	LocationLon     float64  `json:"location_lon"`
	LocationAlt     float64  `json:"location_alt"`
}
