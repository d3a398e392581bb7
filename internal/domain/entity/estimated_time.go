// internal/domain/entity/estimated_time.go
package entity

import (
	"time"
)

// Estimated time kinds, one row per kind per flight
const (
	EstimateDeparture = "estimated_departure"
	EstimateArrival   = "estimated_arrival"
)

// EstimatedTime is a per-flight time annotation from the feed. It is read
// by the interval calculator as a higher-priority substitute for the
// scheduled time.
type EstimatedTime struct {
	ID        uint
	FlightID  uint
	Kind      string
	Time      time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FlightNote is a free-text remark attached to a flight entry. Notes are
// keyed by (flight, text) so repeated polls never duplicate them.
type FlightNote struct {
	ID        uint
	FlightID  uint
	Note      string
	CreatedAt time.Time
}
