// internal/domain/entity/feed.go
package entity

import (
	"time"
)

// FeedTimeAnnotation is an estimated-time entry attached to a raw feed flight
type FeedTimeAnnotation struct {
	Kind string // EstimateDeparture or EstimateArrival
	Time time.Time
}

// FeedFlight is one raw flight entry extracted from the upstream schedule
// document, before validation and upsert. Scheduled times are pointers
// because the feed omits them on noise entries; entries missing either are
// dropped by the executor.
type FeedFlight struct {
	UniqueID           string
	FlightNumber       string
	AirlineCode        string
	DepartureAirport   string
	ArrivalAirport     string
	ScheduledDeparture *time.Time
	ScheduledArrival   *time.Time
	ActualDeparture    *time.Time
	ActualArrival      *time.Time
	Status             string
	IsCancelled        bool
	Estimates          []FeedTimeAnnotation
	DelayEntries       []int // explicit per-leg delay minutes, summed
	Notes              []string
}
