// internal/domain/entity/flight.go
package entity

import (
	"time"
)

// Flight statuses as they appear in the upstream feed
const (
	StatusScheduled = "Scheduled"
	StatusBoarding  = "Boarding"
	StatusAirborne  = "Airborne"
	StatusDiverted  = "Diverted"
	StatusLanded    = "Landed"
	StatusCancelled = "Cancelled"
)

// Flight represents one scheduled movement from the upstream feed
type Flight struct {
	ID                 uint
	UniqueID           string // stable natural identifier, upsert key
	FlightNumber       string
	AirlineCode        string
	DepartureAirport   string
	ArrivalAirport     string
	ScheduledDeparture time.Time
	ScheduledArrival   time.Time
	ActualDeparture    *time.Time
	ActualArrival      *time.Time
	Status             string
	IsCancelled        bool
	FlightDate         string // local operating day (YYYY-MM-DD), immutable after insert
	DelayMinutes       *int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsTerminal reports whether no further movement is expected for the flight
func (f *Flight) IsTerminal() bool {
	return f.Status == StatusLanded || f.Status == StatusCancelled || f.IsCancelled
}

// NextEvent returns the flight's next relevant event instant: the
// estimated-or-scheduled departure if it has not departed, the
// estimated-or-scheduled arrival if departed but not arrived, and nil once
// both actuals are set. Estimates take priority over scheduled times.
func (f *Flight) NextEvent(estimates map[string]time.Time) *time.Time {
	if f.ActualDeparture == nil {
		if est, ok := estimates[EstimateDeparture]; ok {
			return &est
		}
		dep := f.ScheduledDeparture
		return &dep
	}
	if f.ActualArrival == nil {
		if est, ok := estimates[EstimateArrival]; ok {
			return &est
		}
		arr := f.ScheduledArrival
		return &arr
	}
	return nil
}
