package utils

import (
	"time"
)

const flightDateLayout = "2006-01-02"

// Clock converts between the operating timezone (DST-aware) and absolute
// instants. All scheduler wall-clock decisions go through it so the rest
// of the code never touches time.Local.
type Clock struct {
	loc *time.Location
}

// NewClock loads the operating timezone, e.g. "Europe/Guernsey"
func NewClock(tzName string) (*Clock, error) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, err
	}
	return &Clock{loc: loc}, nil
}

// Location returns the operating timezone location
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current instant in the operating timezone
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// FlightDate formats an instant as the local operating day
func (c *Clock) FlightDate(t time.Time) string {
	return t.In(c.loc).Format(flightDateLayout)
}

// Today returns the current local flight date
func (c *Clock) Today() string {
	return c.FlightDate(time.Now())
}

// Tomorrow returns tomorrow's local flight date
func (c *Clock) Tomorrow() string {
	return c.FlightDate(time.Now().In(c.loc).AddDate(0, 0, 1))
}

// DateAfter returns the local flight date n days after the given instant
func (c *Clock) DateAfter(t time.Time, days int) string {
	return c.FlightDate(t.In(c.loc).AddDate(0, 0, days))
}

// LocalHour returns the hour of the instant on the operating wall clock
func (c *Clock) LocalHour(t time.Time) int {
	return t.In(c.loc).Hour()
}

// NextLocalTime computes the next absolute instant at the given local
// wall-clock time strictly after from. Using time.Date in the location
// keeps the result correct across DST transitions.
func (c *Clock) NextLocalTime(from time.Time, hour, min int) time.Time {
	local := from.In(c.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, min, 0, 0, c.loc)
	if !next.After(from) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, min, 0, 0, c.loc)
	}
	return next
}
