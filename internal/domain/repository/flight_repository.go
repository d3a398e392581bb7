package repository

import (
	"context"
	"time"

	"airways-scraper/internal/domain/entity"
)

// FlightRepository defines the persistence gateway for flights. The
// scheduler only reads; the scrape executor owns the write path.
type FlightRepository interface {
	// Upsert inserts or updates a flight keyed by its natural unique ID.
	// On conflict only lifecycle fields change; scheduled times and the
	// flight date are immutable after first insert.
	Upsert(ctx context.Context, flight *entity.Flight) error
	FindByUniqueID(ctx context.Context, uniqueID string) (*entity.Flight, error)
	FindByDate(ctx context.Context, flightDate string) ([]entity.Flight, error)
	// FindActiveByDate returns flights for the date that are not yet in a
	// terminal status.
	FindActiveByDate(ctx context.Context, flightDate string) ([]entity.Flight, error)
	CountByDate(ctx context.Context, flightDate string) (int64, error)
	// LatestUpdateByDate returns the most recent updated-at across the
	// date's flights, or nil when the date has no flights.
	LatestUpdateByDate(ctx context.Context, flightDate string) (*time.Time, error)
}
