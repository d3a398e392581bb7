package repository

import (
	"context"

	"airways-scraper/internal/domain/entity"
)

// EstimatedTimeRepository stores per-flight time annotations, one row per
// (flight, kind)
type EstimatedTimeRepository interface {
	Upsert(ctx context.Context, estimate *entity.EstimatedTime) error
	FindByFlightIDs(ctx context.Context, flightIDs []uint) ([]entity.EstimatedTime, error)
}

// FlightNoteRepository stores free-text remarks keyed by (flight, text)
type FlightNoteRepository interface {
	Insert(ctx context.Context, note *entity.FlightNote) error
}
