package repository

import (
	"context"
	"errors"
	"time"

	"airways-scraper/internal/domain/entity"
	"airways-scraper/internal/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var terminalStatuses = []string{entity.StatusLanded, entity.StatusCancelled}

// GormFlightRepository implements the FlightRepository interface
type GormFlightRepository struct {
	db *gorm.DB
}

// NewGormFlightRepository creates a new GORM flight repository
func NewGormFlightRepository(db *gorm.DB) repository.FlightRepository {
	return &GormFlightRepository{
		db: db,
	}
}

// Upsert inserts or updates a flight keyed by unique_id. Scheduled times
// and flight_date are deliberately absent from the conflict update list:
// they are immutable after first insert.
func (r *GormFlightRepository) Upsert(ctx context.Context, flight *entity.Flight) error {
	model := flightToModel(flight)
	model.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "unique_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"actual_departure",
			"actual_arrival",
			"status",
			"is_cancelled",
			"delay_minutes",
			"updated_at",
		}),
	}).Create(model)
	if result.Error != nil {
		return result.Error
	}

	// On conflict the surrogate key of the existing row is needed for
	// child-row writes
	var stored FlightModel
	if err := r.db.WithContext(ctx).Where("unique_id = ?", flight.UniqueID).First(&stored).Error; err != nil {
		return err
	}
	flight.ID = stored.ID
	flight.CreatedAt = stored.CreatedAt
	flight.UpdatedAt = stored.UpdatedAt
	return nil
}

// FindByUniqueID finds a flight by its natural identifier
func (r *GormFlightRepository) FindByUniqueID(ctx context.Context, uniqueID string) (*entity.Flight, error) {
	var model FlightModel
	result := r.db.WithContext(ctx).Where("unique_id = ?", uniqueID).First(&model)
	if result.Error != nil {
		return nil, result.Error
	}
	flight := modelToFlight(&model)
	return &flight, nil
}

// FindByDate returns all flights operating on the local date
func (r *GormFlightRepository) FindByDate(ctx context.Context, flightDate string) ([]entity.Flight, error) {
	var models []FlightModel
	result := r.db.WithContext(ctx).
		Where("flight_date = ?", flightDate).
		Order("scheduled_departure asc").
		Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}
	return modelsToFlights(models), nil
}

// FindActiveByDate returns the date's flights not yet in a terminal status
func (r *GormFlightRepository) FindActiveByDate(ctx context.Context, flightDate string) ([]entity.Flight, error) {
	var models []FlightModel
	result := r.db.WithContext(ctx).
		Where("flight_date = ? AND status NOT IN ? AND is_cancelled = ?", flightDate, terminalStatuses, false).
		Order("scheduled_departure asc").
		Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}
	return modelsToFlights(models), nil
}

// CountByDate counts flights for the local date
func (r *GormFlightRepository) CountByDate(ctx context.Context, flightDate string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&FlightModel{}).
		Where("flight_date = ?", flightDate).
		Count(&count)
	return count, result.Error
}

// LatestUpdateByDate returns the newest updated_at across the date's
// flights, nil when the date has none
func (r *GormFlightRepository) LatestUpdateByDate(ctx context.Context, flightDate string) (*time.Time, error) {
	var model FlightModel
	result := r.db.WithContext(ctx).
		Where("flight_date = ?", flightDate).
		Order("updated_at desc").
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &model.UpdatedAt, nil
}

func flightToModel(f *entity.Flight) *FlightModel {
	return &FlightModel{
		ID:                 f.ID,
		UniqueID:           f.UniqueID,
		FlightNumber:       f.FlightNumber,
		AirlineCode:        f.AirlineCode,
		DepartureAirport:   f.DepartureAirport,
		ArrivalAirport:     f.ArrivalAirport,
		ScheduledDeparture: f.ScheduledDeparture,
		ScheduledArrival:   f.ScheduledArrival,
		ActualDeparture:    f.ActualDeparture,
		ActualArrival:      f.ActualArrival,
		Status:             f.Status,
		IsCancelled:        f.IsCancelled,
		FlightDate:         f.FlightDate,
		DelayMinutes:       f.DelayMinutes,
		CreatedAt:          f.CreatedAt,
	}
}

func modelToFlight(m *FlightModel) entity.Flight {
	return entity.Flight{
		ID:                 m.ID,
		UniqueID:           m.UniqueID,
		FlightNumber:       m.FlightNumber,
		AirlineCode:        m.AirlineCode,
		DepartureAirport:   m.DepartureAirport,
		ArrivalAirport:     m.ArrivalAirport,
		ScheduledDeparture: m.ScheduledDeparture,
		ScheduledArrival:   m.ScheduledArrival,
		ActualDeparture:    m.ActualDeparture,
		ActualArrival:      m.ActualArrival,
		Status:             m.Status,
		IsCancelled:        m.IsCancelled,
		FlightDate:         m.FlightDate,
		DelayMinutes:       m.DelayMinutes,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func modelsToFlights(models []FlightModel) []entity.Flight {
	flights := make([]entity.Flight, 0, len(models))
	for i := range models {
		flights = append(flights, modelToFlight(&models[i]))
	}
	return flights
}
