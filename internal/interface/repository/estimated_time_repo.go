package repository

import (
	"context"
	"time"

	"airways-scraper/internal/domain/entity"
	"airways-scraper/internal/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormEstimatedTimeRepository implements the EstimatedTimeRepository interface
type GormEstimatedTimeRepository struct {
	db *gorm.DB
}

// NewGormEstimatedTimeRepository creates a new GORM estimated time repository
func NewGormEstimatedTimeRepository(db *gorm.DB) repository.EstimatedTimeRepository {
	return &GormEstimatedTimeRepository{
		db: db,
	}
}

// Upsert writes one annotation per (flight, kind), replacing the instant
// on conflict
func (r *GormEstimatedTimeRepository) Upsert(ctx context.Context, estimate *entity.EstimatedTime) error {
	model := &EstimatedTimeModel{
		FlightID:  estimate.FlightID,
		Kind:      estimate.Kind,
		Time:      estimate.Time,
		UpdatedAt: time.Now(),
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "flight_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"time", "updated_at"}),
	}).Create(model).Error
}

// FindByFlightIDs returns all annotations for the given flights
func (r *GormEstimatedTimeRepository) FindByFlightIDs(ctx context.Context, flightIDs []uint) ([]entity.EstimatedTime, error) {
	if len(flightIDs) == 0 {
		return nil, nil
	}

	var models []EstimatedTimeModel
	result := r.db.WithContext(ctx).Where("flight_id IN ?", flightIDs).Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}

	estimates := make([]entity.EstimatedTime, 0, len(models))
	for _, m := range models {
		estimates = append(estimates, entity.EstimatedTime{
			ID:        m.ID,
			FlightID:  m.FlightID,
			Kind:      m.Kind,
			Time:      m.Time,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return estimates, nil
}

// GormFlightNoteRepository implements the FlightNoteRepository interface
type GormFlightNoteRepository struct {
	db *gorm.DB
}

// NewGormFlightNoteRepository creates a new GORM flight note repository
func NewGormFlightNoteRepository(db *gorm.DB) repository.FlightNoteRepository {
	return &GormFlightNoteRepository{
		db: db,
	}
}

// Insert appends a remark; duplicates from repeated polls are ignored
func (r *GormFlightNoteRepository) Insert(ctx context.Context, note *entity.FlightNote) error {
	model := &FlightNoteModel{
		FlightID: note.FlightID,
		Note:     note.Note,
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "flight_id"}, {Name: "note"}},
		DoNothing: true,
	}).Create(model).Error
}
