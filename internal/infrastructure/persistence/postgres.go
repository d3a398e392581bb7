package persistence

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	gormRepo "airways-scraper/internal/interface/repository"
)

// NewPostgresDB opens the relational store and keeps the schema current.
// Dedicated migration tooling lives outside this service; AutoMigrate only
// adds missing columns and indexes.
func NewPostgresDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&gormRepo.FlightModel{},
		&gormRepo.EstimatedTimeModel{},
		&gormRepo.FlightNoteModel{},
		&gormRepo.ScrapeRunLogModel{},
	); err != nil {
		return nil, err
	}

	return db, nil
}
