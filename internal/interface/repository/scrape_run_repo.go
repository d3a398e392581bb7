package repository

import (
	"context"
	"errors"
	"time"

	"airways-scraper/internal/domain/entity"
	"airways-scraper/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormScrapeRunRepository implements the ScrapeRunRepository interface
type GormScrapeRunRepository struct {
	db *gorm.DB
}

// NewGormScrapeRunRepository creates a new GORM scrape run repository
func NewGormScrapeRunRepository(db *gorm.DB) repository.ScrapeRunRepository {
	return &GormScrapeRunRepository{
		db: db,
	}
}

// Create opens a run row in RETRY state
func (r *GormScrapeRunRepository) Create(ctx context.Context, run *entity.ScrapeRunLog) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	model := runToModel(run)
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		return result.Error
	}
	run.ID = model.ID
	return nil
}

// Finalize transitions the run row to its terminal status
func (r *GormScrapeRunRepository) Finalize(ctx context.Context, run *entity.ScrapeRunLog) error {
	now := time.Now()
	run.FinishedAt = &now

	return r.db.WithContext(ctx).
		Model(&ScrapeRunLogModel{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"status":       run.Status,
			"record_count": run.RecordCount,
			"retry_count":  run.RetryCount,
			"error_text":   run.ErrorText,
			"finished_at":  run.FinishedAt,
		}).Error
}

// CreateNote appends a scheduler lifecycle entry
func (r *GormScrapeRunRepository) CreateNote(ctx context.Context, label, note string) error {
	now := time.Now()
	model := &ScrapeRunLogModel{
		RunID:      uuid.New().String(),
		RunLabel:   label,
		Status:     entity.RunStatusNote,
		Note:       note,
		StartedAt:  now,
		FinishedAt: &now,
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// LastSuccessful returns the newest SUCCESS run, nil when none exists
func (r *GormScrapeRunRepository) LastSuccessful(ctx context.Context) (*entity.ScrapeRunLog, error) {
	var model ScrapeRunLogModel
	result := r.db.WithContext(ctx).
		Where("status = ?", entity.RunStatusSuccess).
		Order("started_at desc").
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	run := modelToRun(&model)
	return &run, nil
}

func runToModel(run *entity.ScrapeRunLog) *ScrapeRunLogModel {
	return &ScrapeRunLogModel{
		ID:          run.ID,
		RunID:       run.RunID,
		RunLabel:    run.RunLabel,
		Status:      run.Status,
		TargetDates: run.TargetDates,
		RecordCount: run.RecordCount,
		RetryCount:  run.RetryCount,
		ErrorText:   run.ErrorText,
		Note:        run.Note,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
}

func modelToRun(m *ScrapeRunLogModel) entity.ScrapeRunLog {
	return entity.ScrapeRunLog{
		ID:          m.ID,
		RunID:       m.RunID,
		RunLabel:    m.RunLabel,
		Status:      m.Status,
		TargetDates: m.TargetDates,
		RecordCount: m.RecordCount,
		RetryCount:  m.RetryCount,
		ErrorText:   m.ErrorText,
		Note:        m.Note,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
	}
}
