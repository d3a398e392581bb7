package repository

import (
	"context"

	"airways-scraper/internal/domain/entity"
)

// ScrapeRunRepository is the append-only run log. A scrape invocation
// creates one RETRY row and finalizes it to a terminal status before
// returning control to the scheduler.
type ScrapeRunRepository interface {
	Create(ctx context.Context, run *entity.ScrapeRunLog) error
	Finalize(ctx context.Context, run *entity.ScrapeRunLog) error
	// CreateNote appends a scheduler lifecycle entry (sleep/wake/prefetch)
	CreateNote(ctx context.Context, label, note string) error
	// LastSuccessful returns the most recent SUCCESS run, or nil when none
	// has been recorded yet.
	LastSuccessful(ctx context.Context) (*entity.ScrapeRunLog, error)
}
