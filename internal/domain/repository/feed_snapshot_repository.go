package repository

import (
	"context"

	"airways-scraper/internal/domain/entity"
)

// FeedSnapshotRepository archives raw upstream payloads for replay
type FeedSnapshotRepository interface {
	Archive(ctx context.Context, snapshot *entity.FeedSnapshot) error
}
