// internal/domain/entity/scrape_run_log.go
package entity

import (
	"time"
)

// Scrape run statuses
const (
	RunStatusRetry   = "RETRY"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailure = "FAILURE"
	RunStatusNote    = "NOTE"
)

// Run labels identifying why a scrape was invoked
const (
	RunLabelPoll            = "poll"
	RunLabelPiggyback       = "piggyback"
	RunLabelPrefetch        = "prefetch"
	RunLabelStartupPrefetch = "startup-prefetch"
	RunLabelManual          = "manual"
)

// ScrapeRunLog is one append-only record per scheduler-significant event:
// either a scrape invocation (created as RETRY, finalized to SUCCESS or
// FAILURE) or a scheduler lifecycle note (sleep/wake/prefetch, status NOTE).
type ScrapeRunLog struct {
	ID          uint
	RunID       string // uuid correlation id
	RunLabel    string
	Status      string
	TargetDates string // comma-joined local flight dates
	RecordCount int
	RetryCount  int
	ErrorText   string
	Note        string
	StartedAt   time.Time
	FinishedAt  *time.Time
}
