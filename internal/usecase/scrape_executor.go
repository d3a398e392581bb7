package usecase

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"airways-scraper/internal/domain/entity"
	"airways-scraper/internal/domain/repository"
	"airways-scraper/internal/interface/feed"
	"airways-scraper/pkg/logger"
	"airways-scraper/pkg/metrics"
)

// Delay values outside this range are corrupt feed data and are nulled
const maxPlausibleDelayMinutes = 1440

// RetryConfig bounds the executor's internal retry loop
type RetryConfig struct {
	MaxRetries int
	Base       time.Duration
	Max        time.Duration
}

// ScrapeExecutor acquires a feed session, retrieves and parses the
// schedule for the target dates and upserts the result. One invocation
// writes exactly one run-log row; session, parse and upsert failures all
// draw from the same retry budget.
type ScrapeExecutor struct {
	provider  feed.SessionProvider
	parser    *feed.Parser
	flights   repository.FlightRepository
	estimates repository.EstimatedTimeRepository
	notes     repository.FlightNoteRepository
	runs      repository.ScrapeRunRepository
	snapshots repository.FeedSnapshotRepository
	metrics   *metrics.Metrics
	logger    logger.Logger
	retry     RetryConfig
}

// NewScrapeExecutor creates a scrape executor
func NewScrapeExecutor(
	provider feed.SessionProvider,
	parser *feed.Parser,
	flights repository.FlightRepository,
	estimates repository.EstimatedTimeRepository,
	notes repository.FlightNoteRepository,
	runs repository.ScrapeRunRepository,
	snapshots repository.FeedSnapshotRepository,
	m *metrics.Metrics,
	log logger.Logger,
	retry RetryConfig,
) *ScrapeExecutor {
	return &ScrapeExecutor{
		provider:  provider,
		parser:    parser,
		flights:   flights,
		estimates: estimates,
		notes:     notes,
		runs:      runs,
		snapshots: snapshots,
		metrics:   m,
		logger:    log,
		retry:     retry,
	}
}

// Run scrapes the given local flight dates under the run label. The run
// log row is finalized before Run returns, so last-successful-run queries
// always reflect what the scheduler itself just did.
func (e *ScrapeExecutor) Run(ctx context.Context, dates []string, label string) error {
	run := &entity.ScrapeRunLog{
		RunLabel:    label,
		Status:      entity.RunStatusRetry,
		TargetDates: strings.Join(dates, ","),
		StartedAt:   time.Now(),
	}
	if err := e.runs.Create(ctx, run); err != nil {
		// The scrape is still worth attempting; only the bookkeeping row
		// is missing
		e.logger.Error("Failed to open run log row", "label", label, "error", err)
	}

	log := e.logger.With("runId", run.RunID, "label", label, "dates", run.TargetDates)
	log.Info("Starting scrape run")
	start := time.Now()

	var lastErr error
	total := 0

	for attempt := 0; attempt <= e.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := e.backoff(attempt)
			log.Warn("Retrying scrape", "attempt", attempt, "backoff", delay.String(), "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				lastErr = ctx.Err()
			}
			if ctx.Err() != nil {
				break
			}
		}

		n, err := e.attempt(ctx, dates, run, log)
		if err == nil {
			total = n
			lastErr = nil
			run.RetryCount = attempt
			break
		}
		lastErr = err
		run.RetryCount = attempt
	}

	run.RecordCount = total
	if lastErr != nil {
		run.Status = entity.RunStatusFailure
		run.ErrorText = lastErr.Error()
	} else {
		run.Status = entity.RunStatusSuccess
	}

	if err := e.runs.Finalize(ctx, run); err != nil {
		log.Error("Failed to finalize run log row", "error", err)
	}

	e.metrics.ScrapeRuns.WithLabelValues(label, run.Status).Inc()
	e.metrics.ScrapeDuration.Observe(time.Since(start).Seconds())

	if lastErr != nil {
		log.Error("Scrape run failed", "retries", run.RetryCount, "error", lastErr)
		return lastErr
	}
	log.Info("Scrape run finished", "records", total, "retries", run.RetryCount,
		"duration", time.Since(start).Truncate(time.Millisecond).String())
	return nil
}

// attempt performs one full pass: acquire a session, then fetch, parse and
// upsert every target date within it
func (e *ScrapeExecutor) attempt(ctx context.Context, dates []string, run *entity.ScrapeRunLog, log logger.Logger) (int, error) {
	session, err := e.provider.Acquire(ctx)
	if err != nil {
		e.metrics.ScrapeFailures.WithLabelValues("session").Inc()
		return 0, err
	}
	defer session.Close()

	total := 0
	for _, date := range dates {
		body, err := session.FetchSchedule(ctx, date)
		if err != nil {
			e.metrics.ScrapeFailures.WithLabelValues("fetch").Inc()
			return total, err
		}

		e.archive(ctx, run, date, body)

		entries, err := e.parser.Parse(body)
		if err != nil {
			e.metrics.ScrapeFailures.WithLabelValues("parse").Inc()
			return total, err
		}

		n, err := e.upsertEntries(ctx, date, entries, log)
		if err != nil {
			e.metrics.ScrapeFailures.WithLabelValues("upsert").Inc()
			return total, err
		}
		total += n
	}
	return total, nil
}

// archive stores the raw payload; failures are logged and swallowed
func (e *ScrapeExecutor) archive(ctx context.Context, run *entity.ScrapeRunLog, date string, body []byte) {
	if e.snapshots == nil {
		return
	}
	snapshot := &entity.FeedSnapshot{
		RunID:      run.RunID,
		RunLabel:   run.RunLabel,
		FlightDate: date,
		Body:       body,
		ByteSize:   len(body),
		FetchedAt:  time.Now(),
	}
	if err := e.snapshots.Archive(ctx, snapshot); err != nil {
		e.logger.Warn("Failed to archive feed snapshot", "date", date, "error", err)
	}
}

// upsertEntries validates and writes one date's entries. Per-record shape
// anomalies drop the record, never the batch; store errors abort the
// attempt.
func (e *ScrapeExecutor) upsertEntries(ctx context.Context, date string, entries []entity.FeedFlight, log logger.Logger) (int, error) {
	accepted := 0
	for i := range entries {
		ff := &entries[i]

		if ff.ScheduledDeparture == nil || ff.ScheduledArrival == nil {
			e.metrics.RecordsDropped.WithLabelValues("missing_schedule").Inc()
			log.Debug("Dropping entry without scheduled times", "uniqueId", ff.UniqueID)
			continue
		}

		status := ff.Status
		if status == "" {
			status = entity.StatusScheduled
		}

		flight := &entity.Flight{
			UniqueID:           ff.UniqueID,
			FlightNumber:       ff.FlightNumber,
			AirlineCode:        ff.AirlineCode,
			DepartureAirport:   ff.DepartureAirport,
			ArrivalAirport:     ff.ArrivalAirport,
			ScheduledDeparture: *ff.ScheduledDeparture,
			ScheduledArrival:   *ff.ScheduledArrival,
			ActualDeparture:    ff.ActualDeparture,
			ActualArrival:      ff.ActualArrival,
			Status:             status,
			IsCancelled:        ff.IsCancelled,
			FlightDate:         date,
			DelayMinutes:       e.computeDelay(ff),
		}

		if err := e.flights.Upsert(ctx, flight); err != nil {
			return accepted, err
		}

		for _, est := range ff.Estimates {
			annotation := &entity.EstimatedTime{
				FlightID: flight.ID,
				Kind:     est.Kind,
				Time:     est.Time,
			}
			if err := e.estimates.Upsert(ctx, annotation); err != nil {
				return accepted, err
			}
		}

		for _, note := range ff.Notes {
			if err := e.notes.Insert(ctx, &entity.FlightNote{FlightID: flight.ID, Note: note}); err != nil {
				return accepted, err
			}
		}

		e.metrics.FlightsUpserted.Inc()
		accepted++
	}
	return accepted, nil
}

// computeDelay sums explicit delay entries, falling back to the
// actual-vs-scheduled departure gap. Values outside [0, 1440] minutes are
// corrupt and stored as null.
func (e *ScrapeExecutor) computeDelay(ff *entity.FeedFlight) *int {
	var delay int
	switch {
	case len(ff.DelayEntries) > 0:
		for _, d := range ff.DelayEntries {
			delay += d
		}
	case ff.ActualDeparture != nil && ff.ScheduledDeparture != nil:
		delay = int(ff.ActualDeparture.Sub(*ff.ScheduledDeparture).Minutes())
		if delay < 0 {
			delay = 0
		}
	default:
		return nil
	}

	if delay < 0 || delay > maxPlausibleDelayMinutes {
		e.metrics.RecordsDropped.WithLabelValues("implausible_delay").Inc()
		return nil
	}
	return &delay
}

// backoff computes base·2^attempt plus uniform jitter, capped
func (e *ScrapeExecutor) backoff(attempt int) time.Duration {
	d := e.retry.Base << uint(attempt-1)
	if d > e.retry.Max || d <= 0 {
		d = e.retry.Max
	}
	jitter := time.Duration(rand.Int63n(int64(e.retry.Base) + 1))
	if d+jitter > e.retry.Max {
		return e.retry.Max
	}
	return d + jitter
}
