package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"airways-scraper/internal/domain/entity"
	"airways-scraper/internal/interface/feed"
	"airways-scraper/pkg/logger"
	"airways-scraper/pkg/metrics"
)

// Shared test doubles for the usecase package.

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})       {}
func (nopLogger) Info(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})        {}
func (nopLogger) Error(string, ...interface{})       {}
func (nopLogger) Fatal(string, ...interface{})       {}
func (l nopLogger) With(...interface{}) logger.Logger { return l }
func (nopLogger) Sync() error                        { return nil }

// Prometheus collectors register globally, so all tests share one set
var (
	metricsOnce   sync.Once
	sharedMetrics *metrics.Metrics
)

func testMetrics() *metrics.Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = metrics.NewMetrics("usecase_test")
	})
	return sharedMetrics
}

type mockFlightRepo struct {
	byDate    map[string][]entity.Flight
	active    map[string][]entity.Flight
	counts    map[string]int64
	latest    map[string]*time.Time
	upserted  []entity.Flight
	countErr  error
	activeErr error
	latestErr error
	upsertErr error
}

func (m *mockFlightRepo) Upsert(_ context.Context, f *entity.Flight) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	f.ID = uint(len(m.upserted) + 1)
	m.upserted = append(m.upserted, *f)
	return nil
}

func (m *mockFlightRepo) FindByUniqueID(_ context.Context, uniqueID string) (*entity.Flight, error) {
	for i := range m.upserted {
		if m.upserted[i].UniqueID == uniqueID {
			return &m.upserted[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockFlightRepo) FindByDate(_ context.Context, date string) ([]entity.Flight, error) {
	return m.byDate[date], nil
}

func (m *mockFlightRepo) FindActiveByDate(_ context.Context, date string) ([]entity.Flight, error) {
	if m.activeErr != nil {
		return nil, m.activeErr
	}
	return m.active[date], nil
}

func (m *mockFlightRepo) CountByDate(_ context.Context, date string) (int64, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.counts[date], nil
}

func (m *mockFlightRepo) LatestUpdateByDate(_ context.Context, date string) (*time.Time, error) {
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	return m.latest[date], nil
}

type mockEstimateRepo struct {
	rows     []entity.EstimatedTime
	upserted []entity.EstimatedTime
}

func (m *mockEstimateRepo) Upsert(_ context.Context, e *entity.EstimatedTime) error {
	m.upserted = append(m.upserted, *e)
	return nil
}

func (m *mockEstimateRepo) FindByFlightIDs(_ context.Context, _ []uint) ([]entity.EstimatedTime, error) {
	return m.rows, nil
}

type mockNoteRepo struct {
	inserted []entity.FlightNote
}

func (m *mockNoteRepo) Insert(_ context.Context, n *entity.FlightNote) error {
	m.inserted = append(m.inserted, *n)
	return nil
}

type mockRunRepo struct {
	created   []*entity.ScrapeRunLog
	finalized []entity.ScrapeRunLog
	notes     []string
	last      *entity.ScrapeRunLog
}

func (m *mockRunRepo) Create(_ context.Context, run *entity.ScrapeRunLog) error {
	run.ID = uint(len(m.created) + 1)
	run.RunID = fmt.Sprintf("run-%d", run.ID)
	m.created = append(m.created, run)
	return nil
}

func (m *mockRunRepo) Finalize(_ context.Context, run *entity.ScrapeRunLog) error {
	now := time.Now()
	run.FinishedAt = &now
	m.finalized = append(m.finalized, *run)
	return nil
}

func (m *mockRunRepo) CreateNote(_ context.Context, label, note string) error {
	m.notes = append(m.notes, label+": "+note)
	return nil
}

func (m *mockRunRepo) LastSuccessful(_ context.Context) (*entity.ScrapeRunLog, error) {
	return m.last, nil
}

type mockSnapshotRepo struct {
	archived []*entity.FeedSnapshot
	err      error
}

func (m *mockSnapshotRepo) Archive(_ context.Context, s *entity.FeedSnapshot) error {
	if m.err != nil {
		return m.err
	}
	m.archived = append(m.archived, s)
	return nil
}

type mockSession struct {
	bodies   map[string][]byte
	fetchErr error
	closed   bool
}

func (m *mockSession) FetchSchedule(_ context.Context, date string) ([]byte, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	body, ok := m.bodies[date]
	if !ok {
		return nil, fmt.Errorf("no canned body for %s", date)
	}
	return body, nil
}

func (m *mockSession) Close() {
	m.closed = true
}

type mockProvider struct {
	session   *mockSession
	acquires  int
	failFirst int // acquire errors for this many leading calls
}

func (m *mockProvider) Acquire(_ context.Context) (feed.Session, error) {
	m.acquires++
	if m.acquires <= m.failFirst {
		return nil, errors.New("gate refused")
	}
	return m.session, nil
}
