package usecase

import (
	"context"
	"testing"
	"time"

	"airways-scraper/internal/domain/entity"
	"airways-scraper/internal/interface/feed"
)

const scheduleBody = `<schedule date="2026-08-26">
  <flight id="GR101-20260826" number="GR101" airline="GR" from="GCI" to="LGW" status="Boarding">
    <scheduled departure="2026-08-26T08:00:00Z" arrival="2026-08-26T09:00:00Z"/>
    <estimated kind="departure" time="2026-08-26T08:20:00Z"/>
    <note>Gate changed to 3</note>
  </flight>
  <flight id="GR202-20260826" number="GR202" airline="GR" from="GCI" to="JER" status="Landed">
    <scheduled departure="2026-08-26T07:00:00Z" arrival="2026-08-26T07:20:00Z"/>
    <actual departure="2026-08-26T07:10:00Z" arrival="2026-08-26T07:31:00Z"/>
  </flight>
  <flight id="GR303-20260826" number="GR303" airline="GR" from="GCI" to="SOU">
    <scheduled departure="2026-08-26T10:00:00Z"/>
  </flight>
</schedule>`

type executorFixture struct {
	provider  *mockProvider
	flights   *mockFlightRepo
	estimates *mockEstimateRepo
	notes     *mockNoteRepo
	runs      *mockRunRepo
	snapshots *mockSnapshotRepo
	executor  *ScrapeExecutor
}

func newExecutorFixture(provider *mockProvider) *executorFixture {
	f := &executorFixture{
		provider:  provider,
		flights:   &mockFlightRepo{},
		estimates: &mockEstimateRepo{},
		notes:     &mockNoteRepo{},
		runs:      &mockRunRepo{},
		snapshots: &mockSnapshotRepo{},
	}
	f.executor = NewScrapeExecutor(
		provider, feed.NewParser(nopLogger{}),
		f.flights, f.estimates, f.notes, f.runs, f.snapshots,
		testMetrics(), nopLogger{},
		RetryConfig{MaxRetries: 2, Base: time.Millisecond, Max: 5 * time.Millisecond},
	)
	return f
}

func TestRunSuccessFirstAttempt(t *testing.T) {
	session := &mockSession{bodies: map[string][]byte{"2026-08-26": []byte(scheduleBody)}}
	f := newExecutorFixture(&mockProvider{session: session})

	if err := f.executor.Run(context.Background(), []string{"2026-08-26"}, entity.RunLabelPoll); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.runs.created) != 1 || len(f.runs.finalized) != 1 {
		t.Fatalf("run rows: created %d finalized %d, want one of each", len(f.runs.created), len(f.runs.finalized))
	}
	final := f.runs.finalized[0]
	if final.Status != entity.RunStatusSuccess {
		t.Fatalf("run status = %s, want SUCCESS", final.Status)
	}
	if final.RetryCount != 0 {
		t.Fatalf("retry count = %d, want 0", final.RetryCount)
	}
	// GR303 has no scheduled arrival and is dropped
	if final.RecordCount != 2 {
		t.Fatalf("record count = %d, want 2", final.RecordCount)
	}
	if len(f.flights.upserted) != 2 {
		t.Fatalf("upserted %d flights, want 2", len(f.flights.upserted))
	}
	if len(f.estimates.upserted) != 1 || f.estimates.upserted[0].Kind != entity.EstimateDeparture {
		t.Fatalf("estimates = %+v, want one departure annotation", f.estimates.upserted)
	}
	if len(f.notes.inserted) != 1 || f.notes.inserted[0].Note != "Gate changed to 3" {
		t.Fatalf("notes = %+v, want the gate remark", f.notes.inserted)
	}
	if len(f.snapshots.archived) != 1 {
		t.Fatalf("archived %d snapshots, want 1", len(f.snapshots.archived))
	}
	if !session.closed {
		t.Fatal("session not closed after the run")
	}
}

func TestRunRetriesSessionFailure(t *testing.T) {
	session := &mockSession{bodies: map[string][]byte{"2026-08-26": []byte(scheduleBody)}}
	f := newExecutorFixture(&mockProvider{session: session, failFirst: 1})

	if err := f.executor.Run(context.Background(), []string{"2026-08-26"}, entity.RunLabelPoll); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if f.provider.acquires != 2 {
		t.Fatalf("acquires = %d, want 2", f.provider.acquires)
	}
	final := f.runs.finalized[0]
	if final.Status != entity.RunStatusSuccess || final.RetryCount != 1 {
		t.Fatalf("status %s retries %d, want SUCCESS after 1 retry", final.Status, final.RetryCount)
	}
}

func TestRunFailsAfterRetryBudget(t *testing.T) {
	f := newExecutorFixture(&mockProvider{failFirst: 100})

	err := f.executor.Run(context.Background(), []string{"2026-08-26"}, entity.RunLabelPoll)
	if err == nil {
		t.Fatal("want error once the retry budget is exhausted")
	}

	// Budget of 2 retries means 3 attempts in total
	if f.provider.acquires != 3 {
		t.Fatalf("acquires = %d, want 3", f.provider.acquires)
	}
	final := f.runs.finalized[0]
	if final.Status != entity.RunStatusFailure {
		t.Fatalf("run status = %s, want FAILURE", final.Status)
	}
	if final.ErrorText == "" {
		t.Fatal("failed run must record the error text")
	}
	if final.RetryCount != 2 {
		t.Fatalf("retry count = %d, want 2", final.RetryCount)
	}
}

func TestRunParseFailureDrawsFromRetryBudget(t *testing.T) {
	session := &mockSession{bodies: map[string][]byte{"2026-08-26": []byte("not xml at all <<<")}}
	f := newExecutorFixture(&mockProvider{session: session})

	err := f.executor.Run(context.Background(), []string{"2026-08-26"}, entity.RunLabelPoll)
	if err == nil {
		t.Fatal("want error from unparseable payload")
	}
	if f.runs.finalized[0].Status != entity.RunStatusFailure {
		t.Fatalf("run status = %s, want FAILURE", f.runs.finalized[0].Status)
	}
	// Each attempt acquired a fresh session
	if f.provider.acquires != 3 {
		t.Fatalf("acquires = %d, want 3", f.provider.acquires)
	}
}

func TestRunArchiveFailureIsNotFatal(t *testing.T) {
	session := &mockSession{bodies: map[string][]byte{"2026-08-26": []byte(scheduleBody)}}
	f := newExecutorFixture(&mockProvider{session: session})
	f.snapshots.err = context.DeadlineExceeded

	if err := f.executor.Run(context.Background(), []string{"2026-08-26"}, entity.RunLabelPoll); err != nil {
		t.Fatalf("Run: %v, archive failures must not fail the scrape", err)
	}
}

func TestRunMultipleDatesShareOneRunRow(t *testing.T) {
	session := &mockSession{bodies: map[string][]byte{
		"2026-08-26": []byte(scheduleBody),
		"2026-08-27": []byte(`<schedule date="2026-08-27"><flight id="GR404-20260827" number="GR404" airline="GR" from="GCI" to="LGW" status="Scheduled"><scheduled departure="2026-08-27T08:00:00Z" arrival="2026-08-27T09:00:00Z"/></flight></schedule>`),
	}}
	f := newExecutorFixture(&mockProvider{session: session})

	if err := f.executor.Run(context.Background(), []string{"2026-08-26", "2026-08-27"}, entity.RunLabelPiggyback); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.runs.created) != 1 {
		t.Fatalf("created %d run rows, want 1 for the whole bundle", len(f.runs.created))
	}
	final := f.runs.finalized[0]
	if final.TargetDates != "2026-08-26,2026-08-27" {
		t.Fatalf("target dates = %q", final.TargetDates)
	}
	if final.RecordCount != 3 {
		t.Fatalf("record count = %d, want 3 across both dates", final.RecordCount)
	}
	for _, fl := range f.flights.upserted {
		if fl.UniqueID == "GR404-20260827" && fl.FlightDate != "2026-08-27" {
			t.Fatalf("flight date = %s, want the fetched date", fl.FlightDate)
		}
	}
}

func TestComputeDelayRules(t *testing.T) {
	e := &ScrapeExecutor{metrics: testMetrics(), logger: nopLogger{}}
	sched := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)

	t.Run("explicit entries are summed", func(t *testing.T) {
		got := e.computeDelay(&entity.FeedFlight{DelayEntries: []int{10, 25}})
		if got == nil || *got != 35 {
			t.Fatalf("delay = %v, want 35", got)
		}
	})

	t.Run("derived from actual departure", func(t *testing.T) {
		actual := sched.Add(42 * time.Minute)
		got := e.computeDelay(&entity.FeedFlight{ScheduledDeparture: &sched, ActualDeparture: &actual})
		if got == nil || *got != 42 {
			t.Fatalf("delay = %v, want 42", got)
		}
	})

	t.Run("early departure floors at zero", func(t *testing.T) {
		actual := sched.Add(-5 * time.Minute)
		got := e.computeDelay(&entity.FeedFlight{ScheduledDeparture: &sched, ActualDeparture: &actual})
		if got == nil || *got != 0 {
			t.Fatalf("delay = %v, want 0", got)
		}
	})

	t.Run("implausible values become null", func(t *testing.T) {
		if got := e.computeDelay(&entity.FeedFlight{DelayEntries: []int{2000}}); got != nil {
			t.Fatalf("delay = %d, want nil beyond 24h", *got)
		}
		if got := e.computeDelay(&entity.FeedFlight{DelayEntries: []int{-10}}); got != nil {
			t.Fatalf("delay = %d, want nil for negative sums", *got)
		}
		if got := e.computeDelay(&entity.FeedFlight{DelayEntries: []int{1440}}); got == nil || *got != 1440 {
			t.Fatalf("delay = %v, want 1440 kept at the bound", got)
		}
	})

	t.Run("nothing to derive from", func(t *testing.T) {
		if got := e.computeDelay(&entity.FeedFlight{ScheduledDeparture: &sched}); got != nil {
			t.Fatalf("delay = %v, want nil without actuals or entries", got)
		}
	})
}
