package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"airways-scraper/internal/domain/entity"
)

func minimalSchedule(date string) []byte {
	return []byte(fmt.Sprintf(`<schedule date="%s">
  <flight id="GR900-%s" number="GR900" airline="GR" from="GCI" to="LGW" status="Scheduled">
    <scheduled departure="%sT08:00:00Z" arrival="%sT09:00:00Z"/>
  </flight>
</schedule>`, date, date, date, date))
}

type schedulerFixture struct {
	*executorFixture
	scheduler *Scheduler
	breaker   *CircuitBreaker
	prefetch  *PrefetchState
}

func newSchedulerFixture(t *testing.T, provider *mockProvider) *schedulerFixture {
	t.Helper()
	ef := newExecutorFixture(provider)
	clock := utcClock(t)

	breaker := NewCircuitBreaker(5, time.Minute)
	prefetch := NewPrefetchState(30 * time.Minute)
	calc := NewIntervalCalculator(testIntervalConfig())
	decider := NewSleepDecider(ef.flights, clock, testSleepConfig(), nopLogger{})

	s := NewScheduler(
		SchedulerConfig{
			CutoffHour:           23,
			WakeTolerance:        5 * time.Minute,
			FallbackRearm:        5 * time.Minute,
			PrefetchBundleWindow: 20 * time.Minute,
			PrefetchMaxRetries:   2,
			PrefetchRetryBase:    time.Millisecond,
			StartupPrefetchDelay: 0,
		},
		ef.executor, calc, decider, breaker, prefetch,
		ef.flights, ef.estimates, ef.runs,
		clock, testMetrics(), nopLogger{},
	)

	f := &schedulerFixture{executorFixture: ef, scheduler: s, breaker: breaker, prefetch: prefetch}
	t.Cleanup(func() {
		s.stopPollTimer()
		s.stopWakeTimer()
	})
	return f
}

func TestHandleSlotSkippedWhenClaimed(t *testing.T) {
	f := newSchedulerFixture(t, &mockProvider{})
	f.prefetch.Claim(time.Now())

	f.scheduler.handleSlot(context.Background())

	if f.provider.acquires != 0 {
		t.Fatal("claimed slot must not scrape")
	}
	if len(f.runs.created) != 0 {
		t.Fatal("claimed slot must not open a run row")
	}
}

func TestHandleSlotScrapesBothDates(t *testing.T) {
	provider := &mockProvider{session: &mockSession{bodies: map[string][]byte{}}}
	f := newSchedulerFixture(t, provider)
	today := f.scheduler.clock.Today()
	tomorrow := f.scheduler.clock.Tomorrow()
	provider.session.bodies[today] = minimalSchedule(today)
	provider.session.bodies[tomorrow] = minimalSchedule(tomorrow)

	f.scheduler.handleSlot(context.Background())

	if len(f.runs.finalized) != 1 {
		t.Fatalf("finalized %d runs, want 1", len(f.runs.finalized))
	}
	run := f.runs.finalized[0]
	if run.RunLabel != entity.RunLabelPrefetch {
		t.Fatalf("run label = %s, want prefetch", run.RunLabel)
	}
	if run.TargetDates != today+","+tomorrow {
		t.Fatalf("target dates = %s, want today and tomorrow", run.TargetDates)
	}
	if f.prefetch.Attempts() != 0 {
		t.Fatal("successful slot must reset the attempt counter")
	}
}

func TestHandleSlotSkippedWhenBreakerOpen(t *testing.T) {
	f := newSchedulerFixture(t, &mockProvider{})
	now := time.Now()
	for i := 0; i < 5; i++ {
		f.breaker.RecordFailure(now)
	}

	f.scheduler.handleSlot(context.Background())

	if f.provider.acquires != 0 {
		t.Fatal("open breaker must suppress the prefetch")
	}
}

func TestHandleSlotBreakerSkipResetsAttempts(t *testing.T) {
	f := newSchedulerFixture(t, &mockProvider{})
	now := time.Now()
	// Attempts left over from this slot's earlier retries must not eat
	// into the next slot's budget when the breaker cuts the cycle short
	f.prefetch.RecordAttempt(now)
	f.prefetch.RecordAttempt(now)
	for i := 0; i < 5; i++ {
		f.breaker.RecordFailure(now)
	}

	f.scheduler.handleSlot(context.Background())

	if f.provider.acquires != 0 {
		t.Fatal("open breaker must suppress the prefetch")
	}
	if f.prefetch.Attempts() != 0 {
		t.Fatalf("attempts = %d after a breaker skip, want 0", f.prefetch.Attempts())
	}
}

func TestPostRedeliversWhenQueueFull(t *testing.T) {
	f := newSchedulerFixture(t, &mockProvider{})
	f.scheduler.cfg.FallbackRearm = 10 * time.Millisecond

	for i := 0; i < cap(f.scheduler.events); i++ {
		f.scheduler.post(evSlot)
	}
	// Queue is full now; the poll must come back once space frees up
	f.scheduler.post(evPoll)
	for i := 0; i < cap(f.scheduler.events); i++ {
		<-f.scheduler.events
	}

	select {
	case kind := <-f.scheduler.events:
		if kind != evPoll {
			t.Fatalf("event = %s, want the redelivered poll", kind)
		}
	case <-time.After(time.Second):
		t.Fatal("poll event lost after the queue overflowed")
	}
}

func TestHandlePollBundlesClaimedSlot(t *testing.T) {
	provider := &mockProvider{session: &mockSession{bodies: map[string][]byte{}}}
	f := newSchedulerFixture(t, provider)
	today := f.scheduler.clock.Today()
	tomorrow := f.scheduler.clock.Tomorrow()
	provider.session.bodies[today] = minimalSchedule(today)
	provider.session.bodies[tomorrow] = minimalSchedule(tomorrow)

	f.scheduler.state = StateActive
	f.scheduler.bundleNext = true
	f.scheduler.handlePoll(context.Background())

	if len(f.runs.finalized) == 0 {
		t.Fatal("poll did not run")
	}
	run := f.runs.finalized[0]
	if run.TargetDates != today+","+tomorrow {
		t.Fatalf("target dates = %s, want today and tomorrow bundled", run.TargetDates)
	}
	if f.scheduler.bundleNext {
		t.Fatal("bundle flag must clear after the bundled poll")
	}
}

func TestArmPollClaimsNearbySlot(t *testing.T) {
	f := newSchedulerFixture(t, &mockProvider{})
	slots, err := NewSlotScheduler("* * * * *", time.UTC, func() {}, nopLogger{})
	if err != nil {
		t.Fatalf("NewSlotScheduler: %v", err)
	}
	f.scheduler.SetSlots(slots)

	// No active flights: idle tier, and every-minute slots guarantee the
	// poll lands within the bundle window of one
	f.scheduler.armPoll(context.Background(), time.Now())

	if !f.scheduler.bundleNext {
		t.Fatal("idle poll next to a slot must claim it")
	}
	if !f.prefetch.ConsumeClaim(time.Now()) {
		t.Fatal("claim was not recorded")
	}
}

func TestArmPollDoesNotClaimInHighTier(t *testing.T) {
	now := time.Now().UTC()
	f := newSchedulerFixture(t, &mockProvider{})
	f.flights.active = map[string][]entity.Flight{
		f.scheduler.clock.Today(): {flightDepartingIn(1, 5*time.Minute, now)},
	}
	slots, err := NewSlotScheduler("* * * * *", time.UTC, func() {}, nopLogger{})
	if err != nil {
		t.Fatalf("NewSlotScheduler: %v", err)
	}
	f.scheduler.SetSlots(slots)

	f.scheduler.armPoll(context.Background(), now)

	if f.scheduler.bundleNext {
		t.Fatal("high-tier polls must never claim prefetch slots")
	}
}

func TestMaybePreemptWakeForcesImmediateWake(t *testing.T) {
	// Provider always fails; the preempted poll failing does not matter
	// for the transition under test
	f := newSchedulerFixture(t, &mockProvider{failFirst: 100})
	now := time.Now().UTC()
	firstDep := now.Add(8 * time.Hour)
	f.flights.byDate = map[string][]entity.Flight{
		f.scheduler.clock.Tomorrow(): {{UniqueID: "F1", ScheduledDeparture: firstDep}},
	}

	f.scheduler.state = StateSleeping
	f.scheduler.scheduledWake = now.Add(20 * time.Hour)
	f.scheduler.maybePreemptWake(context.Background(), now)

	if f.scheduler.state != StateActive {
		t.Fatalf("state = %s, want ACTIVE after preemption", f.scheduler.state)
	}
	if f.provider.acquires == 0 {
		t.Fatal("preemption must trigger an immediate poll")
	}
}

func TestMaybePreemptWakeIgnoresSmallDrift(t *testing.T) {
	f := newSchedulerFixture(t, &mockProvider{})
	now := time.Now().UTC()
	firstDep := now.Add(8 * time.Hour)
	f.flights.byDate = map[string][]entity.Flight{
		f.scheduler.clock.Tomorrow(): {{UniqueID: "F1", ScheduledDeparture: firstDep}},
	}

	f.scheduler.state = StateSleeping
	// Already within tolerance of the recomputed instant
	f.scheduler.scheduledWake = firstDep.Add(-45 * time.Minute).Add(2 * time.Minute)
	f.scheduler.maybePreemptWake(context.Background(), now)

	if f.scheduler.wakeTimer != nil {
		t.Fatal("wake timer re-armed for drift inside the tolerance")
	}
}

func TestHandlePollIgnoredWhileSleeping(t *testing.T) {
	f := newSchedulerFixture(t, &mockProvider{})
	f.scheduler.state = StateSleeping

	f.scheduler.handlePoll(context.Background())

	if f.provider.acquires != 0 {
		t.Fatal("sleeping scheduler must ignore stray poll events")
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	f := newSchedulerFixture(t, &mockProvider{})
	f.scheduler.state = StateActive
	f.scheduler.breaker = nil // forces a nil dereference inside the cycle

	f.scheduler.dispatch(context.Background(), evPoll)

	if f.scheduler.state != StateActive {
		t.Fatal("recovery must leave the scheduler active")
	}
	if f.scheduler.pollTimer == nil {
		t.Fatal("recovery must re-arm the poll timer")
	}
}

func TestEnterSleepPiggybacksAndArmsWake(t *testing.T) {
	provider := &mockProvider{session: &mockSession{bodies: map[string][]byte{}}}
	f := newSchedulerFixture(t, provider)
	today := f.scheduler.clock.Today()
	tomorrow := f.scheduler.clock.Tomorrow()
	provider.session.bodies[today] = minimalSchedule(today)
	provider.session.bodies[tomorrow] = minimalSchedule(tomorrow)

	f.scheduler.enterSleep(context.Background(), time.Now())

	if f.scheduler.state != StateSleeping {
		t.Fatalf("state = %s, want SLEEPING", f.scheduler.state)
	}
	if len(f.runs.notes) == 0 {
		t.Fatal("sleep entry must record a lifecycle note")
	}
	if len(f.runs.finalized) != 1 {
		t.Fatalf("finalized %d runs, want the piggyback fetch", len(f.runs.finalized))
	}
	run := f.runs.finalized[0]
	if run.RunLabel != entity.RunLabelPiggyback || run.TargetDates != today+","+tomorrow {
		t.Fatalf("piggyback run = %+v, want both dates under the piggyback label", run)
	}
	if f.scheduler.wakeTimer == nil {
		t.Fatal("wake timer not armed")
	}
	if f.scheduler.scheduledWake.IsZero() {
		t.Fatal("scheduled wake not recorded")
	}
}

func TestArmFirstPollImmediateWithoutHistory(t *testing.T) {
	f := newSchedulerFixture(t, &mockProvider{})

	f.scheduler.armFirstPoll(context.Background(), time.Now())

	select {
	case kind := <-f.scheduler.events:
		if kind != evPoll {
			t.Fatalf("event = %s, want poll", kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no immediate poll event without run history")
	}
}

func TestArmFirstPollWaitsOutRecentRun(t *testing.T) {
	f := newSchedulerFixture(t, &mockProvider{})
	finished := time.Now().Add(-time.Minute)
	f.runs.last = &entity.ScrapeRunLog{
		Status:     entity.RunStatusSuccess,
		FinishedAt: &finished,
	}

	// Idle tier base is 15 minutes; one minute since the last success
	// leaves most of the interval to wait out
	f.scheduler.armFirstPoll(context.Background(), time.Now())

	select {
	case <-f.scheduler.events:
		t.Fatal("poll fired immediately despite a recent successful run")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleStartupPrefetchSkipsPopulatedTomorrow(t *testing.T) {
	f := newSchedulerFixture(t, &mockProvider{})
	f.flights.counts = map[string]int64{f.scheduler.clock.Tomorrow(): 4}

	f.scheduler.handleStartupPrefetch(context.Background())

	if f.provider.acquires != 0 {
		t.Fatal("startup prefetch must skip when tomorrow is already populated")
	}
}

func TestHandleStartupPrefetchWarmsEmptyTomorrow(t *testing.T) {
	provider := &mockProvider{session: &mockSession{bodies: map[string][]byte{}}}
	f := newSchedulerFixture(t, provider)
	tomorrow := f.scheduler.clock.Tomorrow()
	provider.session.bodies[tomorrow] = minimalSchedule(tomorrow)

	f.scheduler.handleStartupPrefetch(context.Background())

	if len(f.runs.finalized) != 1 {
		t.Fatalf("finalized %d runs, want 1", len(f.runs.finalized))
	}
	if f.runs.finalized[0].RunLabel != entity.RunLabelStartupPrefetch {
		t.Fatalf("run label = %s, want startup-prefetch", f.runs.finalized[0].RunLabel)
	}
}
