package usecase

import (
	"context"
	"sync"
	"time"

	"airways-scraper/internal/domain/entity"
	"airways-scraper/internal/domain/repository"
	"airways-scraper/pkg/logger"
	"airways-scraper/pkg/metrics"
	"airways-scraper/pkg/utils"
)

// Scheduler states
const (
	StateActive   = "ACTIVE"
	StateSleeping = "SLEEPING"
)

type eventKind int

const (
	evPoll eventKind = iota
	evWake
	evSlot
	evStartupPrefetch
)

func (k eventKind) String() string {
	switch k {
	case evPoll:
		return "poll"
	case evWake:
		return "wake"
	case evSlot:
		return "slot"
	default:
		return "startup-prefetch"
	}
}

// SchedulerConfig holds the loop-level tunables
type SchedulerConfig struct {
	CutoffHour           int
	WakeTolerance        time.Duration // wake drift below this is not worth re-arming
	FallbackRearm        time.Duration // re-arm delay after a panicking cycle
	PrefetchBundleWindow time.Duration // poll-to-slot proximity that triggers bundling
	PrefetchMaxRetries   int
	PrefetchRetryBase    time.Duration
	StartupPrefetchDelay time.Duration
}

// Scheduler is the single-goroutine control loop. All state transitions
// happen on the loop goroutine; timers and the slot cron only post events,
// so no transition ever races another.
type Scheduler struct {
	cfg      SchedulerConfig
	executor *ScrapeExecutor
	calc     *IntervalCalculator
	decider  *SleepDecider
	breaker  *CircuitBreaker
	slots    *SlotScheduler
	prefetch *PrefetchState

	flights   repository.FlightRepository
	estimates repository.EstimatedTimeRepository
	runs      repository.ScrapeRunRepository

	clock   *utils.Clock
	metrics *metrics.Metrics
	logger  logger.Logger

	events chan eventKind

	// Loop-goroutine state, never touched from outside the loop
	state         string
	pollTimer     *time.Timer
	wakeTimer     *time.Timer
	scheduledWake time.Time
	bundleNext    bool

	wg sync.WaitGroup
}

// NewScheduler wires the control loop. The slot scheduler is created by
// the caller with s.PostSlot as its fire callback.
func NewScheduler(
	cfg SchedulerConfig,
	executor *ScrapeExecutor,
	calc *IntervalCalculator,
	decider *SleepDecider,
	breaker *CircuitBreaker,
	prefetch *PrefetchState,
	flights repository.FlightRepository,
	estimates repository.EstimatedTimeRepository,
	runs repository.ScrapeRunRepository,
	clock *utils.Clock,
	m *metrics.Metrics,
	log logger.Logger,
) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		executor:  executor,
		calc:      calc,
		decider:   decider,
		breaker:   breaker,
		prefetch:  prefetch,
		flights:   flights,
		estimates: estimates,
		runs:      runs,
		clock:     clock,
		metrics:   m,
		logger:    log,
		events:    make(chan eventKind, 8),
		state:     StateActive,
	}
}

// SetSlots attaches the slot scheduler after construction; the cron needs
// PostSlot as its callback, which needs the scheduler to exist first.
func (s *Scheduler) SetSlots(slots *SlotScheduler) {
	s.slots = slots
}

// PostSlot is the slot cron's fire callback. Non-blocking: a loop busy
// with a scrape picks the event up when it returns to the channel.
func (s *Scheduler) PostSlot() {
	s.post(evSlot)
}

// post delivers an event without blocking the caller. A full queue means
// the loop is wedged mid-cycle; the event is retried later instead of
// dropped, otherwise a lost poll would stall the cadence for good.
func (s *Scheduler) post(kind eventKind) {
	select {
	case s.events <- kind:
	default:
		s.logger.Warn("Event queue full, retrying delivery", "event", kind.String(),
			"retryIn", s.cfg.FallbackRearm.String())
		time.AfterFunc(s.cfg.FallbackRearm, func() { s.post(kind) })
	}
}

// Start derives the initial state from the clock and the run log, then
// runs the loop until the context is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	now := time.Now()

	if s.slots != nil {
		s.slots.Start()
	}
	if s.cfg.StartupPrefetchDelay > 0 {
		time.AfterFunc(s.cfg.StartupPrefetchDelay, func() { s.post(evStartupPrefetch) })
	}

	if s.clock.LocalHour(now) >= s.cfg.CutoffHour {
		s.enterSleep(ctx, now)
	} else {
		s.armFirstPoll(ctx, now)
	}

	s.wg.Add(1)
	go s.loop(ctx)
}

// Wait blocks until the loop goroutine has exited
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case kind := <-s.events:
			s.dispatch(ctx, kind)
		}
	}
}

// dispatch runs one event with panic containment. A panicking cycle must
// not kill the loop: the poll timer is re-armed on a fixed delay so the
// scraper always comes back.
func (s *Scheduler) dispatch(ctx context.Context, kind eventKind) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered from panic in scheduler cycle", "event", kind.String(), "panic", r)
			s.state = StateActive
			s.metrics.SchedulerState.Set(0)
			s.armPollAfter(s.cfg.FallbackRearm)
		}
	}()

	switch kind {
	case evPoll:
		s.handlePoll(ctx)
	case evWake:
		s.handleWake(ctx)
	case evSlot:
		s.handleSlot(ctx)
	case evStartupPrefetch:
		s.handleStartupPrefetch(ctx)
	}
}

func (s *Scheduler) handlePoll(ctx context.Context) {
	if s.state != StateActive {
		return
	}
	now := time.Now()

	if !s.breaker.CanAttempt(now) {
		s.metrics.BreakerState.Set(1)
		s.logger.Warn("Circuit breaker open, skipping poll", "failures", s.breaker.FailureCount())
		s.armPoll(ctx, now)
		return
	}
	s.metrics.BreakerState.Set(0)

	dates := []string{s.clock.Today()}
	label := entity.RunLabelPoll
	bundled := s.bundleNext
	if bundled {
		dates = append(dates, s.clock.Tomorrow())
		s.bundleNext = false
	}

	if err := s.executor.Run(ctx, dates, label); err != nil {
		s.breaker.RecordFailure(time.Now())
		if s.breaker.IsOpen() {
			s.metrics.BreakerState.Set(1)
			s.logger.Error("Circuit breaker opened", "failures", s.breaker.FailureCount())
		}
	} else {
		s.breaker.RecordSuccess()
		if bundled {
			// Tomorrow is covered; the claimed slot will skip itself
			s.logger.Info("Bundled prefetch completed within regular poll")
		}
	}

	now = time.Now()
	if s.decider.ShouldSleep(ctx, now) {
		s.enterSleep(ctx, now)
		return
	}
	s.armPoll(ctx, now)
}

// armPoll computes the next tier from current database state and arms the
// poll timer. Polls landing close to the next prefetch slot claim the
// slot and widen themselves to cover tomorrow.
func (s *Scheduler) armPoll(ctx context.Context, now time.Time) {
	decision := s.computeDecision(ctx, now)
	delay := decision.Base + s.calc.Jitter(decision.Tier)
	fireAt := now.Add(delay)

	if s.slots != nil && (decision.Tier == TierLow || decision.Tier == TierIdle) {
		nextSlot := s.slots.NextSlot(now)
		if gap := nextSlot.Sub(fireAt); gap > -s.cfg.PrefetchBundleWindow && gap < s.cfg.PrefetchBundleWindow {
			s.prefetch.Claim(now)
			s.bundleNext = true
			s.logger.Info("Claiming prefetch slot for the next poll",
				"slot", nextSlot.Format(time.RFC3339), "poll", fireAt.Format(time.RFC3339))
		}
	}

	s.logger.Info("Next poll armed", "tier", decision.Tier.String(),
		"delay", delay.Truncate(time.Second).String(), "at", fireAt.Format(time.RFC3339))
	s.stopPollTimer()
	s.pollTimer = time.AfterFunc(delay, func() { s.post(evPoll) })
}

func (s *Scheduler) armPollAfter(delay time.Duration) {
	s.stopPollTimer()
	s.pollTimer = time.AfterFunc(delay, func() { s.post(evPoll) })
}

// armFirstPoll resumes the cadence after a restart instead of always
// scraping immediately: a recent successful run only waits out the
// remainder of its interval.
func (s *Scheduler) armFirstPoll(ctx context.Context, now time.Time) {
	s.metrics.SchedulerState.Set(0)

	last, err := s.runs.LastSuccessful(ctx)
	if err != nil {
		s.logger.Error("Last-run lookup failed, polling immediately", "error", err)
	}
	if err != nil || last == nil || last.FinishedAt == nil {
		s.armPollAfter(0)
		return
	}

	decision := s.computeDecision(ctx, now)
	elapsed := now.Sub(*last.FinishedAt)
	if elapsed >= decision.Base {
		s.armPollAfter(0)
		return
	}
	remainder := decision.Base - elapsed + s.calc.Jitter(decision.Tier)
	s.logger.Info("Resuming poll cadence", "tier", decision.Tier.String(),
		"sinceLastRun", elapsed.Truncate(time.Second).String(),
		"firstPollIn", remainder.Truncate(time.Second).String())
	s.armPollAfter(remainder)
}

// computeDecision loads today's active flights plus their estimate
// annotations and runs the tier calculator. Query failures degrade to the
// idle tier rather than stalling the loop.
func (s *Scheduler) computeDecision(ctx context.Context, now time.Time) IntervalDecision {
	active, err := s.flights.FindActiveByDate(ctx, s.clock.FlightDate(now))
	if err != nil {
		s.logger.Error("Active flight query failed, using idle tier", "error", err)
		return s.calc.Compute(now, nil, nil)
	}

	var estimates map[uint]map[string]time.Time
	if len(active) > 0 {
		ids := make([]uint, len(active))
		for i := range active {
			ids[i] = active[i].ID
		}
		rows, err := s.estimates.FindByFlightIDs(ctx, ids)
		if err != nil {
			s.logger.Error("Estimate query failed, using scheduled times only", "error", err)
		} else {
			estimates = make(map[uint]map[string]time.Time, len(active))
			for _, row := range rows {
				if estimates[row.FlightID] == nil {
					estimates[row.FlightID] = make(map[string]time.Time, 2)
				}
				estimates[row.FlightID][row.Kind] = row.Time
			}
		}
	}

	return s.calc.Compute(now, active, estimates)
}

// enterSleep transitions to SLEEPING: log the transition, piggyback one
// final two-date scrape so tomorrow's schedule is warm, then arm the wake
// timer from the three-tier wake computation.
func (s *Scheduler) enterSleep(ctx context.Context, now time.Time) {
	s.state = StateSleeping
	s.metrics.SchedulerState.Set(1)
	s.stopPollTimer()

	if err := s.runs.CreateNote(ctx, entity.RunLabelPiggyback, "entering sleep"); err != nil {
		s.logger.Error("Failed to record sleep note", "error", err)
	}

	if s.breaker.CanAttempt(now) {
		dates := []string{s.clock.Today(), s.clock.Tomorrow()}
		if err := s.executor.Run(ctx, dates, entity.RunLabelPiggyback); err != nil {
			s.breaker.RecordFailure(time.Now())
			s.logger.Error("Piggyback scrape on sleep entry failed", "error", err)
		} else {
			s.breaker.RecordSuccess()
		}
	} else {
		s.logger.Warn("Circuit breaker open, skipping piggyback scrape")
	}

	now = time.Now()
	wake := s.decider.WakeInstant(ctx, now)
	s.scheduledWake = wake
	s.armWake(now, wake)
}

func (s *Scheduler) armWake(now, wake time.Time) {
	delay := wake.Sub(now)
	if delay < 0 {
		delay = 0
	}
	s.logger.Info("Sleeping until wake", "wake", wake.Format(time.RFC3339))
	s.stopWakeTimer()
	s.wakeTimer = time.AfterFunc(delay, func() { s.post(evWake) })
}

func (s *Scheduler) handleWake(ctx context.Context) {
	if s.state != StateSleeping {
		return
	}
	s.state = StateActive
	s.metrics.SchedulerState.Set(0)
	if err := s.runs.CreateNote(ctx, entity.RunLabelPoll, "waking"); err != nil {
		s.logger.Error("Failed to record wake note", "error", err)
	}
	s.logger.Info("Waking up")
	s.handlePoll(ctx)
}

// handleSlot runs a prefetch slot: skip when a poll claimed it, otherwise
// scrape tomorrow standalone. A successful prefetch while SLEEPING can
// preempt the wake timer, since tomorrow's schedule may move the wake.
func (s *Scheduler) handleSlot(ctx context.Context) {
	now := time.Now()

	if s.prefetch.ConsumeClaim(now) {
		s.metrics.PrefetchSkips.Inc()
		s.logger.Info("Prefetch slot skipped, already claimed by a poll")
		return
	}

	if !s.breaker.CanAttempt(now) {
		s.logger.Warn("Circuit breaker open, skipping prefetch slot")
		// Attempts recorded by earlier retries of this slot must not
		// shorten the next slot's retry budget
		s.prefetch.Release()
		return
	}

	s.prefetch.RecordAttempt(now)
	err := s.executor.Run(ctx, []string{s.clock.Today(), s.clock.Tomorrow()}, entity.RunLabelPrefetch)
	if err != nil {
		s.breaker.RecordFailure(time.Now())
		attempts := s.prefetch.Attempts()
		if attempts <= s.cfg.PrefetchMaxRetries {
			delay := s.cfg.PrefetchRetryBase << uint(attempts-1)
			s.logger.Warn("Prefetch failed, retrying slot",
				"attempt", attempts, "retryIn", delay.String(), "error", err)
			time.AfterFunc(delay, func() { s.post(evSlot) })
		} else {
			s.logger.Error("Prefetch slot abandoned after retries", "attempts", attempts, "error", err)
			s.prefetch.Release()
		}
		return
	}
	s.breaker.RecordSuccess()
	s.prefetch.Release()

	if s.state == StateSleeping {
		s.maybePreemptWake(ctx, time.Now())
	}
}

// maybePreemptWake recomputes the wake instant after fresh data landed
// mid-sleep. When the recomputed instant has already passed, or moved more
// than the tolerance away from the armed one, the wake timer is cancelled
// and the scheduler wakes now rather than trusting a stale alarm.
func (s *Scheduler) maybePreemptWake(ctx context.Context, now time.Time) {
	wake := s.decider.WakeInstant(ctx, now)
	drift := wake.Sub(s.scheduledWake)
	if drift < 0 {
		drift = -drift
	}
	if wake.After(now) && drift <= s.cfg.WakeTolerance {
		return
	}

	s.logger.Info("Fresh schedule data preempts the armed wake",
		"armed", s.scheduledWake.Format(time.RFC3339), "recomputed", wake.Format(time.RFC3339))
	s.stopWakeTimer()
	s.handleWake(ctx)
}

// handleStartupPrefetch warms tomorrow's schedule shortly after boot, but
// only when no slot or poll has already covered it
func (s *Scheduler) handleStartupPrefetch(ctx context.Context) {
	now := time.Now()
	tomorrow := s.clock.Tomorrow()

	count, err := s.flights.CountByDate(ctx, tomorrow)
	if err != nil {
		s.logger.Error("Startup prefetch count query failed", "error", err)
	}
	if count > 0 {
		s.logger.Info("Startup prefetch skipped, tomorrow already populated", "flights", count)
		return
	}

	if !s.breaker.CanAttempt(now) {
		s.logger.Warn("Circuit breaker open, skipping startup prefetch")
		return
	}
	if err := s.executor.Run(ctx, []string{tomorrow}, entity.RunLabelStartupPrefetch); err != nil {
		s.breaker.RecordFailure(time.Now())
		s.logger.Error("Startup prefetch failed", "error", err)
		return
	}
	s.breaker.RecordSuccess()

	if s.state == StateSleeping {
		s.maybePreemptWake(ctx, time.Now())
	}
}

func (s *Scheduler) stopPollTimer() {
	if s.pollTimer != nil {
		s.pollTimer.Stop()
		s.pollTimer = nil
	}
}

func (s *Scheduler) stopWakeTimer() {
	if s.wakeTimer != nil {
		s.wakeTimer.Stop()
		s.wakeTimer = nil
	}
}

func (s *Scheduler) shutdown() {
	s.stopPollTimer()
	s.stopWakeTimer()
	if s.slots != nil {
		s.slots.Stop()
	}
	s.logger.Info("Scheduler loop stopped")
}
