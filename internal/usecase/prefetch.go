package usecase

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"airways-scraper/pkg/logger"
)

// SlotScheduler fires a callback at fixed local wall-clock slots. It also
// exposes the upcoming slot instant so regular polls landing close to a
// slot can claim the slot's work instead of duplicating it.
type SlotScheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	logger   logger.Logger
}

// NewSlotScheduler parses the 5-field cron spec in the given location
func NewSlotScheduler(spec string, loc *time.Location, fire func(), log logger.Logger) (*SlotScheduler, error) {
	c := cron.New(cron.WithLocation(loc))
	entryID, err := c.AddFunc(spec, fire)
	if err != nil {
		return nil, err
	}
	return &SlotScheduler{
		cron:     c,
		schedule: c.Entry(entryID).Schedule,
		logger:   log,
	}, nil
}

// Start begins firing slots
func (s *SlotScheduler) Start() {
	s.cron.Start()
	s.logger.Info("Prefetch slot schedule started", "nextSlot", s.NextSlot(time.Now()).Format(time.RFC3339))
}

// Stop stops the underlying cron and waits for a running callback to finish
func (s *SlotScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// NextSlot returns the first slot instant strictly after the given time
func (s *SlotScheduler) NextSlot(after time.Time) time.Time {
	return s.schedule.Next(after)
}

// PrefetchState tracks whether the current prefetch slot's work has
// already been claimed by a regular poll, and how many standalone attempts
// the slot handler has burned. A claim left unreleased past the reset
// window is considered abandoned.
type PrefetchState struct {
	mu sync.Mutex

	claimed    bool
	claimedAt  time.Time
	claimReset time.Duration

	attempts    int
	lastAttempt time.Time
}

// NewPrefetchState creates prefetch claim state with the given
// abandoned-claim reset window
func NewPrefetchState(claimReset time.Duration) *PrefetchState {
	return &PrefetchState{claimReset: claimReset}
}

// Claim marks the upcoming slot as handled by a bundled poll
func (p *PrefetchState) Claim(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claimed = true
	p.claimedAt = now
}

// Release clears the claim after the slot has fired or the bundled poll
// has completed the slot's work
func (p *PrefetchState) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claimed = false
	p.attempts = 0
}

// ConsumeClaim reports whether a firing slot should be skipped because a
// poll claimed it. A stale claim (older than the reset window) is treated
// as abandoned: it is cleared and the slot proceeds.
func (p *PrefetchState) ConsumeClaim(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.claimed {
		return false
	}
	if now.Sub(p.claimedAt) >= p.claimReset {
		p.claimed = false
		return false
	}
	p.claimed = false
	return true
}

// RecordAttempt counts one standalone prefetch attempt
func (p *PrefetchState) RecordAttempt(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	p.lastAttempt = now
}

// Attempts returns the standalone attempts burned on the current slot
func (p *PrefetchState) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}
