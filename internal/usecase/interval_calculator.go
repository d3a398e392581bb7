package usecase

import (
	"math/rand"
	"time"

	"airways-scraper/internal/domain/entity"
)

// Tier is one of the polling urgency buckets
type Tier int

const (
	TierHigh Tier = iota
	TierMedium
	TierLow
	TierIdle
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "idle"
	}
}

// IntervalConfig holds the tier boundaries, base intervals and jitter
// ceilings. All values come from configuration, never constants.
type IntervalConfig struct {
	HighThreshold time.Duration // below this gap: high tier
	MedThreshold  time.Duration
	LowThreshold  time.Duration

	High   time.Duration
	Medium time.Duration
	Low    time.Duration
	Idle   time.Duration

	JitterHigh   time.Duration
	JitterMedium time.Duration
	JitterLow    time.Duration
	JitterIdle   time.Duration
}

// IntervalDecision is the deterministic part of an interval computation.
// Jitter is drawn separately each time a timer is armed so repeated calls
// with identical inputs stay idempotent.
type IntervalDecision struct {
	Tier      Tier
	Base      time.Duration
	NextEvent *time.Time
}

// IntervalCalculator selects a polling tier from current database state
// plus wall-clock time. Pure: no side effects, no stored state beyond the
// jitter source.
type IntervalCalculator struct {
	cfg IntervalConfig
	rng *rand.Rand
}

// NewIntervalCalculator creates an interval calculator
func NewIntervalCalculator(cfg IntervalConfig) *IntervalCalculator {
	return &IntervalCalculator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Compute selects the tier for the given active (non-terminal) flights.
// estimates maps flight ID to kind to instant; estimated times override
// scheduled ones when computing each flight's next relevant event.
func (c *IntervalCalculator) Compute(now time.Time, active []entity.Flight, estimates map[uint]map[string]time.Time) IntervalDecision {
	var next *time.Time
	for i := range active {
		f := &active[i]
		if f.IsTerminal() {
			continue
		}
		ev := f.NextEvent(estimates[f.ID])
		if ev == nil {
			continue
		}
		if next == nil || ev.Before(*next) {
			next = ev
		}
	}

	if next == nil {
		return IntervalDecision{Tier: TierIdle, Base: c.cfg.Idle}
	}

	gap := next.Sub(now)
	tier := c.tierFor(gap)
	return IntervalDecision{Tier: tier, Base: c.baseFor(tier), NextEvent: next}
}

// tierFor applies the boundary rules: the high bound is exclusive, the
// others inclusive on their lower edge (gap == HighThreshold is medium)
func (c *IntervalCalculator) tierFor(gap time.Duration) Tier {
	switch {
	case gap < c.cfg.HighThreshold:
		return TierHigh
	case gap < c.cfg.MedThreshold:
		return TierMedium
	case gap < c.cfg.LowThreshold:
		return TierLow
	default:
		return TierIdle
	}
}

func (c *IntervalCalculator) baseFor(tier Tier) time.Duration {
	switch tier {
	case TierHigh:
		return c.cfg.High
	case TierMedium:
		return c.cfg.Medium
	case TierLow:
		return c.cfg.Low
	default:
		return c.cfg.Idle
	}
}

// Jitter draws a uniform delay in [0, ceiling] for the tier. Drawn
// independently each cycle so deployments never synchronize their load.
func (c *IntervalCalculator) Jitter(tier Tier) time.Duration {
	var ceiling time.Duration
	switch tier {
	case TierHigh:
		ceiling = c.cfg.JitterHigh
	case TierMedium:
		ceiling = c.cfg.JitterMedium
	case TierLow:
		ceiling = c.cfg.JitterLow
	default:
		ceiling = c.cfg.JitterIdle
	}
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(c.rng.Int63n(int64(ceiling) + 1))
}
