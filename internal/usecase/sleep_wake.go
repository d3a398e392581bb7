package usecase

import (
	"context"
	"time"

	"airways-scraper/internal/domain/repository"
	"airways-scraper/pkg/logger"
	"airways-scraper/pkg/utils"
)

// SleepWakeConfig holds the overnight shutdown tunables
type SleepWakeConfig struct {
	CutoffHour       int           // local hour at which sleep is forced
	StaleThreshold   time.Duration // terminal statuses older than this are suspect
	WakeOffset       time.Duration // wake this long before the earliest departure
	FallbackWakeHour int           // local wall-clock fallback when no schedule is known
}

// SleepDecider decides when the scheduler goes dormant and when it comes
// back. Every persistence error fails toward staying active: an extra poll
// is cheap, silently going dormant is not.
type SleepDecider struct {
	flights repository.FlightRepository
	clock   *utils.Clock
	cfg     SleepWakeConfig
	logger  logger.Logger
}

// NewSleepDecider creates a sleep/wake decider
func NewSleepDecider(flights repository.FlightRepository, clock *utils.Clock, cfg SleepWakeConfig, log logger.Logger) *SleepDecider {
	return &SleepDecider{
		flights: flights,
		clock:   clock,
		cfg:     cfg,
		logger:  log,
	}
}

// ShouldSleep reports whether the scheduler should enter the dormant state
// at the given instant
func (d *SleepDecider) ShouldSleep(ctx context.Context, now time.Time) bool {
	// Hard cutoff dominates any flight state
	if d.clock.LocalHour(now) >= d.cfg.CutoffHour {
		return true
	}

	today := d.clock.FlightDate(now)

	count, err := d.flights.CountByDate(ctx, today)
	if err != nil {
		d.logger.Error("Sleep check count query failed, staying active", "error", err)
		return false
	}
	// No data is "something may be broken", not "day is done"
	if count == 0 {
		return false
	}

	active, err := d.flights.FindActiveByDate(ctx, today)
	if err != nil {
		d.logger.Error("Sleep check active query failed, staying active", "error", err)
		return false
	}
	if len(active) > 0 {
		return false
	}

	// All terminal. If the rows have not been touched in a while the
	// statuses may be yesterday's cache picked up by a restart; force a
	// refresh instead of sleeping on them.
	latest, err := d.flights.LatestUpdateByDate(ctx, today)
	if err != nil || latest == nil {
		if err != nil {
			d.logger.Error("Sleep check staleness query failed, staying active", "error", err)
		}
		return false
	}
	if now.Sub(*latest) > d.cfg.StaleThreshold {
		d.logger.Warn("All flights terminal but rows are stale, staying active",
			"lastUpdate", latest.Format(time.RFC3339))
		return false
	}

	return true
}

// WakeInstant computes when a scheduler entering sleep now should wake.
// Three tiers: today's remaining non-terminal flights first (same-day
// recovery after a restart), then tomorrow's schedule, then the fixed
// fallback wall-clock time. While a same-day future departure exists the
// result is always strictly after now; immediate wake is reserved for
// days whose candidates have all departed.
func (d *SleepDecider) WakeInstant(ctx context.Context, now time.Time) time.Time {
	today := d.clock.FlightDate(now)

	if active, err := d.flights.FindActiveByDate(ctx, today); err == nil {
		if len(active) > 0 {
			for _, f := range active {
				if !f.ScheduledDeparture.After(now) {
					continue
				}
				wake := f.ScheduledDeparture.Add(-d.cfg.WakeOffset)
				if wake.After(now) {
					return wake
				}
				// Already inside the offset window. A wake at or before
				// now would re-enter sleep straight away and hammer the
				// upstream; hold until the departure itself.
				return f.ScheduledDeparture
			}
			// Every remaining candidate has departed; wake immediately to
			// keep tracking them through to arrival
			return now
		}
	} else {
		d.logger.Error("Wake computation today query failed", "error", err)
	}

	tomorrow := d.clock.DateAfter(now, 1)
	if flights, err := d.flights.FindByDate(ctx, tomorrow); err == nil && len(flights) > 0 {
		wake := flights[0].ScheduledDeparture.Add(-d.cfg.WakeOffset)
		if wake.Before(now) {
			return now
		}
		return wake
	} else if err != nil {
		d.logger.Error("Wake computation tomorrow query failed", "error", err)
	}

	return d.clock.NextLocalTime(now, d.cfg.FallbackWakeHour, 0)
}
