package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	ScrapeRuns      *prometheus.CounterVec
	ScrapeFailures  *prometheus.CounterVec
	FlightsUpserted prometheus.Counter
	RecordsDropped  *prometheus.CounterVec
	ScrapeDuration  prometheus.Histogram
	BreakerState    prometheus.Gauge
	SchedulerState  prometheus.Gauge
	PrefetchSkips   prometheus.Counter
}

// NewMetrics creates new prometheus metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ScrapeRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_runs_total",
			Help:      "The total number of scrape invocations by label and outcome",
		}, []string{"label", "status"}),
		ScrapeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_attempt_failures_total",
			Help:      "The total number of failed scrape attempts by cause",
		}, []string{"cause"}),
		FlightsUpserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flights_upserted_total",
			Help:      "The total number of flight rows written",
		}),
		RecordsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_records_dropped_total",
			Help:      "The total number of feed entries dropped by reason",
		}, []string{"reason"}),
		ScrapeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scrape_duration_seconds",
			Help:      "Time taken by one scrape invocation incl. retries",
			Buckets:   prometheus.DefBuckets,
		}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_open",
			Help:      "1 when the circuit breaker is open, 0 when closed",
		}),
		SchedulerState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_sleeping",
			Help:      "1 while the scheduler is in the SLEEPING state",
		}),
		PrefetchSkips: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prefetch_slots_skipped_total",
			Help:      "Prefetch slots skipped because a regular poll claimed them",
		}),
	}
}
