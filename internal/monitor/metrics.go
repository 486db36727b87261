package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// automation loop.
type Metrics struct {
	CyclesRun             prometheus.Counter
	StationsSkipped       prometheus.Counter
	FetchFailures         prometheus.Counter
	ObservationsAnchored  prometheus.Counter
	ObservationsSubmitted prometheus.Counter
	ClaimsTriggered       prometheus.Counter
	PoliciesExpired       prometheus.Counter
	CycleDuration         prometheus.Histogram
	LoopRunning           prometheus.Gauge
}

// NewMetrics creates and registers all loop metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		CyclesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agriguard_monitor",
			Name:      "cycles_total",
			Help:      "Total automation cycles started.",
		}),
		StationsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agriguard_monitor",
			Name:      "stations_skipped_total",
			Help:      "Station cycles skipped because a previous cycle still held the lock.",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agriguard_monitor",
			Name:      "fetch_failures_total",
			Help:      "Weather provider fetches that exhausted their retries.",
		}),
		ObservationsAnchored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agriguard_monitor",
			Name:      "observations_anchored_total",
			Help:      "Raw readings written to durable content-addressed storage.",
		}),
		ObservationsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agriguard_monitor",
			Name:      "observations_submitted_total",
			Help:      "Observations recorded on the ledger.",
		}),
		ClaimsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agriguard_monitor",
			Name:      "claims_triggered_total",
			Help:      "Claims filed automatically for threshold breaches.",
		}),
		PoliciesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agriguard_monitor",
			Name:      "policies_expired_total",
			Help:      "Active policies expired after their coverage window ended.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agriguard_monitor",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one complete fetch-anchor-submit-evaluate cycle per station.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LoopRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agriguard_monitor",
			Name:      "loop_running",
			Help:      "1 when the automation loop is active, 0 when shut down.",
		}),
	}

	prometheus.MustRegister(
		m.CyclesRun,
		m.StationsSkipped,
		m.FetchFailures,
		m.ObservationsAnchored,
		m.ObservationsSubmitted,
		m.ClaimsTriggered,
		m.PoliciesExpired,
		m.CycleDuration,
		m.LoopRunning,
	)
	return m
}
