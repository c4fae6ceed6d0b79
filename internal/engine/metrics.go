package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors updated while an experiment runs.
type Metrics struct {
	// Runs counts finished runs by outcome (complete, skipped, failed).
	Runs *prometheus.CounterVec

	// SimulatorCalls counts external tool invocations by tool (model, topology).
	SimulatorCalls *prometheus.CounterVec

	// RunDuration observes wall time of runs that invoked the simulator.
	RunDuration prometheus.Histogram

	// ActiveWorkers is the number of workers currently running.
	ActiveWorkers prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "noddymc",
			Name:      "runs_total",
			Help:      "Monte Carlo runs finished, by outcome.",
		}, []string{"outcome"}),
		SimulatorCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "noddymc",
			Name:      "simulator_calls_total",
			Help:      "External simulator invocations, by tool.",
		}, []string{"tool"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "noddymc",
			Name:      "run_duration_seconds",
			Help:      "Wall time of simulated runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		ActiveWorkers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "noddymc",
			Name:      "active_workers",
			Help:      "Workers currently executing runs.",
		}),
	}
}
