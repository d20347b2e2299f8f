// Package metrics holds per-orbit observers and the Prometheus collectors of
// an evolution run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run is the set of collectors describing one evolution run. Each run owns
// its registry so concurrent runs and tests do not share counters.
type Run struct {
	Registry *prometheus.Registry

	systems     *prometheus.CounterVec
	failures    prometheus.Counter
	segments    prometheus.Counter
	wall        prometheus.Histogram
	workers     prometheus.Gauge
	survival    prometheus.Gauge
	mergeWithin prometheus.Gauge
}

func NewRun() *Run {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Run{
		Registry: reg,
		systems: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kicksim_systems_total",
			Help: "Tracer systems integrated, by terminal state.",
		}, []string{"outcome"}),
		failures: f.NewCounter(prometheus.CounterOpts{
			Name: "kicksim_system_failures_total",
			Help: "Tracer systems whose integration returned an error.",
		}),
		segments: f.NewCounter(prometheus.CounterOpts{
			Name: "kicksim_segments_total",
			Help: "Epoch segments integrated across all systems.",
		}),
		wall: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kicksim_system_wall_seconds",
			Help:    "Wall-clock time spent integrating one system.",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
		}),
		workers: f.NewGauge(prometheus.GaugeOpts{
			Name: "kicksim_workers",
			Help: "Concurrent integration workers (0 means serial).",
		}),
		survival: f.NewGauge(prometheus.GaugeOpts{
			Name: "kicksim_survival_fraction",
			Help: "Fraction of systems that survived the supernova.",
		}),
		mergeWithin: f.NewGauge(prometheus.GaugeOpts{
			Name: "kicksim_merge_within_tmax_fraction",
			Help: "Fraction of survivors with inspiral time below tinsp_max.",
		}),
	}
}

func (r *Run) ObserveSystem(outcome string, wall time.Duration, segments int) {
	r.systems.WithLabelValues(outcome).Inc()
	r.wall.Observe(wall.Seconds())
	r.segments.Add(float64(segments))
}

func (r *Run) ObserveFailure() { r.failures.Inc() }

func (r *Run) SetWorkers(n int) { r.workers.Set(float64(n)) }

func (r *Run) SetSurvivalFraction(f float64) { r.survival.Set(f) }

func (r *Run) SetMergeFraction(f float64) { r.mergeWithin.Set(f) }

// WriteTextfile dumps the run metrics in the Prometheus text format.
func (r *Run) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
