// Package metrics records merge and derive progress as Prometheus metrics
// and exports them in the node_exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bft-labs/fahmunge/internal/domain"
)

// Recorder implements app.Observer on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	unitsMerged   prometheus.Counter
	unitsSkipped  prometheus.Counter
	unitsFailed   prometheus.Counter
	framesMerged  prometheus.Counter
	unitDuration  prometheus.Histogram
	framesDerived prometheus.Counter
	unitsDerived  prometheus.Counter
	lastRun       prometheus.Gauge
}

// NewRecorder creates a Recorder with all metrics registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		unitsMerged: factory.NewCounter(prometheus.CounterOpts{
			Name: "fahmunge_units_merged_total",
			Help: "Source units appended to a store",
		}),
		unitsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "fahmunge_units_skipped_total",
			Help: "Source units skipped because the ledger already holds them",
		}),
		unitsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "fahmunge_units_failed_total",
			Help: "Source units that could not be loaded",
		}),
		framesMerged: factory.NewCounter(prometheus.CounterOpts{
			Name: "fahmunge_frames_merged_total",
			Help: "Frames appended by merges",
		}),
		unitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fahmunge_unit_merge_duration_seconds",
			Help:    "Time to load and commit one source unit",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		framesDerived: factory.NewCounter(prometheus.CounterOpts{
			Name: "fahmunge_frames_derived_total",
			Help: "Frames appended to subset stores",
		}),
		unitsDerived: factory.NewCounter(prometheus.CounterOpts{
			Name: "fahmunge_units_derived_total",
			Help: "Ledger entries copied to subset stores",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fahmunge_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// Registry returns the registry holding the recorder's metrics.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) OnUnitMerged(_ domain.SourceUnit, frames int, took time.Duration) {
	r.unitsMerged.Inc()
	r.framesMerged.Add(float64(frames))
	r.unitDuration.Observe(took.Seconds())
}

func (r *Recorder) OnUnitSkipped(domain.SourceUnit) { r.unitsSkipped.Inc() }

func (r *Recorder) OnUnitFailed(domain.SourceUnit, error) { r.unitsFailed.Inc() }

func (r *Recorder) OnDerived(frames, units int) {
	r.framesDerived.Add(float64(frames))
	r.unitsDerived.Add(float64(units))
}

// MarkRun stamps the last-run gauge with now.
func (r *Recorder) MarkRun(now time.Time) {
	r.lastRun.Set(float64(now.Unix()))
}

// WriteTextfile writes the current metric values to path, replacing it
// atomically. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
