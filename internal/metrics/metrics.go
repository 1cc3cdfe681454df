// Package metrics exposes scheduling counters in Prometheus format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"scheduler/internal/engine"
	"scheduler/internal/model"
)

// Metrics holds the collectors for scheduling runs.
type Metrics struct {
	registry *prometheus.Registry

	// PlacementsTotal counts bookings by entity kind.
	PlacementsTotal *prometheus.CounterVec

	// FailuresTotal counts unplaced entities by kind and reason.
	FailuresTotal *prometheus.CounterVec

	// SkippedTotal counts entities that required no time.
	SkippedTotal prometheus.Counter

	// BookedMinutes is the booked time per weekday after the last run.
	BookedMinutes *prometheus.GaugeVec

	// RunDuration is the wall time of a scheduling pass.
	RunDuration prometheus.Histogram

	// LastRun is the unix time of the last completed run.
	LastRun prometheus.Gauge
}

// New creates metrics registered on a private registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PlacementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "placements_total",
				Help:      "Count of bookings made by entity kind.",
			},
			[]string{"kind"},
		),
		FailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Count of entities that could not be placed.",
			},
			[]string{"kind", "reason"},
		),
		SkippedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_total",
				Help:      "Count of entities that required no time.",
			},
		),
		BookedMinutes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "booked_minutes",
				Help:      "Booked minutes per weekday after the last run.",
			},
			[]string{"day"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Time to complete a scheduling pass.",
				Buckets:   []float64{.001, .01, .1, .5, 1, 5},
			},
		),
		LastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last completed run.",
			},
		),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveResult records the outcome of one pass.
func (m *Metrics) ObserveResult(res *engine.Result, booked map[model.Weekday]int, took time.Duration, at time.Time) {
	for _, p := range res.Placements {
		m.PlacementsTotal.WithLabelValues(p.Entity.Kind()).Inc()
	}
	for _, f := range res.Failures {
		m.FailuresTotal.WithLabelValues(f.Entity.Kind(), engine.Reason(f.Err)).Inc()
	}
	m.SkippedTotal.Add(float64(len(res.Skipped)))

	for _, d := range model.Weekdays {
		m.BookedMinutes.WithLabelValues(d.Token()).Set(float64(booked[d]))
	}
	m.RunDuration.Observe(took.Seconds())
	m.LastRun.Set(float64(at.Unix()))
}

// WriteTextfile dumps all metrics for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
