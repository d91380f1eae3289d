package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the service's instrumentation. Tests pass their own
// Registerer; nil falls back to the default one.
type Metrics struct {
	Creates   prometheus.Counter
	Puts      prometheus.Counter
	Fills     prometheus.Counter
	Updates   prometheus.Counter
	Snapshots prometheus.Counter
	Replayed  prometheus.Counter
	Arrays    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Creates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "audhumla",
			Name:      "array_creates_total",
			Help:      "Arrays created.",
		}),
		Puts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "audhumla",
			Name:      "array_puts_total",
			Help:      "Single-element writes applied.",
		}),
		Fills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "audhumla",
			Name:      "array_fills_total",
			Help:      "Whole-array fills applied.",
		}),
		Updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "audhumla",
			Name:      "array_updates_total",
			Help:      "Transactional updates applied.",
		}),
		Snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "audhumla",
			Name:      "snapshots_written_total",
			Help:      "Snapshots persisted to disk.",
		}),
		Replayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "audhumla",
			Name:      "journal_replayed_records_total",
			Help:      "Journal records applied during bootstrap.",
		}),
		Arrays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "audhumla",
			Name:      "arrays",
			Help:      "Registered arrays.",
		}),
	}

	reg.MustRegister(
		m.Creates, m.Puts, m.Fills, m.Updates,
		m.Snapshots, m.Replayed, m.Arrays,
	)
	return m
}
