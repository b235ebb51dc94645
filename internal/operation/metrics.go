package operation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the harvester's prometheus collectors.
type Metrics struct {
	RecordsTotal  *prometheus.CounterVec
	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	TasksInFlight prometheus.Gauge
	Watermark     *prometheus.GaugeVec
}

// NewMetrics registers the collectors with reg. A nil reg registers with the
// default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_records_total",
				Help: "Records processed by outcome",
			},
			[]string{"outcome"}, // ok, diagnostic, omitted, skipped
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_runs_total",
				Help: "Harvest runs by final status",
			},
			[]string{"status"}, // success, empty, failure
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_run_duration_seconds",
				Help:    "Duration of harvest runs",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5h
			},
		),
		TasksInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_tasks_in_flight",
				Help: "Fetch tasks currently running",
			},
		),
		Watermark: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "harvester_watermark_timestamp_seconds",
				Help: "Last persisted time of search per config as Unix epoch seconds",
			},
			[]string{"config"},
		),
	}
}
