package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_channel_dispatch_total",
			Help: "Per-channel delivery attempts of alert releases by outcome",
		},
		[]string{"channel", "status"},
	)

	scanOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_scan_pairs_total",
			Help: "Alert and job pairs evaluated by the scanner by outcome",
		},
		[]string{"outcome"},
	)

	releaseSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alert_release_jobs",
			Help:    "Number of jobs carried by one alert release",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alert_scheduler_tick_duration_seconds",
			Help:    "Duration of one scheduler tick",
			Buckets: prometheus.DefBuckets,
		},
	)
)
