package wal

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RotationTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "durakv_wal_rotation_total",
			Help: "Total number of segment rotations executed.",
		},
	)

	RotationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "durakv_wal_rotation_duration_seconds",
			Help:    "Duration of segment rotations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
	)

	RemovedSegmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "durakv_wal_removed_segments_total",
			Help: "Total number of segment files removed after being covered by a snapshot.",
		},
	)

	ReplayTruncatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "durakv_wal_replay_truncated_total",
			Help: "Total number of replays which were cut short by a partially written entry at the tail.",
		},
	)
)

// RegisterMetrics registers all metrics collectors of this package with the given prometheus registerer.
func RegisterMetrics(registerer prometheus.Registerer) error {
	metrics := []prometheus.Collector{
		RotationTotal,
		RotationDuration,
		RemovedSegmentsTotal,
		ReplayTruncatedTotal,
	}
	for _, metric := range metrics {
		if err := registerer.Register(metric); err != nil {
			return err
		}
	}
	return nil
}
