package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "durakv_store_operations_total",
			Help: "Total number of store operations executed, partitioned by operation.",
		},
		[]string{"operation"},
	)

	RecoveredEntriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "durakv_store_recovered_entries_total",
			Help: "Total number of log entries applied during recovery.",
		},
	)

	CompactionTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "durakv_store_compaction_total",
			Help: "Total number of snapshot compactions executed.",
		},
	)
)

// RegisterMetrics registers all metrics collectors of this package with the given prometheus registerer.
func RegisterMetrics(registerer prometheus.Registerer) error {
	metrics := []prometheus.Collector{
		OperationsTotal,
		RecoveredEntriesTotal,
		CompactionTotal,
	}
	for _, metric := range metrics {
		if err := registerer.Register(metric); err != nil {
			return err
		}
	}
	return nil
}
