package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConnectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "durakv_server_connections_total",
			Help: "Total number of client connections accepted.",
		},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "durakv_server_requests_total",
			Help: "Total number of requests served, partitioned by command and response status.",
		},
		[]string{"command", "status"},
	)
)

// RegisterMetrics registers all metrics collectors of this package with the given prometheus registerer.
func RegisterMetrics(registerer prometheus.Registerer) error {
	metrics := []prometheus.Collector{
		ConnectionsTotal,
		RequestsTotal,
	}
	for _, metric := range metrics {
		if err := registerer.Register(metric); err != nil {
			return err
		}
	}
	return nil
}
