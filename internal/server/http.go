package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates the HTTP routes of the sidecar: a liveness probe and the prometheus metrics of the given
// gatherer.
func NewRouter(gatherer prometheus.Gatherer) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.WriteHeader(http.StatusOK)
		fmt.Fprintln(responseWriter, "ok") //nolint:errcheck // The probe result is best effort.
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return router
}

// MetricsServer serves the HTTP sidecar in the background.
type MetricsServer struct {
	listener net.Listener
	server   *http.Server
}

// StartMetricsServer binds the given address and serves the sidecar routes on it.
func StartMetricsServer(address string, gatherer prometheus.Gatherer) (*MetricsServer, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listening on %q: %w", address, err)
	}

	newServer := MetricsServer{
		listener: listener,
		server: &http.Server{
			Handler:           NewRouter(gatherer),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	go func() {
		if err := newServer.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("WARNING: The metrics server failed: %v\n", err)
		}
	}()
	return &newServer, nil
}

// Addr returns the address the sidecar is listening on.
func (m *MetricsServer) Addr() net.Addr {
	return m.listener.Addr()
}

// Stop shuts the sidecar down gracefully.
func (m *MetricsServer) Stop(ctx context.Context) error {
	return m.server.Shutdown(ctx)
}
