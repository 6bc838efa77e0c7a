package server_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/durakv/durakv/internal/server"
)

func TestHealthEndpoint(t *testing.T) {
	httpServer := httptest.NewServer(server.NewRouter(prometheus.NewRegistry()))
	defer httpServer.Close()

	response, err := http.Get(httpServer.URL + "/healthz")
	require.NoError(t, err)
	defer response.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, response.StatusCode)
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	require.NoError(t, server.RegisterMetrics(registry))

	httpServer := httptest.NewServer(server.NewRouter(registry))
	defer httpServer.Close()

	server.ConnectionsTotal.Inc()

	response, err := http.Get(httpServer.URL + "/metrics")
	require.NoError(t, err)
	defer response.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, response.StatusCode)
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "durakv_server_connections_total")
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	httpServer := httptest.NewServer(server.NewRouter(prometheus.NewRegistry()))
	defer httpServer.Close()

	response, err := http.Get(httpServer.URL + "/unknown")
	require.NoError(t, err)
	defer response.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}
