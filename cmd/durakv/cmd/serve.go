package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/durakv/durakv/internal/segment"
	"github.com/durakv/durakv/internal/server"
	"github.com/durakv/durakv/internal/store"
	"github.com/durakv/durakv/internal/wal"
)

var (
	serveListenAddress        string
	serveMetricsListenAddress string
	serveMaxSegmentSize       int64
	serveSyncPolicy           string
	serveSyncAfter            time.Duration
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Runs the key-value store server.",
	Long:         `Runs the key-value store server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		walOptions := []wal.Option{
			wal.WithMaxSegmentSize(serveMaxSegmentSize),
		}
		switch serveSyncPolicy {
		case "immediate":
			walOptions = append(walOptions, wal.WithSyncPolicyImmediate())
		case "none":
			walOptions = append(walOptions, wal.WithSyncPolicyNone())
		case "grouped":
			walOptions = append(walOptions, wal.WithSyncPolicyGrouped(serveSyncAfter))
		default:
			return fmt.Errorf("unsupported sync policy %q", serveSyncPolicy)
		}

		registry := prometheus.NewRegistry()
		for _, register := range []func(prometheus.Registerer) error{
			segment.RegisterMetrics,
			wal.RegisterMetrics,
			store.RegisterMetrics,
			server.RegisterMetrics,
		} {
			if err := register(registry); err != nil {
				return err
			}
		}

		kvStore, err := store.Open(dataDir, walOptions...)
		if err != nil {
			return err
		}
		defer func() {
			if err := kvStore.Close(); err != nil {
				log.Printf("WARNING: Closing the store failed: %v\n", err)
			}
		}()

		kvServer := server.New(kvStore)
		if err := kvServer.Start(serveListenAddress); err != nil {
			return err
		}
		log.Printf("Serving on %s with %d keys recovered.\n", kvServer.Addr(), kvStore.Len())

		metricsServer, err := server.StartMetricsServer(serveMetricsListenAddress, registry)
		if err != nil {
			return errors.Join(err, kvServer.Stop())
		}
		log.Printf("Serving metrics on http://%s/metrics.\n", metricsServer.Addr())

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		<-signals
		log.Println("Shutting down.")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(kvServer.Stop(), metricsServer.Stop(shutdownCtx))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(
		&serveListenAddress,
		"listen",
		"127.0.0.1:5555",
		"The address the server listens on for client connections.",
	)

	serveCmd.Flags().StringVar(
		&serveMetricsListenAddress,
		"metrics-listen",
		"127.0.0.1:9090",
		"The address the HTTP sidecar listens on for health and metrics requests.",
	)

	serveCmd.Flags().Int64Var(
		&serveMaxSegmentSize,
		"max-segment-size",
		wal.DefaultMaxSegmentSize,
		"The segment size in bytes at which the write-ahead log rotates into a new segment.",
	)

	serveCmd.Flags().StringVar(
		&serveSyncPolicy,
		"sync-policy",
		"immediate",
		"The sync policy for the write-ahead log. Valid values are immediate, none, grouped.",
	)

	serveCmd.Flags().DurationVar(
		&serveSyncAfter,
		"sync-after",
		5*time.Millisecond,
		"The batching window of the grouped sync policy.",
	)
}
