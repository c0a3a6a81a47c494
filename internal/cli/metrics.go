package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/branchflow/branchflow/internal/observability"
)

var (
	metricsPort int
	metricsHost string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Start a metrics server for monitoring",
	Long: `Start an HTTP server exposing Prometheus-compatible metrics.

The counters cover triggers handled (by kind and outcome), actions
executed (by kind) and adapter retries. Metrics can be scraped by
Prometheus or any compatible monitoring system.

Counters are process-local. The standalone server starts at zero and
only reports activity from engine runs in the same process, such as a
long-running webhook deployment. One-shot CLI invocations in other
processes do not feed it.

Example:
  # Start metrics server on default port 9090
  branchflow metrics

  # Bind to a specific interface and port
  branchflow metrics --host 127.0.0.1 --port 8080`,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.Flags().IntVarP(&metricsPort, "port", "p", 9090, "Port to listen on")
	metricsCmd.Flags().StringVarP(&metricsHost, "host", "H", "127.0.0.1", "Host to bind to")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	metrics := observability.NewMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	})

	addr := net.JoinHostPort(metricsHost, fmt.Sprintf("%d", metricsPort))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("metrics server listening", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	case <-cmd.Context().Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
