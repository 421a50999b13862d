package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/coolbeans/dopa/pkg/client"
	"github.com/coolbeans/dopa/pkg/config"
	"github.com/coolbeans/dopa/pkg/gateway"
)

const shutdownTimeout = 10 * time.Second

func (dopaApp *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve DOPA data over HTTP",
		Long: `Start an HTTP gateway in front of the DOPA service.

Routes:
  GET /countries
  GET /countries/{country}/species[?status=EN,VU]
  GET /countries/{country}/species/count[?status=EN,VU]
  GET /countries/{country}/pa/stats
  GET /countries/{country}/pa           (GeoJSON)
  GET /categories
  GET /healthz
  GET /metrics                          (Prometheus)

Tables are JSON by default; add ?format=csv for CSV.

With --watch-config, edits to the config file change the log level
without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr, _ := cmd.Flags().GetString("listen")
			watchConfig, _ := cmd.Flags().GetBool("watch-config")
			if !cmd.Flags().Changed("listen") {
				listenAddr = dopaApp.cfg.Server.ListenAddr
			}

			handler, err := dopaApp.gatewayHandler()
			if err != nil {
				return err
			}

			if watchConfig {
				if dopaApp.configPath == "" {
					return fmt.Errorf("--watch-config requires --config")
				}
				configWatcher, err := config.Watch(dopaApp.configPath, dopaApp.applyReload, func(err error) {
					dopaApp.logger.Warn("config reload failed", "error", err)
				})
				if err != nil {
					return err
				}
				defer configWatcher.Stop()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return dopaApp.listen(ctx, listenAddr, handler)
		},
	}

	cmd.Flags().String("listen", ":8080", "Address to listen on (overrides config)")
	cmd.Flags().Bool("watch-config", false, "Reload the log level when the config file changes")

	return cmd
}

// gatewayHandler wires a client, the process collectors and the gateway
// routes together.
func (dopaApp *app) gatewayHandler() (http.Handler, error) {
	dopaClient, err := dopaApp.newClient()
	if err != nil {
		return nil, err
	}

	dopaApp.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return gateway.New(dopaClient, dopaApp.logger, dopaApp.metrics.Handler()).Routes(), nil
}

func (dopaApp *app) applyReload(cfg config.Config) {
	dopaApp.logger.SetLevel(cfg.Logging.Level)
	dopaApp.logger.Info("config reloaded", "log_level", cfg.Logging.Level)
}

// listen serves until ctx is canceled, then shuts down gracefully.
func (dopaApp *app) listen(ctx context.Context, listenAddr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		dopaApp.logger.Info("gateway listening", "addr", listenAddr, "base_url", dopaApp.cfg.Client.BaseURL)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("gateway failed: %w", err)
	case <-ctx.Done():
	}

	dopaApp.logger.Info("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway shutdown failed: %w", err)
	}
	return nil
}

var _ gateway.Service = (*client.Client)(nil)
