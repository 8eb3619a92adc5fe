package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"taskbridge/internal/instrumentation"
	"taskbridge/internal/ledger"
	"taskbridge/internal/logging"
	"taskbridge/internal/relay"
	"taskbridge/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr           string
		metricsAddr    string
		disableMetrics bool
		stdoutTraces   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP bridge",
		Long: `Run the bridge API: task operations for the assistant caller, the auth
status probe, and the inbound relay webhook. Prometheus metrics are served
on a dedicated port.

The server never starts an interactive sign-in. Run 'taskbridge login' once
before serving; without a cached credential, task operations fail with an
auth_required error until then.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}
			if disableMetrics {
				cfg.MetricsEnabled = false
			}

			ctx := cmd.Context()

			provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
				ServiceName:    "taskbridge",
				ServiceVersion: version,
				Enabled:        cfg.MetricsEnabled,
				StdoutTraces:   stdoutTraces,
			})
			if err != nil {
				return fmt.Errorf("failed to initialize instrumentation: %w", err)
			}
			defer func() { _ = provider.Shutdown(context.Background()) }()
			metrics := provider.Metrics()

			// No prompt: serve mode must never block on a device-code
			// challenge.
			broker, err := buildBroker(cfg, logger, nil, metrics)
			if err != nil {
				return err
			}
			gateway, err := buildGateway(cfg, broker, logger, metrics)
			if err != nil {
				return err
			}

			normalizer, err := relay.NewNormalizer(cfg.Relay)
			if err != nil {
				return err
			}
			relaySvc := relay.NewService(
				normalizer,
				ledger.New(cfg.LedgerPath(), cfg.Relay.LedgerMaxEntries),
				relay.NewDispatcher(cfg.Relay, logger),
				logger,
				metrics,
			)

			srv := server.New(server.Options{
				Addr:     cfg.HTTPAddr,
				Tasks:    gateway,
				Auth:     broker,
				Relay:    relaySvc,
				Logger:   logger,
				Metrics:  metrics,
				APIToken: cfg.APIToken,
			})

			errCh := make(chan error, 2)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- fmt.Errorf("bridge API failed: %w", err)
				}
			}()

			var metricsSrv *server.MetricsServer
			if cfg.MetricsEnabled {
				metricsSrv, err = server.NewMetricsServer(cfg.MetricsAddr, provider)
				if err != nil {
					return err
				}
				go func() {
					if err := metricsSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- fmt.Errorf("metrics server failed: %w", err)
					}
				}()
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("bridge API shutdown failed", logging.Err(err))
			}
			if metricsSrv != nil {
				if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
					logger.Error("metrics server shutdown failed", logging.Err(err))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Bridge API bind address (default :8484)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics bind address (default :9090)")
	cmd.Flags().BoolVar(&disableMetrics, "no-metrics", false, "Disable the metrics listener")
	cmd.Flags().BoolVar(&stdoutTraces, "stdout-traces", false, "Export trace spans to stdout")

	return cmd
}
