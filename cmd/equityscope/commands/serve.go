// Package commands implements the equityscope subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/equityscope/equityscope/internal/aggregate"
	"github.com/equityscope/equityscope/internal/config"
	"github.com/equityscope/equityscope/internal/task"
	"github.com/equityscope/equityscope/internal/transport"
	"github.com/equityscope/equityscope/internal/worker"
	"github.com/equityscope/equityscope/pkg/observability"
)

// shutdownGrace bounds the drain of in-flight requests on SIGTERM.
const shutdownGrace = 10 * time.Second

// NewServeCommand creates the task endpoint server command.
func NewServeCommand() *cobra.Command {
	var (
		configPath string
		port       int
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the task endpoint HTTP server",
		Long: `Run the JSON-RPC task endpoint. Research requests arrive as
message/send calls, run against the basket workers in the background,
and stream partial metrics through tasks/get polling.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Port = port
			}

			providers, err := initObservability(cfg, observability.ModeServe, debug)
			if err != nil {
				return err
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			logger := providers.Logger

			red, err := observability.NewREDMetrics(providers.Meter)
			if err != nil {
				return err
			}

			metricsHandler, err := observability.PrometheusHandler()
			if err != nil {
				return err
			}

			caller := buildCaller(cfg, logger)

			aggregator := aggregate.New(caller, aggregate.Config{
				ToolTimeout: cfg.ToolTimeout(),
				MetricDelay: cfg.MetricDelay(),
			}, logger)

			manager := task.NewManager(aggregator, logger)
			server := task.NewServer(manager, logger, metricsHandler, red)

			httpServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Port),
				Handler:           server.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)

			go func() {
				logger.Info("task endpoint listening", "port", cfg.Port)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case <-cobraCmd.Context().Done():
				logger.Info("shutting down task endpoint")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()

				return httpServer.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}

				return err
			}
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}

// buildCaller assembles the worker transport: child-process stdio by
// default, with the fundamentals basket optionally routed through the
// HTTP worker cluster. The HTTP transport falls back to stdio when the
// cluster is unreachable.
func buildCaller(cfg *config.Config, logger *slog.Logger) transport.Caller {
	stdio := transport.NewStdio(cfg.WorkerBinary, cfg.ToolTimeout(), logger)

	if !cfg.UseHTTPFinancials {
		return stdio
	}

	httpCaller := transport.NewHTTP(cfg.FinancialsHTTPURL, cfg.HTTPTimeout(), stdio, logger)

	return transport.NewRouter(stdio, map[string]transport.Caller{
		worker.BasketOrder[0]: httpCaller,
	})
}
