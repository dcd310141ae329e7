package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/equityscope/equityscope/internal/config"
	"github.com/equityscope/equityscope/internal/worker"
	"github.com/equityscope/equityscope/pkg/observability"
)

// NewWorkerCommand creates the basket worker command.
func NewWorkerCommand() *cobra.Command {
	var (
		configPath string
		basketName string
		useHTTP    bool
		port       int
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run one basket worker (stdio MCP or HTTP)",
		Long: `Run a single basket's tool set. The default transport is MCP
over stdio for the aggregator's child-process calls; --http serves the
same tools behind a load balancer on POST /tools/<name>.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			providers, err := initObservability(cfg, observability.ModeWorker, debug)
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

			registry := worker.Build(worker.BuildDeps{Config: cfg, Logger: logger})

			if useHTTP {
				srv, ok := worker.NewHTTPServer(registry, basketName, logger)
				if !ok {
					return unknownBasket(basketName)
				}

				return serveHTTPWorker(cobraCmd.Context(), srv, port, logger)
			}

			set, ok := registry.Set(basketName)
			if !ok {
				return unknownBasket(basketName)
			}

			red, err := observability.NewREDMetrics(providers.Meter)
			if err != nil {
				return err
			}

			srv := worker.NewServer(set, worker.ServerDeps{
				Logger:  logger,
				Metrics: red,
				Tracer:  providers.Tracer,
			})

			logger.Info("basket worker starting",
				"basket", basketName, "tools", srv.ToolNames())

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	cmd.Flags().StringVar(&basketName, "basket", "", "Basket server name (e.g. fundamentals-basket)")
	cmd.Flags().BoolVar(&useHTTP, "http", false, "Serve the basket over HTTP instead of stdio")
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP worker listen port")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	_ = cmd.MarkFlagRequired("basket")

	return cmd
}

func unknownBasket(name string) error {
	return fmt.Errorf("unknown basket %q (expected one of: %s)",
		name, strings.Join(worker.BasketOrder, ", "))
}

func serveHTTPWorker(ctx context.Context, srv *worker.HTTPServer, port int, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("basket HTTP worker listening", "port", port)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}
}
