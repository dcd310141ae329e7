package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/equityscope/equityscope/internal/aggregate"
	"github.com/equityscope/equityscope/internal/config"
	"github.com/equityscope/equityscope/internal/model"
	"github.com/equityscope/equityscope/internal/task"
	"github.com/equityscope/equityscope/internal/transport"
	"github.com/equityscope/equityscope/internal/worker"
	"github.com/equityscope/equityscope/pkg/observability"
)

// NewResearchCommand creates the one-shot research command.
func NewResearchCommand() *cobra.Command {
	var (
		configPath string
		quiet      bool
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "research <ticker or company>",
		Short: "One-shot research run, artifact to stdout",
		Long: `Run the full basket aggregation for one company in-process and
print the research artifact as JSON. Progress metrics stream to stderr
while the baskets collect.

Examples:
  equityscope research AAPL
  equityscope research "TSLA Tesla Inc"
  equityscope research Microsoft`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			ticker, company, err := task.ParseRequest(query)
			if err != nil {
				return fmt.Errorf("parse %q: %w", query, err)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			providers, err := initObservability(cfg, observability.ModeCLI, debug)
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
			caller := transport.NewLocal(registry, logger)

			aggregator := aggregate.New(caller, aggregate.Config{
				ToolTimeout: cfg.ToolTimeout(),
			}, logger)

			sink := aggregate.SinkFunc(func(event model.MetricEvent) {
				if quiet {
					return
				}

				fmt.Fprintf(os.Stderr, "  %s %s = %v\n",
					color.CyanString(event.Source), event.Metric, event.Value)
			})

			if !quiet {
				fmt.Fprintf(os.Stderr, "researching %s (%s)\n",
					color.GreenString(company), ticker)
			}

			artifact, err := aggregator.Run(cobraCmd.Context(), ticker, company, sink)
			if err != nil {
				return err
			}

			encoded, err := json.MarshalIndent(artifact, "", "  ")
			if err != nil {
				return fmt.Errorf("encode artifact: %w", err)
			}

			fmt.Fprintln(os.Stdout, string(encoded))

			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress progress output")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}
