package commands

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/equityscope/equityscope/internal/config"
	"github.com/equityscope/equityscope/internal/stress"
	"github.com/equityscope/equityscope/internal/transport"
	"github.com/equityscope/equityscope/internal/worker"
	"github.com/equityscope/equityscope/pkg/observability"
)

// NewStressCommand creates the reliability stress run command.
func NewStressCommand() *cobra.Command {
	var (
		configPath    string
		batchSize     int
		strategyName  string
		seed          int64
		maxConcurrent int
		intervalMS    int
		timeoutS      int
		outputPath    string
		plotPath      string
		debug         bool
	)

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Reliability stress run against the basket workers",
		Long: `Probe every basket with a sampled batch of companies, classify
each outcome, and print a reliability summary. Outcomes can be exported
as NDJSON (.lz4 compresses) and the summary rendered as an HTML plot.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			strategy, err := stress.ParseStrategy(strategyName)
			if err != nil {
				return err
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

			runner, err := stress.NewRunner(stress.Config{
				BatchSize:       batchSize,
				Strategy:        strategy,
				MaxConcurrent:   maxConcurrent,
				RequestInterval: time.Duration(intervalMS) * time.Millisecond,
				Timeout:         time.Duration(timeoutS) * time.Second,
				Seed:            seed,
			}, caller, logger)
			if err != nil {
				return err
			}

			summary, runErr := runner.Run(cobraCmd.Context())

			stress.WriteReport(os.Stdout, summary)

			if outputPath != "" {
				err = stress.Export(outputPath, runner.Outcomes())
				if err != nil {
					return err
				}

				logger.Info("outcomes exported", "path", outputPath)
			}

			if plotPath != "" {
				err = stress.WritePlot(plotPath, summary, runner.Outcomes())
				if err != nil {
					return err
				}

				logger.Info("plot written", "path", plotPath)
			}

			return runErr
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	cmd.Flags().IntVar(&batchSize, "batch-size", 20, "Companies per run")
	cmd.Flags().StringVar(&strategyName, "strategy", "uniform", "Sampling strategy (uniform, stratified, edge_case, mixed)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Sampling seed (0 seeds from the clock)")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 5, "Concurrent probes")
	cmd.Flags().IntVar(&intervalMS, "interval", 200, "Dispatch pacing in milliseconds")
	cmd.Flags().IntVar(&timeoutS, "timeout", 60, "Per-probe timeout in seconds")
	cmd.Flags().StringVar(&outputPath, "output", "", "NDJSON outcome export path (.lz4 compresses)")
	cmd.Flags().StringVar(&plotPath, "plot", "", "HTML plot output path")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}
