// Package main provides the entry point for the equityscope binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/equityscope/equityscope/cmd/equityscope/commands"
	"github.com/equityscope/equityscope/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "equityscope",
		Short: "EquityScope - multi-source equity research aggregation",
		Long: `EquityScope collects fundamentals, valuation, volatility, macro,
news, and sentiment for a company and assembles them into one
research artifact.

Commands:
  serve     Run the task endpoint HTTP server
  worker    Run one basket worker (stdio MCP or HTTP)
  research  One-shot research run, artifact to stdout
  stress    Reliability stress run against the basket workers`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewWorkerCommand())
	rootCmd.AddCommand(commands.NewResearchCommand())
	rootCmd.AddCommand(commands.NewStressCommand())
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "equityscope %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}
