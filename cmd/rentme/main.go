package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"staysettle/internal/infra/config"
	"staysettle/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "rentme",
		Short:         "Booking lifecycle and settlement service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCommand(), newWorkerCommand(), newSweepCommand())
	return root
}

// bootstrap loads configuration and builds the container every subcommand shares.
func bootstrap(cmd *cobra.Command) (*container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := obs.NewLogger(cfg.Env)
	return buildContainer(cmd.Context(), cfg, logger)
}
