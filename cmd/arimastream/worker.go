package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sartorproj/arimastream/trainer"
)

func newFitWorkerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:    trainer.WorkerCommand,
		Short:  "Fit one candidate order read from stdin (internal)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The parent stops a worker with SIGTERM; it must terminate the
			// process rather than cancel the command context.
			signal.Reset(os.Interrupt, syscall.SIGTERM)
			logger := zerolog.New(a.stderr).With().Timestamp().Logger()
			return trainer.RunWorker(cmd.Context(), a.stdin, a.stdout, logger)
		},
	}
}
