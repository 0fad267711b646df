package main

import (
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the forecasting job once",
		Long: "Train a model on the first run, or resume from the stored state, " +
			"absorb new observations, rewrite the future forecast and save the state.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.init(); err != nil {
				return err
			}
			defer a.close()

			_, err := a.runOnce(cmd.Context())
			return err
		},
	}
}
