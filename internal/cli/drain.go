package cli

import (
	"github.com/spf13/cobra"
)

// NewDrainCommand runs a single drain pass and prints its summary.
func NewDrainCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Process one batch of queued registrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), opts.cfg, opts.logger, opts.newTx)
			if err != nil {
				return err
			}
			defer app.Close()

			summary, err := app.Runner.Drain(cmd.Context())
			if err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), opts.Format, summary)
		},
	}
}
