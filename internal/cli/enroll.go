package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"registrar/internal/enrollment"
)

// NewEnrollCommand manages the enrollment directory.
func NewEnrollCommand(opts *RootOptions) *cobra.Command {
	var block bool
	cmd := &cobra.Command{
		Use:   "enroll <enrollment-id> <registration-uri> | enroll --block <registration-uri>",
		Short: "Map the site of a registration URI to an enrollment",
		Args: func(cmd *cobra.Command, args []string) error {
			if block {
				return cobra.ExactArgs(1)(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := enrollment.Connect(ctx, opts.cfg.Enrollment.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()
			dir := enrollment.NewDirectoryStore(pool)

			if block {
				if err := dir.Block(ctx, args[0]); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "blocked %s\n", args[0])
				return err
			}
			if err := dir.Enroll(ctx, args[0], args[1]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "enrolled %s as %s\n", args[1], args[0])
			return err
		},
	}
	cmd.Flags().BoolVar(&block, "block", false, "block the site instead of enrolling it")
	return cmd
}
