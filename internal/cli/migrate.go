package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"registrar/internal/enrollment"
	"registrar/internal/registration/store/postgres"
)

// NewMigrateCommand applies the registration and enrollment schemas.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, pool, err := openStores(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			defer pool.Close()

			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			if err := enrollment.NewDirectoryStore(pool).Migrate(ctx); err != nil {
				return err
			}
			opts.logger.InfoContext(ctx, "schemas applied")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			return err
		},
	}
}
