package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "registrar/internal/jwt_token"
)

// NewTokenCommand issues a bearer token for a registrant, for local testing
// against the API.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <registrant>",
		Short: "Issue a registrant bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server := opts.cfg.Server
			token, err := jwttoken.New(server.JWTSigningKey, server.JWTIssuer, server.JWTAudience).Issue(args[0], ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
